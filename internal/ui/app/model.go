package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	goaldto "habitsync/internal/modules/goal/dto"
	sessiondto "habitsync/internal/modules/session/dto"
	"habitsync/internal/ui/components"
	"habitsync/internal/ui/theme"
)

// ─── ports ───────────────────────────────────────────────────────────────────

type sessionPort interface {
	End(ctx context.Context, actualSec, targetSec, aimed int) (sessiondto.EndOutput, error)
	Retry(ctx context.Context, sessionID string, actualSec, targetSec, aimed int) (sessiondto.EndOutput, error)
	Subscribe(sessionID string, handler func(sessiondto.OutcomeEvent)) func()
	Discard(sessionID string) bool
}

type goalPort interface {
	Current(ctx context.Context) (goaldto.GoalOutput, error)
	Set(ctx context.Context, field string, value int) (goaldto.PendingMutation, error)
	Subscribe(handler func(goaldto.GoalOutput)) func()
	SubscribeFailures(field string, handler func(goaldto.MutationFailure)) func()
}

const (
	fieldTimeTarget = "timeTargetMinutes"
	fieldFrequency  = "dailyFrequency"

	targetStep      = 5
	fallbackTarget  = 10 * 60
	saveCallTimeout = 5 * time.Second

	// fullBonusStreak is the time streak at which the bonus stops growing.
	fullBonusStreak = 10
)

// ─── async messages ──────────────────────────────────────────────────────────

type tickMsg time.Time

type goalsLoadedMsg struct {
	goal goaldto.GoalOutput
	err  error
}

type goalChangedMsg struct{ goal goaldto.GoalOutput }

type goalFailedMsg struct{ failure goaldto.MutationFailure }

type goalSetMsg struct {
	pending goaldto.PendingMutation
	err     error
}

type sessionEndedMsg struct {
	out   sessiondto.EndOutput
	input attempt
	err   error
}

type outcomeMsg struct{ event sessiondto.OutcomeEvent }

// ─── relay ───────────────────────────────────────────────────────────────────

// relay hands bus callbacks to the running program in publish order.
// Callbacks run on the publisher's goroutine and must not wait for Update,
// so push only appends; a started relay forwards the backlog to the
// program.
type relay struct {
	mu      sync.Mutex
	pending []tea.Msg
	wake    chan struct{}
	once    sync.Once
}

func newRelay() *relay {
	return &relay{wake: make(chan struct{}, 1)}
}

func (r *relay) push(msg tea.Msg) {
	r.mu.Lock()
	r.pending = append(r.pending, msg)
	r.mu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// take removes and returns the queued messages, oldest first.
func (r *relay) take() []tea.Msg {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.pending
	r.pending = nil
	return msgs
}

func (r *relay) start(p *tea.Program) {
	r.once.Do(func() {
		go func() {
			for range r.wake {
				for _, msg := range r.take() {
					p.Send(msg)
				}
			}
		}()
	})
}

// ─── key bindings ────────────────────────────────────────────────────────────

type keyMap struct {
	End      key.Binding
	Reset    key.Binding
	TargetUp key.Binding
	TargetDn key.Binding
	FreqUp   key.Binding
	FreqDn   key.Binding
	Retry    key.Binding
	Discard  key.Binding
	Next     key.Binding
	Help     key.Binding
	Palette  key.Binding
	Quit     key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		End:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "end session")),
		Reset:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "reset timer")),
		TargetUp: key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+/-", "target minutes")),
		TargetDn: key.NewBinding(key.WithKeys("-"), key.WithHelp("+/-", "target minutes")),
		FreqUp:   key.NewBinding(key.WithKeys("]"), key.WithHelp("[/]", "sessions per day")),
		FreqDn:   key.NewBinding(key.WithKeys("["), key.WithHelp("[/]", "sessions per day")),
		Retry:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry save")),
		Discard:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "discard")),
		Next:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next session")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Palette:  key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "command")),
		Quit:     key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.End, k.Help, k.Palette, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.End, k.Reset, k.Next},
		{k.TargetUp, k.FreqUp},
		{k.Retry, k.Discard},
		{k.Help, k.Palette, k.Quit},
	}
}

// ─── model ───────────────────────────────────────────────────────────────────

type phase int

const (
	phaseTiming phase = iota
	phaseResults
)

type saveState int

const (
	saveSaving saveState = iota
	saveCommitted
	saveFailed
	saveDiscarded
)

// attempt is what a session end was submitted with, kept for retries.
type attempt struct {
	sessionID string
	actualSec int
	targetSec int
	aimed     int
}

type result struct {
	attempt     attempt
	estimate    sessiondto.OutcomeOutput
	state       saveState
	outcome     sessiondto.OutcomeOutput
	reason      string
	discardable bool
}

// Model is the timer and results screen. The estimate is shown the moment
// a session ends; the saved outcome replaces it when the store answers.
type Model struct {
	identity string
	session  sessionPort
	goal     goalPort
	relay    *relay
	now      func() time.Time

	// explicit overrides; zero follows the goal preferences
	targetSec int
	aimed     int

	phase      phase
	startedAt  time.Time
	elapsed    time.Duration
	goals      goaldto.GoalOutput
	result     result
	outcomeSub func()

	keys     keyMap
	help     help.Model
	showHelp bool
	palette  components.Palette
	notice   string
	status   string
	width    int
	height   int
}

func NewModel(identity string, session sessionPort, goal goalPort, targetSec, aimed int) Model {
	m := Model{
		identity:  identity,
		session:   session,
		goal:      goal,
		relay:     newRelay(),
		now:       time.Now,
		targetSec: targetSec,
		aimed:     aimed,
		goals:     goaldto.GoalOutput{TimeTargetMinutes: fallbackTarget / 60, DailyFrequency: 1},
		keys:      defaultKeys(),
		help:      help.New(),
		palette:   components.NewPalette(paletteCommands),
		status:    "ready",
	}
	m.startedAt = m.now()
	return m
}

// Attach connects bus callbacks to p. Call it before p.Run.
func (m Model) Attach(p *tea.Program) {
	m.relay.start(p)
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadGoalsCmd(), m.subscribeGoalsCmd(), tick())
}

// ─── update ──────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// The open palette takes all key input; everything else still lands.
	if m.palette.Visible() {
		var cmd tea.Cmd
		m.palette, cmd = m.palette.Update(msg)
		if _, isKey := msg.(tea.KeyMsg); isKey {
			return m, cmd
		}
		next, routed := m.route(msg)
		return next, tea.Batch(cmd, routed)
	}
	return m.route(msg)
}

func (m Model) route(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.palette.SetWidth(min(m.width-4, 72))
		m.help.Width = m.width

	case tickMsg:
		if m.phase == phaseTiming {
			m.elapsed = time.Time(msg).Sub(m.startedAt)
		}
		return m, tick()

	case goalsLoadedMsg:
		if msg.err != nil {
			m.status = "goals: " + msg.err.Error()
			return m, nil
		}
		m.goals = msg.goal

	case goalChangedMsg:
		m.goals = msg.goal

	case goalSetMsg:
		if msg.err != nil {
			m.notice = theme.Failed.Render(msg.err.Error())
			return m, nil
		}
		m.status = fmt.Sprintf("saving %s = %d", msg.pending.Field, msg.pending.Next)

	case goalFailedMsg:
		f := msg.failure
		m.notice = theme.Failed.Render(fmt.Sprintf("couldn't save %s = %d, back to %d", f.Field, f.Attempted, f.Previous)) +
			theme.Muted.Render(" ("+f.Reason+")")

	case sessionEndedMsg:
		return m.sessionEnded(msg)

	case outcomeMsg:
		m.applyOutcome(msg.event)

	case components.PaletteSubmitMsg:
		return m.runCommand(msg.Input)

	case components.PaletteCancelMsg:
		m.status = "ready"

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		if msg.String() == "?" || msg.String() == "esc" {
			m.showHelp = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.stopWatching()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	case key.Matches(msg, m.keys.Palette):
		cmd := m.palette.Open()
		return m, cmd
	case key.Matches(msg, m.keys.TargetUp):
		return m, m.setGoalCmd(fieldTimeTarget, m.goals.TimeTargetMinutes+targetStep)
	case key.Matches(msg, m.keys.TargetDn):
		return m, m.setGoalCmd(fieldTimeTarget, m.goals.TimeTargetMinutes-targetStep)
	case key.Matches(msg, m.keys.FreqUp):
		return m, m.setGoalCmd(fieldFrequency, m.goals.DailyFrequency+1)
	case key.Matches(msg, m.keys.FreqDn):
		return m, m.setGoalCmd(fieldFrequency, m.goals.DailyFrequency-1)
	}

	switch m.phase {
	case phaseTiming:
		switch {
		case key.Matches(msg, m.keys.End):
			return m, m.endCmd()
		case key.Matches(msg, m.keys.Reset):
			m.restartTimer()
		}
	case phaseResults:
		switch {
		case key.Matches(msg, m.keys.Retry):
			return m.retry()
		case key.Matches(msg, m.keys.Discard):
			m.discard()
		case key.Matches(msg, m.keys.Next), key.Matches(msg, m.keys.End):
			m.restartTimer()
		}
	}
	return m, nil
}

func (m Model) sessionEnded(msg sessionEndedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.status = "session end failed: " + msg.err.Error()
		return m, nil
	}
	m.stopWatching()
	in := msg.input
	in.sessionID = msg.out.SessionID
	m.phase = phaseResults
	m.result = result{attempt: in, estimate: msg.out.Estimate, state: saveSaving}
	m.status = "saving " + in.sessionID
	m.watchOutcome(in.sessionID)
	return m, nil
}

func (m *Model) applyOutcome(event sessiondto.OutcomeEvent) {
	if m.phase != phaseResults || event.SessionID != m.result.attempt.sessionID || m.result.state == saveDiscarded {
		return
	}
	if event.Committed {
		m.result.state = saveCommitted
		m.result.outcome = event.Outcome
		m.result.reason = ""
		m.status = "saved"
		return
	}
	m.result.state = saveFailed
	m.result.reason = event.Reason
	m.result.discardable = event.Discardable
	m.status = "save failed"
}

func (m Model) retry() (tea.Model, tea.Cmd) {
	if m.result.state != saveFailed {
		return m, nil
	}
	m.result.state = saveSaving
	m.result.reason = ""
	m.status = "retrying " + m.result.attempt.sessionID
	return m, m.retryCmd(m.result.attempt)
}

func (m *Model) discard() {
	if m.result.state != saveFailed || !m.result.discardable {
		return
	}
	if m.session.Discard(m.result.attempt.sessionID) {
		m.result.state = saveDiscarded
		m.stopWatching()
		m.status = "discarded " + m.result.attempt.sessionID
	}
}

func (m *Model) restartTimer() {
	m.phase = phaseTiming
	m.startedAt = m.now()
	m.elapsed = 0
	m.notice = ""
}

func (m *Model) stopWatching() {
	if m.outcomeSub != nil {
		m.outcomeSub()
		m.outcomeSub = nil
	}
}

var paletteCommands = []components.Command{
	{Name: "session:end"},
	{Name: "session:retry"},
	{Name: "session:discard"},
	{Name: "timer:reset"},
	{Name: "goal:set", Args: fieldTimeTarget + " <1-240>"},
	{Name: "goal:set", Args: fieldFrequency + " <1-12>"},
}

// runCommand executes a palette line.
func (m Model) runCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}
	switch parts[0] {
	case "session:end":
		if m.phase != phaseTiming {
			m.status = "no session running"
			return m, nil
		}
		return m, m.endCmd()
	case "session:retry":
		return m.retry()
	case "session:discard":
		m.discard()
	case "timer:reset":
		m.restartTimer()
	case "goal:set":
		if len(parts) != 3 {
			m.status = "usage: goal:set <field> <value>"
			return m, nil
		}
		value, err := strconv.Atoi(parts[2])
		if err != nil {
			m.status = "value must be a number"
			return m, nil
		}
		return m, m.setGoalCmd(parts[1], value)
	default:
		m.status = "unknown command: " + parts[0]
	}
	return m, nil
}

// effectiveTarget is the explicit target if one was given, else the goal.
func (m Model) effectiveTarget() int {
	if m.targetSec > 0 {
		return m.targetSec
	}
	if m.goals.TimeTargetMinutes > 0 {
		return m.goals.TimeTargetMinutes * 60
	}
	return fallbackTarget
}

func (m Model) effectiveAimed() int {
	if m.aimed > 0 {
		return m.aimed
	}
	return max(m.goals.DailyFrequency, 1)
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	header := theme.Title.Render("habitsync") + "  " + theme.Muted.Render(m.identity)

	var body string
	switch {
	case m.showHelp:
		body = m.help.View(m.keys)
	case m.palette.Visible():
		body = m.palette.View()
	case m.phase == phaseResults:
		body = theme.PaneActive.Render(m.resultsView())
	default:
		body = theme.Pane.Render(m.timerView())
	}

	goals := theme.Muted.Render(fmt.Sprintf("goal: %d min × %d/day", m.goals.TimeTargetMinutes, m.goals.DailyFrequency))
	if len(m.goals.Pending) > 0 {
		goals += " " + theme.Pending.Render("(saving "+strings.Join(m.goals.Pending, ", ")+")")
	}

	lines := []string{header, "", body, goals}
	if m.notice != "" {
		lines = append(lines, m.notice)
	}
	lines = append(lines, "", m.renderStatusBar())
	return theme.App.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) timerView() string {
	target := time.Duration(m.effectiveTarget()) * time.Second
	remaining := target - m.elapsed
	label := "remaining"
	clock := theme.Clock
	if remaining <= 0 {
		remaining = -remaining
		label = "over target"
		clock = theme.Overtime
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		clock.Render(formatClock(m.elapsed)),
		theme.Muted.Render(fmt.Sprintf("%s %s of %s", formatClock(remaining), label, formatClock(target))),
	)
}

func (m Model) resultsView() string {
	r := m.result
	shown := r.estimate
	var state string
	switch r.state {
	case saveSaving:
		state = theme.Pending.Render("saving…")
	case saveCommitted:
		shown = r.outcome
		state = theme.Saved.Render("saved")
	case saveFailed:
		state = theme.Failed.Render("not saved: " + r.reason)
		if r.discardable {
			state += theme.Muted.Render("  r retry · d discard")
		} else {
			state += theme.Muted.Render("  r retry")
		}
	case saveDiscarded:
		state = theme.Muted.Render("discarded")
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		theme.Hot.Render(fmt.Sprintf("%d points", shown.TotalPoints)),
		fmt.Sprintf("base %d + bonus %d", shown.BasePoints, shown.BonusPoints),
		theme.Streak("time streak", shown.TimeStreak, fullBonusStreak)+"  "+theme.Streak("daily streak", shown.DailyStreak, fullBonusStreak),
		"",
		state,
	)
}

func (m Model) renderStatusBar() string {
	left := m.status
	right := theme.Muted.Render("?:help  :::command  q:quit")
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right)-4, 1)
	return left + strings.Repeat(" ", gap) + right
}

func formatClock(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// ─── async commands ──────────────────────────────────────────────────────────

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) loadGoalsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), saveCallTimeout)
		defer cancel()
		goal, err := m.goal.Current(ctx)
		return goalsLoadedMsg{goal: goal, err: err}
	}
}

// subscribeGoalsCmd registers for goal changes and failed goal writes for
// the lifetime of the program.
func (m Model) subscribeGoalsCmd() tea.Cmd {
	return func() tea.Msg {
		m.goal.Subscribe(func(goal goaldto.GoalOutput) {
			m.relay.push(goalChangedMsg{goal: goal})
		})
		for _, field := range []string{fieldTimeTarget, fieldFrequency} {
			m.goal.SubscribeFailures(field, func(f goaldto.MutationFailure) {
				m.relay.push(goalFailedMsg{failure: f})
			})
		}
		return nil
	}
}

func (m Model) setGoalCmd(field string, value int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), saveCallTimeout)
		defer cancel()
		pending, err := m.goal.Set(ctx, field, value)
		return goalSetMsg{pending: pending, err: err}
	}
}

func (m Model) endCmd() tea.Cmd {
	in := attempt{
		actualSec: max(int(m.now().Sub(m.startedAt).Seconds()), 1),
		targetSec: m.effectiveTarget(),
		aimed:     m.effectiveAimed(),
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), saveCallTimeout)
		defer cancel()
		out, err := m.session.End(ctx, in.actualSec, in.targetSec, in.aimed)
		return sessionEndedMsg{out: out, input: in, err: err}
	}
}

func (m Model) retryCmd(in attempt) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), saveCallTimeout)
		defer cancel()
		out, err := m.session.Retry(ctx, in.sessionID, in.actualSec, in.targetSec, in.aimed)
		return sessionEndedMsg{out: out, input: in, err: err}
	}
}

// watchOutcome subscribes to the session's save result. A result that is
// already known is replayed straight away.
func (m *Model) watchOutcome(sessionID string) {
	m.outcomeSub = m.session.Subscribe(sessionID, func(event sessiondto.OutcomeEvent) {
		m.relay.push(outcomeMsg{event: event})
	})
}
