package components

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

var testCommands = []Command{
	{Name: "session:end"},
	{Name: "session:retry"},
	{Name: "timer:reset"},
	{Name: "goal:set", Args: "timeTargetMinutes <1-240>"},
	{Name: "goal:set", Args: "dailyFrequency <1-12>"},
}

func typeText(p Palette, s string) Palette {
	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return p
}

func press(p Palette, k tea.KeyType) (Palette, tea.Cmd) {
	return p.Update(tea.KeyMsg{Type: k})
}

func TestTabCompletesSharedPrefix(t *testing.T) {
	t.Parallel()
	p := NewPalette(testCommands)
	p.Open()

	p = typeText(p, "se")
	p, _ = press(p, tea.KeyTab)
	if got := p.input.Value(); got != "session:" {
		t.Fatalf("expected shared prefix, got %q", got)
	}

	p = typeText(p, "r")
	p, _ = press(p, tea.KeyTab)
	if got := p.input.Value(); got != "session:retry " {
		t.Fatalf("expected the single command, got %q", got)
	}
}

func TestTabCompletesCommandWithSeveralArgForms(t *testing.T) {
	t.Parallel()
	p := NewPalette(testCommands)
	p.Open()

	p = typeText(p, "go")
	p, _ = press(p, tea.KeyTab)
	if got := p.input.Value(); got != "goal:set " {
		t.Fatalf("expected goal:set with a space, got %q", got)
	}
	if n := len(p.Suggestions()); n != 2 {
		t.Fatalf("expected both goal:set forms, got %d", n)
	}
}

func TestSuggestionsNarrowToNamedCommand(t *testing.T) {
	t.Parallel()
	p := NewPalette(testCommands)
	p.Open()
	if n := len(p.Suggestions()); n != len(testCommands) {
		t.Fatalf("empty prompt should list every command, got %d", n)
	}

	p = typeText(p, "session:end now")
	got := p.Suggestions()
	if len(got) != 1 || got[0].Name != "session:end" {
		t.Fatalf("unexpected suggestions %+v", got)
	}
}

func TestSubmitEmitsTrimmedLineAndCloses(t *testing.T) {
	t.Parallel()
	p := NewPalette(testCommands)
	p.Open()
	p = typeText(p, "  timer:reset ")

	p, cmd := press(p, tea.KeyEnter)
	if p.Visible() {
		t.Fatalf("palette stayed open after submit")
	}
	msg, ok := cmd().(PaletteSubmitMsg)
	if !ok || msg.Input != "timer:reset" {
		t.Fatalf("unexpected submit %#v", msg)
	}
}

func TestEscCancels(t *testing.T) {
	t.Parallel()
	p := NewPalette(testCommands)
	p.Open()
	p = typeText(p, "goal")

	p, cmd := press(p, tea.KeyEsc)
	if p.Visible() || p.View() != "" {
		t.Fatalf("palette stayed open after esc")
	}
	if _, ok := cmd().(PaletteCancelMsg); !ok {
		t.Fatalf("expected cancel message")
	}
}

func TestHistoryRecallsSubmittedLines(t *testing.T) {
	t.Parallel()
	p := NewPalette(testCommands)
	for _, line := range []string{"session:end", "goal:set dailyFrequency 3", "goal:set dailyFrequency 3"} {
		p.Open()
		p = typeText(p, line)
		p, _ = press(p, tea.KeyEnter)
	}
	if len(p.history) != 2 {
		t.Fatalf("repeated line should be kept once, got %v", p.history)
	}

	p.Open()
	p, _ = press(p, tea.KeyUp)
	if got := p.input.Value(); got != "goal:set dailyFrequency 3" {
		t.Fatalf("expected newest line, got %q", got)
	}
	p, _ = press(p, tea.KeyUp)
	p, _ = press(p, tea.KeyUp)
	if got := p.input.Value(); got != "session:end" {
		t.Fatalf("expected oldest line to stick, got %q", got)
	}
	p, _ = press(p, tea.KeyDown)
	p, _ = press(p, tea.KeyDown)
	if got := p.input.Value(); got != "" {
		t.Fatalf("expected empty prompt past the newest line, got %q", got)
	}
}

func TestClosedPaletteIgnoresInput(t *testing.T) {
	t.Parallel()
	p := NewPalette(testCommands)
	p = typeText(p, "session:end")
	if p.input.Value() != "" || p.Visible() {
		t.Fatalf("closed palette accepted input")
	}
}
