package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"habitsync/internal/ui/theme"
)

// PaletteSubmitMsg carries a confirmed command line.
type PaletteSubmitMsg struct{ Input string }

// PaletteCancelMsg reports that the palette was closed without a command.
type PaletteCancelMsg struct{}

// Command is one entry the palette offers. Args is shown after the name and
// is never completed.
type Command struct {
	Name string
	Args string
}

// String renders the command the way the palette suggests it.
func (c Command) String() string {
	if c.Args == "" {
		return c.Name
	}
	return c.Name + " " + c.Args
}

const (
	maxSuggestions = 6
	historySize    = 20
)

var (
	paletteStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Peach).
			Background(theme.Mantle).
			Foreground(theme.Text).
			Padding(0, 1)

	suggestionStyle = lipgloss.NewStyle().Foreground(theme.Subtext0)
)

// Palette is a one-line command prompt. Tab completes the command name,
// up and down walk the lines submitted earlier in this run.
type Palette struct {
	input    textinput.Model
	commands []Command
	history  []string
	recall   int
	visible  bool
	width    int
}

// NewPalette returns a closed palette offering commands.
func NewPalette(commands []Command) Palette {
	ti := textinput.New()
	ti.Placeholder = "session:end, goal:set dailyFrequency 2"
	ti.CharLimit = 128
	return Palette{input: ti, commands: commands}
}

// Visible reports whether the palette is open.
func (p Palette) Visible() bool { return p.visible }

// Open shows an empty prompt and returns the focus command.
func (p *Palette) Open() tea.Cmd {
	p.visible = true
	p.recall = len(p.history)
	p.input.SetValue("")
	return p.input.Focus()
}

// SetWidth sets the rendered width, borders included.
func (p *Palette) SetWidth(w int) { p.width = w }

// Update handles input while the palette is open and ignores it otherwise.
func (p Palette) Update(msg tea.Msg) (Palette, tea.Cmd) {
	if !p.visible {
		return p, nil
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEsc:
			p.close()
			return p, func() tea.Msg { return PaletteCancelMsg{} }
		case tea.KeyEnter:
			line := strings.TrimSpace(p.input.Value())
			p.remember(line)
			p.close()
			return p, func() tea.Msg { return PaletteSubmitMsg{Input: line} }
		case tea.KeyTab:
			p.complete()
			return p, nil
		case tea.KeyUp:
			p.step(-1)
			return p, nil
		case tea.KeyDown:
			p.step(1)
			return p, nil
		}
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd
}

func (p *Palette) close() {
	p.visible = false
	p.input.Blur()
}

func (p *Palette) remember(line string) {
	if line == "" {
		return
	}
	if n := len(p.history); n > 0 && p.history[n-1] == line {
		return
	}
	p.history = append(p.history, line)
	if len(p.history) > historySize {
		p.history = p.history[len(p.history)-historySize:]
	}
}

// step moves through history; past the newest entry the prompt is empty.
func (p *Palette) step(delta int) {
	next := p.recall + delta
	if next < 0 || next > len(p.history) {
		return
	}
	p.recall = next
	line := ""
	if next < len(p.history) {
		line = p.history[next]
	}
	p.input.SetValue(line)
	p.input.CursorEnd()
}

// complete extends the typed name to the longest prefix the matching
// commands share, adding a space once it names a single command.
func (p *Palette) complete() {
	typed := p.input.Value()
	if strings.ContainsRune(typed, ' ') {
		return
	}
	matches := p.Suggestions()
	if len(matches) == 0 {
		return
	}
	common, single := matches[0].Name, true
	for _, c := range matches[1:] {
		common = sharedPrefix(common, c.Name)
		single = single && c.Name == matches[0].Name
	}
	if single {
		common += " "
	}
	if len(common) >= len(typed) {
		p.input.SetValue(common)
		p.input.CursorEnd()
	}
}

func sharedPrefix(a, b string) string {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:n]
}

// Suggestions lists the commands whose name starts with the typed word.
// Once arguments are being typed only the named command is listed.
func (p Palette) Suggestions() []Command {
	typed := strings.ToLower(strings.TrimLeft(p.input.Value(), " "))
	name, _, hasArgs := strings.Cut(typed, " ")
	var out []Command
	for _, c := range p.commands {
		lower := strings.ToLower(c.Name)
		if hasArgs && lower != name {
			continue
		}
		if !strings.HasPrefix(lower, name) {
			continue
		}
		out = append(out, c)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

// View renders the open palette and is empty while it is closed.
func (p Palette) View() string {
	if !p.visible {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Command") + "\n")
	sb.WriteString(": " + p.input.View() + "\n")
	if suggestions := p.Suggestions(); len(suggestions) > 0 {
		sb.WriteString("\n")
		for _, c := range suggestions {
			sb.WriteString(suggestionStyle.Render("  "+c.String()) + "\n")
		}
	}

	w := p.width
	if w < 20 {
		w = 56
	}
	return paletteStyle.Width(w - 2).Render(sb.String())
}
