// Package tui holds the interactive prompts of the CLI.
package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// maxListed caps how many source ids the prompt shows
const maxListed = 10

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))
	itemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA")).
			PaddingLeft(2)
	activeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// Confirmer asks the user before indexed sources are removed. It satisfies
// syncer.Confirmer.
type Confirmer struct {
	In          io.Reader
	Out         io.Writer
	Interactive bool
}

// NewConfirmer uses the full-screen prompt when in is a terminal and a plain
// line prompt otherwise.
func NewConfirmer(in *os.File, out io.Writer) *Confirmer {
	fd := in.Fd()
	return &Confirmer{
		In:          in,
		Out:         out,
		Interactive: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
	}
}

// Confirm reports whether ids may be removed from the index
func (c *Confirmer) Confirm(ctx context.Context, ids []string) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	if !c.Interactive {
		return c.prompt(ids)
	}

	p := tea.NewProgram(newModel(ids),
		tea.WithInput(c.In),
		tea.WithOutput(c.Out),
		tea.WithContext(ctx),
	)
	final, err := p.Run()
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	m, ok := final.(model)
	if !ok {
		return false, nil
	}
	return m.confirmed, nil
}

func (c *Confirmer) prompt(ids []string) (bool, error) {
	fmt.Fprintln(c.Out, question(ids))
	for _, line := range listed(ids) {
		fmt.Fprintln(c.Out, "  "+line)
	}
	fmt.Fprint(c.Out, "Remove them? [y/N]: ")

	answer, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func question(ids []string) string {
	return fmt.Sprintf("%d source(s) disappeared from the corpus and will be removed from the index:", len(ids))
}

func listed(ids []string) []string {
	lines := make([]string, 0, maxListed+1)
	for i, id := range ids {
		if i == maxListed {
			lines = append(lines, fmt.Sprintf("... and %d more", len(ids)-maxListed))
			break
		}
		lines = append(lines, "- "+id)
	}
	return lines
}

// model is the bubbletea program behind the interactive prompt. No is the
// default choice.
type model struct {
	ids       []string
	yes       bool
	confirmed bool
	done      bool
}

func newModel(ids []string) model {
	return model{ids: ids}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "y", "Y":
		m.confirmed, m.done = true, true
		return m, tea.Quit
	case "n", "N", "q", "esc", "ctrl+c":
		m.confirmed, m.done = false, true
		return m, tea.Quit
	case "left", "right", "tab", "h", "l":
		m.yes = !m.yes
	case "enter":
		m.confirmed, m.done = m.yes, true
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	if m.done {
		return ""
	}
	items := make([]string, 0, maxListed+1)
	for _, line := range listed(m.ids) {
		items = append(items, itemStyle.Render(line))
	}

	yes, no := idleStyle.Render("  Yes  "), activeStyle.Render("[ No ]")
	if m.yes {
		yes, no = activeStyle.Render("[ Yes ]"), idleStyle.Render("  No  ")
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(question(m.ids)),
		strings.Join(items, "\n"),
		"",
		lipgloss.JoinHorizontal(lipgloss.Top, yes, "  ", no),
	)
	return boxStyle.Render(body) + "\n"
}
