// Package tui provides the full-screen diff review interface.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// FileDiff is one file's previewed change, ready to show.
type FileDiff struct {
	Path string
	Diff string
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Padding(0, 1)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	acceptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	declineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hunkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// Review walks the user through each diff in a full-screen viewer and returns
// the per-path decisions. Paths with no recorded decision count as declined.
func Review(items []FileDiff) (map[string]bool, error) {
	if len(items) == 0 {
		return map[string]bool{}, nil
	}

	p := tea.NewProgram(newReviewModel(items), tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return nil, err
	}

	final := result.(reviewModel)
	return final.decided, nil
}

type reviewModel struct {
	items    []FileDiff
	index    int
	decided  map[string]bool // path -> accepted
	viewport viewport.Model
	ready    bool
	quitting bool
}

func newReviewModel(items []FileDiff) reviewModel {
	return reviewModel{
		items:   items,
		decided: make(map[string]bool, len(items)),
	}
}

// Init initializes the review model
func (m reviewModel) Init() tea.Cmd {
	return nil
}

// Update handles input events
func (m reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// One line of header, one line of help
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-2)
			m.ready = true
			m.setContent()
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 2
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "y", "enter":
			return m.decide(true)

		case "n":
			return m.decide(false)

		case "a":
			// Accept everything still undecided and finish
			for _, item := range m.items {
				if _, ok := m.decided[item.Path]; !ok {
					m.decided[item.Path] = true
				}
			}
			m.quitting = true
			return m, tea.Quit

		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "left", "h":
			if m.index > 0 {
				m.index--
				m.setContent()
			}
			return m, nil

		case "right", "l", "tab":
			if m.index < len(m.items)-1 {
				m.index++
				m.setContent()
			}
			return m, nil
		}
	}

	// Everything else (arrows, page keys) scrolls the diff
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// decide records the decision for the current file and advances, finishing
// after the last one.
func (m reviewModel) decide(accepted bool) (tea.Model, tea.Cmd) {
	m.decided[m.items[m.index].Path] = accepted
	if m.index == len(m.items)-1 {
		m.quitting = true
		return m, tea.Quit
	}
	m.index++
	m.setContent()
	return m, nil
}

func (m *reviewModel) setContent() {
	m.viewport.SetContent(colorizeDiff(m.items[m.index].Diff))
	m.viewport.GotoTop()
}

// View renders the review screen
func (m reviewModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "loading..."
	}
	return m.headerView() + "\n" + m.viewport.View() + "\n" + m.helpView()
}

func (m reviewModel) headerView() string {
	item := m.items[m.index]
	header := titleStyle.Render(fmt.Sprintf("%d/%d", m.index+1, len(m.items))) + " " + item.Path
	if accepted, ok := m.decided[item.Path]; ok {
		if accepted {
			header += acceptStyle.Render("  [accept]")
		} else {
			header += declineStyle.Render("  [skip]")
		}
	}
	return header
}

func (m reviewModel) helpView() string {
	return mutedStyle.Render(fmt.Sprintf(
		"y accept  n skip  a accept rest  q done  h/l file  ↑/↓ scroll  %3.0f%%",
		m.viewport.ScrollPercent()*100))
}

// colorizeDiff colors a unified diff the same way the plain terminal output
// does: headers muted, hunks cyan, additions green, deletions red.
func colorizeDiff(diff string) string {
	lines := strings.Split(strings.TrimSuffix(diff, "\n"), "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			lines[i] = mutedStyle.Render(line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = hunkStyle.Render(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = acceptStyle.Render(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = declineStyle.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}
