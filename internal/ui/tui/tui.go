// Package tui is the interactive search surface: type a query, get ranked
// memories with confidence and method badges.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/dejaview/internal/search"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5C9CF5"))

	badgeHigh = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).Bold(true)

	badgeLow = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFB454"))

	methodStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8A8A8A"))
)

// SearchFunc runs one query against the retrieval pipeline.
type SearchFunc func(ctx context.Context, query string) []*search.Result

type resultsMsg struct {
	query   string
	results []*search.Result
	took    time.Duration
}

type Model struct {
	input    textinput.Model
	viewport viewport.Model
	doSearch SearchFunc

	status    string
	searching bool
	results   []*search.Result
	ready     bool
	width     int
	height    int
}

func NewModel(doSearch SearchFunc) Model {
	ti := textinput.New()
	ti.Placeholder = "What do you remember about the page?"
	ti.Focus()
	ti.CharLimit = 200

	return Model{
		input:    ti,
		doSearch: doSearch,
		status:   "Type a query and press enter.",
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			query := strings.TrimSpace(m.input.Value())
			if query == "" || m.searching {
				return m, nil
			}
			m.searching = true
			m.status = "Searching memories..."
			doSearch := m.doSearch
			return m, func() tea.Msg {
				start := time.Now()
				results := doSearch(context.Background(), query)
				return resultsMsg{query: query, results: results, took: time.Since(start)}
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-6)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 6
		}
		m.viewport.SetContent(m.renderResults())

	case resultsMsg:
		m.searching = false
		m.results = msg.results
		m.status = fmt.Sprintf("%d result(s) for %q in %s", len(msg.results), msg.query, msg.took.Round(time.Millisecond))
		if m.ready {
			m.viewport.SetContent(m.renderResults())
			m.viewport.GotoTop()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("dejaview"))
	sb.WriteString("\n")
	sb.WriteString(m.input.View())
	sb.WriteString("\n")
	sb.WriteString(statusStyle.Render(m.status))
	sb.WriteString("\n\n")
	sb.WriteString(m.viewport.View())
	return sb.String()
}

func (m Model) renderResults() string {
	if len(m.results) == 0 {
		return methodStyle.Render("No memories matched.")
	}

	var sb strings.Builder
	for i, r := range m.results {
		badge := badgeLow
		if r.Confidence >= 80 {
			badge = badgeHigh
		}

		fmt.Fprintf(&sb, "%d. %s %s %s\n", i+1,
			r.Title,
			badge.Render(fmt.Sprintf("[%d%%]", r.Confidence)),
			methodStyle.Render(string(r.Method)))
		sb.WriteString("   " + urlStyle.Render(r.URL) + "\n")
		if r.Reason != "" {
			sb.WriteString("   " + methodStyle.Render(r.Reason) + "\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
