package presenter

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"conduit/internal/roster"
)

type rosterLoadedMsg struct {
	rows []roster.Row
}

type rosterFailedMsg struct {
	err error
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")).MarginBottom(1)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).MarginTop(1)
)

// Model is the interactive roster view. It fetches once on Init and keeps
// the last list it received.
type Model struct {
	ctx     context.Context
	fetcher Fetcher
	logger  logrus.FieldLogger
	table   table.Model
	rows    []roster.Row
	loading bool
}

func NewModel(ctx context.Context, fetcher Fetcher, logger logrus.FieldLogger) Model {
	columns := []table.Column{
		{Title: Headers[0], Width: 20},
		{Title: Headers[1], Width: 10},
		{Title: Headers[2], Width: 10},
		{Title: Headers[3], Width: 26},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#7D56F4"))
	t.SetStyles(s)

	return Model{
		ctx:     ctx,
		fetcher: fetcher,
		logger:  logger,
		table:   t,
		loading: true,
	}
}

// Init issues the view's single roster request.
func (m Model) Init() tea.Cmd {
	return m.load
}

func (m Model) load() tea.Msg {
	rows, err := m.fetcher.FetchRoster(m.ctx)
	if err != nil {
		return rosterFailedMsg{err: err}
	}
	return rosterLoadedMsg{rows: rows}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case rosterLoadedMsg:
		m.loading = false
		m.rows = msg.rows
		m.table.SetRows(tableRows(msg.rows))
		return m, nil
	case rosterFailedMsg:
		// the table keeps whatever it showed before
		m.loading = false
		m.logger.WithError(msg.err).Error("fetch roster")
		return m, nil
	case tea.WindowSizeMsg:
		if h := msg.Height - 6; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Roster"))
	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")

	footer := "↑/↓ scroll • q quit"
	if m.loading {
		footer = "loading… • q quit"
	}
	b.WriteString(footerStyle.Render(footer))
	return b.String()
}

// Rows returns the list currently displayed.
func (m Model) Rows() []roster.Row {
	return m.rows
}

func tableRows(rows []roster.Row) []table.Row {
	out := make([]table.Row, len(rows))
	for i, row := range rows {
		out[i] = table.Row(Cells(row))
	}
	return out
}
