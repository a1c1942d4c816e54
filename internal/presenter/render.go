package presenter

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/sirupsen/logrus"

	"conduit/internal/roster"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

// Headers are the roster table columns, in display order.
var Headers = []string{"Username", "Articles", "Favorites", "First article"}

// Cells formats one row. The first article date is shown as received.
func Cells(row roster.Row) []string {
	first := "-"
	if row.FirstArticleDate != nil {
		first = *row.FirstArticleDate
	}
	return []string{
		row.Username,
		strconv.Itoa(row.TotalArticles),
		strconv.Itoa(row.TotalFavorites),
		first,
	}
}

// Render writes rows as a bordered table, one line per row in the given order.
func Render(w io.Writer, rows []roster.Row) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(Headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, row := range rows {
		t.Row(Cells(row)...)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// Fetcher retrieves the roster once.
type Fetcher interface {
	FetchRoster(ctx context.Context) ([]roster.Row, error)
}

// LoadAndRender performs one fetch and renders the result to w. A failed
// fetch is reported to logger and returned; nothing is written to w.
func LoadAndRender(ctx context.Context, fetcher Fetcher, w io.Writer, logger logrus.FieldLogger) error {
	rows, err := fetcher.FetchRoster(ctx)
	if err != nil {
		logger.WithError(err).Error("fetch roster")
		return err
	}
	return Render(w, rows)
}
