// Package roster holds the JSON shape of roster rows shared by the API,
// the exporter and the presenter client.
package roster

import (
	"time"

	"conduit/internal/domain"
)

// Row is one element of the GET /api/roster array. FirstArticleDate is
// RFC3339 or null.
type Row struct {
	Username         string  `json:"username"`
	TotalArticles    int     `json:"totalArticles"`
	TotalFavorites   int     `json:"totalFavorites"`
	FirstArticleDate *string `json:"firstArticleDate"`
}

// Snapshot is the document written for a roster export.
type Snapshot struct {
	ExportID    int64  `json:"exportId"`
	GeneratedAt string `json:"generatedAt"`
	Roster      []Row  `json:"roster"`
}

// Rows converts stats to rows, keeping their order. It never returns nil so
// an empty roster encodes as [].
func Rows(stats []domain.UserStat) []Row {
	rows := make([]Row, len(stats))
	for i, st := range stats {
		rows[i] = Row{
			Username:       st.Username,
			TotalArticles:  st.TotalArticles,
			TotalFavorites: st.TotalFavorites,
		}
		if st.FirstArticleDate != nil {
			v := st.FirstArticleDate.UTC().Format(time.RFC3339)
			rows[i].FirstArticleDate = &v
		}
	}
	return rows
}
