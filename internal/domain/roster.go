package domain

import (
	"fmt"
	"strings"
	"time"
)

// UserStat is one roster row: a read projection over a user and the
// articles they authored, built fresh for every request.
type UserStat struct {
	Username         string
	TotalArticles    int
	TotalFavorites   int
	FirstArticleDate *time.Time
}

// AuthorStats is the per-author aggregate produced by a store in one query.
type AuthorStats struct {
	AuthorID         int64
	TotalArticles    int
	TotalFavorites   int
	FirstArticleDate *time.Time
}

// FirstArticleRule selects which article supplies UserStat.FirstArticleDate.
type FirstArticleRule string

const (
	// FirstArticlePositional takes the creation timestamp of the first
	// article in store order (lowest id), whatever its timestamp. It is the
	// default.
	FirstArticlePositional FirstArticleRule = "positional"
	// FirstArticleEarliest takes the minimum creation timestamp.
	FirstArticleEarliest FirstArticleRule = "earliest"
)

// ParseFirstArticleRule maps a config value onto a rule. Empty means positional.
func ParseFirstArticleRule(v string) (FirstArticleRule, error) {
	switch FirstArticleRule(strings.ToLower(strings.TrimSpace(v))) {
	case "", FirstArticlePositional:
		return FirstArticlePositional, nil
	case FirstArticleEarliest:
		return FirstArticleEarliest, nil
	default:
		return "", fmt.Errorf("unknown first article rule %q", v)
	}
}

// FirstArticleDate applies the rule to articles listed in store order.
// It returns nil for an empty list.
func (r FirstArticleRule) FirstArticleDate(articles []Article) *time.Time {
	if len(articles) == 0 {
		return nil
	}
	first := articles[0].CreatedAt
	if r != FirstArticleEarliest {
		return &first
	}
	for _, a := range articles[1:] {
		if a.CreatedAt.Before(first) {
			first = a.CreatedAt
		}
	}
	return &first
}
