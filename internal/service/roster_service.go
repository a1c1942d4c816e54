package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"conduit/internal/domain"
)

// ErrStoreUnavailable is returned when the user or article store fails while
// the roster is computed. No partial roster accompanies it.
var ErrStoreUnavailable = errors.New("roster store unavailable")

// RosterUsers enumerates every user in store order.
type RosterUsers interface {
	List(ctx context.Context) ([]domain.User, error)
}

// RosterArticles looks up one author's articles in store order.
type RosterArticles interface {
	ListByAuthor(ctx context.Context, authorID int64) ([]domain.Article, error)
}

// AuthorStatsSource is implemented by article stores that can aggregate all
// authors in one query.
type AuthorStatsSource interface {
	StatsByAuthor(ctx context.Context, rule domain.FirstArticleRule) (map[int64]domain.AuthorStats, error)
}

// RosterService computes per-user article statistics.
type RosterService interface {
	ComputeRoster(ctx context.Context) ([]domain.UserStat, error)
}

type RosterConfig struct {
	FirstArticle domain.FirstArticleRule
	// PerUserLookups forces one ListByAuthor call per user even when the
	// article store can aggregate in bulk.
	PerUserLookups bool
	Logger         logrus.FieldLogger
}

type rosterService struct {
	cfg      RosterConfig
	users    RosterUsers
	articles RosterArticles
	batch    AuthorStatsSource
}

func NewRosterService(users RosterUsers, articles RosterArticles, cfg RosterConfig) RosterService {
	if cfg.FirstArticle == "" {
		cfg.FirstArticle = domain.FirstArticlePositional
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	s := &rosterService{
		cfg:      cfg,
		users:    users,
		articles: articles,
	}
	if batch, ok := articles.(AuthorStatsSource); ok && !cfg.PerUserLookups {
		s.batch = batch
	}
	return s
}

// ComputeRoster returns one UserStat per user in the order the user store
// lists them.
func (s *rosterService) ComputeRoster(ctx context.Context) ([]domain.UserStat, error) {
	started := time.Now()

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %w", ErrStoreUnavailable, err)
	}

	var roster []domain.UserStat
	mode := "batched"
	if s.batch != nil {
		roster, err = s.fromBatch(ctx, users)
	} else {
		mode = "per-user"
		roster, err = s.perUser(ctx, users)
	}
	if err != nil {
		return nil, err
	}

	s.cfg.Logger.WithFields(logrus.Fields{
		"users":    len(roster),
		"mode":     mode,
		"rule":     s.cfg.FirstArticle,
		"duration": time.Since(started),
	}).Debug("roster computed")
	return roster, nil
}

func (s *rosterService) fromBatch(ctx context.Context, users []domain.User) ([]domain.UserStat, error) {
	stats, err := s.batch.StatsByAuthor(ctx, s.cfg.FirstArticle)
	if err != nil {
		return nil, fmt.Errorf("%w: aggregate articles: %w", ErrStoreUnavailable, err)
	}

	roster := make([]domain.UserStat, 0, len(users))
	for _, user := range users {
		row := domain.UserStat{Username: user.Username}
		if st, ok := stats[user.ID]; ok && st.TotalArticles > 0 {
			row.TotalArticles = st.TotalArticles
			row.TotalFavorites = st.TotalFavorites
			row.FirstArticleDate = st.FirstArticleDate
		}
		roster = append(roster, row)
	}
	return roster, nil
}

func (s *rosterService) perUser(ctx context.Context, users []domain.User) ([]domain.UserStat, error) {
	roster := make([]domain.UserStat, 0, len(users))
	for _, user := range users {
		articles, err := s.articles.ListByAuthor(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: articles of %s: %w", ErrStoreUnavailable, user.Username, err)
		}

		row := domain.UserStat{
			Username:         user.Username,
			TotalArticles:    len(articles),
			FirstArticleDate: s.cfg.FirstArticle.FirstArticleDate(articles),
		}
		for _, a := range articles {
			row.TotalFavorites += a.FavoritesCount
		}
		roster = append(roster, row)
	}
	return roster, nil
}
