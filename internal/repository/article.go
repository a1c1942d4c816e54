package repository

import (
	"context"

	"conduit/internal/domain"
)

// ArticleRepository exposes persistence operations for articles and favorites.
type ArticleRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, article *domain.Article) (int64, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Article, error)
	List(ctx context.Context) ([]domain.Article, error)
	// ListByAuthor returns the author's articles in store order (ascending id).
	ListByAuthor(ctx context.Context, authorID int64) ([]domain.Article, error)
	// Favorite records userID's favorite and returns the article's new count.
	// Favoriting twice is a no-op.
	Favorite(ctx context.Context, userID, articleID int64) (int, error)
	Unfavorite(ctx context.Context, userID, articleID int64) (int, error)
	// StatsByAuthor aggregates every author's articles in a single query.
	// Authors without articles are absent from the result.
	StatsByAuthor(ctx context.Context, rule domain.FirstArticleRule) (map[int64]domain.AuthorStats, error)
}
