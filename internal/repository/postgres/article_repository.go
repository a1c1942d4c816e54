package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"conduit/internal/domain"
	"conduit/internal/repository"
)

var createArticleTables = []string{
	`CREATE TABLE IF NOT EXISTS articles (
		id BIGSERIAL PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		author_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		favorites_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_author_id ON articles(author_id)`,
	`CREATE TABLE IF NOT EXISTS favorites (
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		article_id BIGINT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, article_id)
	)`,
}

const selectArticle = `SELECT id, slug, title, description, body, author_id, favorites_count, created_at, updated_at
		 FROM articles`

type ArticleRepository struct {
	pool *pgxpool.Pool
}

func NewArticleRepository(pool *pgxpool.Pool) repository.ArticleRepository {
	return &ArticleRepository{pool: pool}
}

func (r *ArticleRepository) Init(ctx context.Context) error {
	if err := execAll(ctx, r.pool, createArticleTables...); err != nil {
		return fmt.Errorf("create articles tables: %w", err)
	}
	return nil
}

func (r *ArticleRepository) Create(ctx context.Context, article *domain.Article) (int64, error) {
	now := time.Now().UTC()
	if article.CreatedAt.IsZero() {
		article.CreatedAt = now
	}
	article.CreatedAt = article.CreatedAt.UTC()
	article.UpdatedAt = now

	err := r.pool.QueryRow(ctx,
		`INSERT INTO articles (slug, title, description, body, author_id, favorites_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		article.Slug, article.Title, article.Description, article.Body,
		article.AuthorID, article.FavoritesCount, article.CreatedAt, article.UpdatedAt,
	).Scan(&article.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("article %s: %w", article.Slug, repository.ErrConflict)
		}
		return 0, fmt.Errorf("creating article: %w", err)
	}
	return article.ID, nil
}

func (r *ArticleRepository) GetBySlug(ctx context.Context, slug string) (*domain.Article, error) {
	return scanArticle(r.pool.QueryRow(ctx, selectArticle+` WHERE slug = $1`, slug))
}

func (r *ArticleRepository) List(ctx context.Context) ([]domain.Article, error) {
	return r.query(ctx, selectArticle+` ORDER BY id DESC`)
}

func (r *ArticleRepository) ListByAuthor(ctx context.Context, authorID int64) ([]domain.Article, error) {
	return r.query(ctx, selectArticle+` WHERE author_id = $1 ORDER BY id ASC`, authorID)
}

func (r *ArticleRepository) query(ctx context.Context, query string, args ...any) ([]domain.Article, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing articles: %w", err)
	}
	defer rows.Close()

	articles := []domain.Article{}
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating articles: %w", err)
	}
	return articles, nil
}

func (r *ArticleRepository) Favorite(ctx context.Context, userID, articleID int64) (int, error) {
	return r.toggleFavorite(ctx, articleID,
		`INSERT INTO favorites (user_id, article_id, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`,
		1, userID, articleID, time.Now().UTC())
}

func (r *ArticleRepository) Unfavorite(ctx context.Context, userID, articleID int64) (int, error) {
	return r.toggleFavorite(ctx, articleID,
		`DELETE FROM favorites WHERE user_id = $1 AND article_id = $2`,
		-1, userID, articleID)
}

func (r *ArticleRepository) toggleFavorite(ctx context.Context, articleID int64, stmt string, delta int, args ...any) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var count int
	err = tx.QueryRow(ctx, `SELECT favorites_count FROM articles WHERE id = $1 FOR UPDATE`, articleID).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("article: %w", repository.ErrNotFound)
		}
		return 0, fmt.Errorf("reading favorites count: %w", err)
	}

	tag, err := tx.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("updating favorite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return count, nil
	}

	err = tx.QueryRow(ctx,
		`UPDATE articles SET favorites_count = favorites_count + $1, updated_at = $2
		 WHERE id = $3
		 RETURNING favorites_count`,
		delta, time.Now().UTC(), articleID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("updating favorites count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing favorite: %w", err)
	}
	return count, nil
}

func (r *ArticleRepository) StatsByAuthor(ctx context.Context, rule domain.FirstArticleRule) (map[int64]domain.AuthorStats, error) {
	firstDate := `(ARRAY_AGG(created_at ORDER BY id ASC))[1]`
	if rule == domain.FirstArticleEarliest {
		firstDate = `MIN(created_at)`
	}

	rows, err := r.pool.Query(ctx,
		`SELECT author_id, COUNT(*), COALESCE(SUM(favorites_count), 0), `+firstDate+`
		 FROM articles
		 GROUP BY author_id`)
	if err != nil {
		return nil, fmt.Errorf("querying author stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[int64]domain.AuthorStats)
	for rows.Next() {
		var (
			st        domain.AuthorStats
			total     int64
			favorites int64
			createdAt time.Time
		)
		if err := rows.Scan(&st.AuthorID, &total, &favorites, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning author stats: %w", err)
		}
		st.TotalArticles = int(total)
		st.TotalFavorites = int(favorites)
		createdAt = createdAt.UTC()
		st.FirstArticleDate = &createdAt
		stats[st.AuthorID] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating author stats: %w", err)
	}
	return stats, nil
}

func scanArticle(row pgx.Row) (*domain.Article, error) {
	var article domain.Article
	if err := row.Scan(
		&article.ID,
		&article.Slug,
		&article.Title,
		&article.Description,
		&article.Body,
		&article.AuthorID,
		&article.FavoritesCount,
		&article.CreatedAt,
		&article.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("article: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scanning article: %w", err)
	}
	article.CreatedAt = article.CreatedAt.UTC()
	article.UpdatedAt = article.UpdatedAt.UTC()
	return &article, nil
}
