package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"conduit/internal/domain"
	"conduit/internal/repository"
)

const createArticlesTable = `
CREATE TABLE IF NOT EXISTS articles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	slug TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL DEFAULT '',
	author_id INTEGER NOT NULL,
	favorites_count INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY(author_id) REFERENCES users(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_articles_author_id ON articles(author_id);
CREATE TABLE IF NOT EXISTS favorites (
	user_id INTEGER NOT NULL,
	article_id INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY(user_id, article_id),
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE,
	FOREIGN KEY(article_id) REFERENCES articles(id) ON DELETE CASCADE
);
`

const selectArticle = `
SELECT id, slug, title, description, body, author_id, favorites_count, created_at, updated_at
FROM articles`

type ArticleRepository struct {
	db *sql.DB
}

func NewArticleRepository(db *sql.DB) repository.ArticleRepository {
	return &ArticleRepository{db: db}
}

func (r *ArticleRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createArticlesTable); err != nil {
		return fmt.Errorf("create articles table: %w", err)
	}
	return nil
}

// Create keeps a caller supplied CreatedAt so imported articles retain their dates.
func (r *ArticleRepository) Create(ctx context.Context, article *domain.Article) (int64, error) {
	now := time.Now().UTC()
	if article.CreatedAt.IsZero() {
		article.CreatedAt = now
	}
	article.CreatedAt = article.CreatedAt.UTC()
	article.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO articles (slug, title, description, body, author_id, favorites_count, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		article.Slug,
		article.Title,
		article.Description,
		article.Body,
		article.AuthorID,
		article.FavoritesCount,
		article.CreatedAt,
		article.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return 0, fmt.Errorf("article %s: %w", article.Slug, repository.ErrConflict)
		}
		return 0, fmt.Errorf("insert article: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("article last insert id: %w", err)
	}
	article.ID = id
	return id, nil
}

func (r *ArticleRepository) GetBySlug(ctx context.Context, slug string) (*domain.Article, error) {
	row := r.db.QueryRowContext(ctx, selectArticle+`
WHERE slug = ?`, slug)
	return scanArticle(row)
}

func (r *ArticleRepository) List(ctx context.Context) ([]domain.Article, error) {
	return r.query(ctx, selectArticle+`
ORDER BY id DESC`)
}

func (r *ArticleRepository) ListByAuthor(ctx context.Context, authorID int64) ([]domain.Article, error) {
	return r.query(ctx, selectArticle+`
WHERE author_id = ?
ORDER BY id ASC`, authorID)
}

func (r *ArticleRepository) query(ctx context.Context, query string, args ...any) ([]domain.Article, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
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
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, nil
}

func (r *ArticleRepository) Favorite(ctx context.Context, userID, articleID int64) (int, error) {
	return r.toggleFavorite(ctx, articleID, `
INSERT OR IGNORE INTO favorites (user_id, article_id, created_at)
VALUES (?, ?, ?)`, 1, userID, articleID, time.Now().UTC())
}

func (r *ArticleRepository) Unfavorite(ctx context.Context, userID, articleID int64) (int, error) {
	return r.toggleFavorite(ctx, articleID, `
DELETE FROM favorites WHERE user_id = ? AND article_id = ?`, -1, userID, articleID)
}

// toggleFavorite runs stmt and moves favorites_count by delta only when stmt
// changed a row, so repeated calls leave the count alone.
func (r *ArticleRepository) toggleFavorite(ctx context.Context, articleID int64, stmt string, delta int, args ...any) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT favorites_count FROM articles WHERE id = ?`, articleID).Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("article: %w", repository.ErrNotFound)
		}
		return 0, fmt.Errorf("read favorites count: %w", err)
	}

	res, err := tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("update favorite: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("favorite rows affected: %w", err)
	}
	if aff == 0 {
		return count, nil
	}

	count += delta
	if _, err := tx.ExecContext(ctx, `
UPDATE articles SET favorites_count = ?, updated_at = ? WHERE id = ?`,
		count, time.Now().UTC(), articleID,
	); err != nil {
		return 0, fmt.Errorf("update favorites count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit favorite: %w", err)
	}
	return count, nil
}

func (r *ArticleRepository) StatsByAuthor(ctx context.Context, rule domain.FirstArticleRule) (map[int64]domain.AuthorStats, error) {
	// first_id picks the article whose created_at becomes the first article
	// date; joining back on it keeps created_at a typed DATETIME column.
	firstID := `MIN(id)`
	if rule == domain.FirstArticleEarliest {
		firstID = `(SELECT f.id FROM articles f WHERE f.author_id = articles.author_id ORDER BY f.created_at ASC, f.id ASC LIMIT 1)`
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT s.author_id, s.total, s.favorites, a.created_at
FROM (
	SELECT author_id, COUNT(*) AS total, COALESCE(SUM(favorites_count), 0) AS favorites, `+firstID+` AS first_id
	FROM articles
	GROUP BY author_id
) s
JOIN articles a ON a.id = s.first_id`)
	if err != nil {
		return nil, fmt.Errorf("query author stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[int64]domain.AuthorStats)
	for rows.Next() {
		var (
			st        domain.AuthorStats
			createdAt time.Time
		)
		if err := rows.Scan(&st.AuthorID, &st.TotalArticles, &st.TotalFavorites, &createdAt); err != nil {
			return nil, fmt.Errorf("scan author stats: %w", err)
		}
		createdAt = createdAt.UTC()
		st.FirstArticleDate = &createdAt
		stats[st.AuthorID] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate author stats: %w", err)
	}
	return stats, nil
}

func scanArticle(row interface {
	Scan(dest ...any) error
}) (*domain.Article, error) {
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
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("article: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan article: %w", err)
	}
	article.CreatedAt = article.CreatedAt.UTC()
	article.UpdatedAt = article.UpdatedAt.UTC()
	return &article, nil
}
