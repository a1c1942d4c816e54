package service

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"conduit/internal/domain"
	"conduit/internal/repository"
)

// ArticleService covers authoring, listing and favoriting articles.
type ArticleService interface {
	CreateArticle(ctx context.Context, authorID int64, title, description, body string) (*domain.Article, error)
	GetArticle(ctx context.Context, slug string) (*domain.Article, error)
	ListArticles(ctx context.Context) ([]domain.Article, error)
	ListByAuthor(ctx context.Context, authorID int64) ([]domain.Article, error)
	Favorite(ctx context.Context, userID int64, slug string) (*domain.Article, error)
	Unfavorite(ctx context.Context, userID int64, slug string) (*domain.Article, error)
}

type articleService struct {
	articles repository.ArticleRepository
}

func NewArticleService(articles repository.ArticleRepository) ArticleService {
	return &articleService{articles: articles}
}

func (s *articleService) CreateArticle(ctx context.Context, authorID int64, title, description, body string) (*domain.Article, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	article := &domain.Article{
		Slug:        slugify(title),
		Title:       title,
		Description: strings.TrimSpace(description),
		Body:        body,
		AuthorID:    authorID,
	}
	if _, err := s.articles.Create(ctx, article); err != nil {
		return nil, err
	}
	return article, nil
}

func (s *articleService) GetArticle(ctx context.Context, slug string) (*domain.Article, error) {
	return s.articles.GetBySlug(ctx, slug)
}

func (s *articleService) ListArticles(ctx context.Context) ([]domain.Article, error) {
	return s.articles.List(ctx)
}

func (s *articleService) ListByAuthor(ctx context.Context, authorID int64) ([]domain.Article, error) {
	return s.articles.ListByAuthor(ctx, authorID)
}

func (s *articleService) Favorite(ctx context.Context, userID int64, slug string) (*domain.Article, error) {
	return s.toggle(ctx, slug, func(articleID int64) (int, error) {
		return s.articles.Favorite(ctx, userID, articleID)
	})
}

func (s *articleService) Unfavorite(ctx context.Context, userID int64, slug string) (*domain.Article, error) {
	return s.toggle(ctx, slug, func(articleID int64) (int, error) {
		return s.articles.Unfavorite(ctx, userID, articleID)
	})
}

func (s *articleService) toggle(ctx context.Context, slug string, apply func(articleID int64) (int, error)) (*domain.Article, error) {
	article, err := s.articles.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	count, err := apply(article.ID)
	if err != nil {
		return nil, err
	}
	article.FavoritesCount = count
	return article, nil
}

// slugify lowercases the title, joins its alphanumeric words with '-' and
// appends a short random suffix so equal titles get distinct slugs.
func slugify(title string) string {
	words := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	if len(words) == 0 {
		return suffix
	}
	return strings.Join(words, "-") + "-" + suffix
}
