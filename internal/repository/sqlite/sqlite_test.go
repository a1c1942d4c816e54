package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"conduit/internal/domain"
	"conduit/internal/repository"
)

type StoreTestSuite struct {
	suite.Suite
	ctx   context.Context
	store *Store
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) SetupTest() {
	s.ctx = context.Background()
	store, err := NewStore(s.ctx, ":memory:")
	s.Require().NoError(err)
	s.store = store
}

func (s *StoreTestSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *StoreTestSuite) createUser(name string) *domain.User {
	user := &domain.User{Username: name, PasswordHash: "hash"}
	_, err := s.store.Users.Create(s.ctx, user)
	s.Require().NoError(err)
	return user
}

func (s *StoreTestSuite) createArticle(author *domain.User, slug string, favorites int, createdAt time.Time) *domain.Article {
	article := &domain.Article{
		Slug:           slug,
		Title:          slug,
		AuthorID:       author.ID,
		FavoritesCount: favorites,
		CreatedAt:      createdAt,
	}
	_, err := s.store.Articles.Create(s.ctx, article)
	s.Require().NoError(err)
	return article
}

func (s *StoreTestSuite) TestUsers_CreateAndLookup() {
	alice := s.createUser("alice")
	s.NotZero(alice.ID)

	byName, err := s.store.Users.GetByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(alice.ID, byName.ID)

	byID, err := s.store.Users.GetByID(s.ctx, alice.ID)
	s.Require().NoError(err)
	s.Equal("alice", byID.Username)

	_, err = s.store.Users.GetByUsername(s.ctx, "nobody")
	s.ErrorIs(err, repository.ErrNotFound)

	_, err = s.store.Users.Create(s.ctx, &domain.User{Username: "alice", PasswordHash: "x"})
	s.ErrorIs(err, repository.ErrConflict)
}

func (s *StoreTestSuite) TestUsers_ListInStoreOrder() {
	users, err := s.store.Users.List(s.ctx)
	s.Require().NoError(err)
	s.NotNil(users)
	s.Empty(users)

	s.createUser("carol")
	s.createUser("alice")

	users, err = s.store.Users.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(users, 2)
	s.Equal("carol", users[0].Username)
	s.Equal("alice", users[1].Username)
}

func (s *StoreTestSuite) TestArticles_ListByAuthor() {
	alice := s.createUser("alice")
	bob := s.createUser("bob")
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.createArticle(alice, "one", 3, t0)
	s.createArticle(bob, "two", 0, t0)
	s.createArticle(alice, "three", 5, t0.Add(time.Hour))

	articles, err := s.store.Articles.ListByAuthor(s.ctx, alice.ID)
	s.Require().NoError(err)
	s.Require().Len(articles, 2)
	s.Equal("one", articles[0].Slug)
	s.Equal("three", articles[1].Slug)
	s.True(articles[0].CreatedAt.Equal(t0))

	all, err := s.store.Articles.List(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 3)

	got, err := s.store.Articles.GetBySlug(s.ctx, "two")
	s.Require().NoError(err)
	s.Equal(bob.ID, got.AuthorID)

	_, err = s.store.Articles.GetBySlug(s.ctx, "missing")
	s.ErrorIs(err, repository.ErrNotFound)
}

func (s *StoreTestSuite) TestArticles_FavoriteIsIdempotent() {
	alice := s.createUser("alice")
	bob := s.createUser("bob")
	article := s.createArticle(alice, "post", 0, time.Time{})

	count, err := s.store.Articles.Favorite(s.ctx, bob.ID, article.ID)
	s.Require().NoError(err)
	s.Equal(1, count)

	count, err = s.store.Articles.Favorite(s.ctx, bob.ID, article.ID)
	s.Require().NoError(err)
	s.Equal(1, count)

	count, err = s.store.Articles.Favorite(s.ctx, alice.ID, article.ID)
	s.Require().NoError(err)
	s.Equal(2, count)

	count, err = s.store.Articles.Unfavorite(s.ctx, bob.ID, article.ID)
	s.Require().NoError(err)
	s.Equal(1, count)

	count, err = s.store.Articles.Unfavorite(s.ctx, bob.ID, article.ID)
	s.Require().NoError(err)
	s.Equal(1, count)

	_, err = s.store.Articles.Favorite(s.ctx, bob.ID, 999)
	s.ErrorIs(err, repository.ErrNotFound)
}

func (s *StoreTestSuite) TestArticles_StatsByAuthor() {
	alice := s.createUser("alice")
	bob := s.createUser("bob")
	s.createUser("carol")

	early := time.Date(2023, 6, 1, 8, 0, 0, 0, time.UTC)
	late := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	// alice's first article in store order is the later one
	s.createArticle(alice, "late", 3, late)
	s.createArticle(alice, "early", 5, early)
	s.createArticle(bob, "only", 0, late)

	earliest, err := s.store.Articles.StatsByAuthor(s.ctx, domain.FirstArticleEarliest)
	s.Require().NoError(err)
	s.Len(earliest, 2)

	a := earliest[alice.ID]
	s.Equal(2, a.TotalArticles)
	s.Equal(8, a.TotalFavorites)
	s.Require().NotNil(a.FirstArticleDate)
	s.True(a.FirstArticleDate.Equal(early))

	b := earliest[bob.ID]
	s.Equal(1, b.TotalArticles)
	s.Equal(0, b.TotalFavorites)

	positional, err := s.store.Articles.StatsByAuthor(s.ctx, domain.FirstArticlePositional)
	s.Require().NoError(err)
	s.Require().NotNil(positional[alice.ID].FirstArticleDate)
	s.True(positional[alice.ID].FirstArticleDate.Equal(late))
}

func (s *StoreTestSuite) TestExports_Lifecycle() {
	export := &domain.Export{Status: domain.ExportStatusPending}
	id, err := s.store.Exports.Create(s.ctx, export)
	s.Require().NoError(err)
	s.NotZero(id)

	pending, err := s.store.Exports.ListByStatuses(s.ctx, domain.ExportStatusPending, domain.ExportStatusRunning)
	s.Require().NoError(err)
	s.Len(pending, 1)

	s.Require().NoError(s.store.Exports.UpdateStatus(s.ctx, id, domain.ExportStatusRunning, nil))
	done := time.Date(2024, 3, 3, 3, 3, 3, 0, time.UTC)
	s.Require().NoError(s.store.Exports.MarkCompleted(s.ctx, id, "s3://b/k.json", 4, done))

	got, err := s.store.Exports.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(domain.ExportStatusCompleted, got.Status)
	s.Equal(4, got.Rows)
	s.Equal("s3://b/k.json", got.Location)
	s.Require().NotNil(got.CompletedAt)
	s.True(got.CompletedAt.Equal(done))

	none, err := s.store.Exports.ListByStatuses(s.ctx)
	s.Require().NoError(err)
	s.Empty(none)

	s.ErrorIs(s.store.Exports.UpdateStatus(s.ctx, 999, domain.ExportStatusFailed, nil), repository.ErrNotFound)
	_, err = s.store.Exports.Get(s.ctx, 999)
	s.ErrorIs(err, repository.ErrNotFound)
}
