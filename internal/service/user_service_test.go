package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conduit/internal/domain"
	"conduit/internal/repository/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.NewStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestUserService_RegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(newStore(t).Users, "")

	user, err := svc.Register(ctx, "  alice ", "correct horse", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Empty(t, user.PasswordHash)

	_, err = svc.Register(ctx, "alice", "another password", "")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	got, err := svc.Authenticate(ctx, "alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(ctx, "alice", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody", "whatever1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserService_RegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(newStore(t).Users, "let-me-in")

	_, err := svc.Register(ctx, "", "password1", "let-me-in")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Register(ctx, "bob", "short", "let-me-in")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Register(ctx, "bob", "password1", "guess")
	assert.ErrorIs(t, err, ErrInvalidRegistrationPassword)

	_, err = svc.Register(ctx, "bob", "password1", "let-me-in")
	assert.NoError(t, err)
}

func TestArticleService_CreateAndFavorite(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	users := NewUserService(store.Users, "")
	articles := NewArticleService(store.Articles)

	alice, err := users.Register(ctx, "alice", "password1", "")
	require.NoError(t, err)
	bob, err := users.Register(ctx, "bob", "password1", "")
	require.NoError(t, err)

	_, err = articles.CreateArticle(ctx, alice.ID, "   ", "", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	a1, err := articles.CreateArticle(ctx, alice.ID, "Hello, World!", "greeting", "body")
	require.NoError(t, err)
	assert.Regexp(t, `^hello-world-[0-9a-f]{8}$`, a1.Slug)

	a2, err := articles.CreateArticle(ctx, alice.ID, "Hello, World!", "", "")
	require.NoError(t, err)
	assert.NotEqual(t, a1.Slug, a2.Slug)

	fav, err := articles.Favorite(ctx, bob.ID, a1.Slug)
	require.NoError(t, err)
	assert.Equal(t, 1, fav.FavoritesCount)

	unfav, err := articles.Unfavorite(ctx, bob.ID, a1.Slug)
	require.NoError(t, err)
	assert.Equal(t, 0, unfav.FavoritesCount)

	list, err := articles.ListByAuthor(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestRosterService_AgainstSQLite(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	users := NewUserService(store.Users, "")
	articles := NewArticleService(store.Articles)

	alice, err := users.Register(ctx, "alice", "password1", "")
	require.NoError(t, err)
	_, err = users.Register(ctx, "bob", "password1", "")
	require.NoError(t, err)
	carol, err := users.Register(ctx, "carol", "password1", "")
	require.NoError(t, err)

	first, err := articles.CreateArticle(ctx, alice.ID, "First", "", "")
	require.NoError(t, err)
	second, err := articles.CreateArticle(ctx, alice.ID, "Second", "", "")
	require.NoError(t, err)
	for _, fan := range []int64{alice.ID, carol.ID} {
		_, err = articles.Favorite(ctx, fan, second.Slug)
		require.NoError(t, err)
	}
	_, err = articles.Favorite(ctx, carol.ID, first.Slug)
	require.NoError(t, err)

	for _, perUser := range []bool{false, true} {
		svc := NewRosterService(store.Users, store.Articles, RosterConfig{PerUserLookups: perUser})
		got, err := svc.ComputeRoster(ctx)
		require.NoError(t, err)
		require.Len(t, got, 3)

		assert.Equal(t, "alice", got[0].Username)
		assert.Equal(t, 2, got[0].TotalArticles)
		assert.Equal(t, 3, got[0].TotalFavorites)
		require.NotNil(t, got[0].FirstArticleDate)
		assert.True(t, got[0].FirstArticleDate.Equal(first.CreatedAt))

		assert.Equal(t, "bob", got[1].Username)
		assert.Zero(t, got[1].TotalArticles)
		assert.Nil(t, got[1].FirstArticleDate)

		assert.Equal(t, "carol", got[2].Username)
		assert.Zero(t, got[2].TotalArticles)
	}
}

func TestRosterService_DefaultRuleFollowsStoreOrder(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	alice, err := NewUserService(store.Users, "").Register(ctx, "alice", "password1", "")
	require.NoError(t, err)

	later := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	earlier := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	for _, a := range []*domain.Article{
		{Slug: "later", Title: "Later", AuthorID: alice.ID, FavoritesCount: 3, CreatedAt: later},
		{Slug: "earlier", Title: "Earlier", AuthorID: alice.ID, FavoritesCount: 5, CreatedAt: earlier},
	} {
		_, err := store.Articles.Create(ctx, a)
		require.NoError(t, err)
	}

	for _, perUser := range []bool{false, true} {
		got, err := NewRosterService(store.Users, store.Articles, RosterConfig{PerUserLookups: perUser}).ComputeRoster(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 2, got[0].TotalArticles)
		assert.Equal(t, 8, got[0].TotalFavorites)
		require.NotNil(t, got[0].FirstArticleDate)
		assert.True(t, got[0].FirstArticleDate.Equal(later), "perUser=%v got %v", perUser, got[0].FirstArticleDate)

		got, err = NewRosterService(store.Users, store.Articles, RosterConfig{
			FirstArticle:   domain.FirstArticleEarliest,
			PerUserLookups: perUser,
		}).ComputeRoster(ctx)
		require.NoError(t, err)
		assert.True(t, got[0].FirstArticleDate.Equal(earlier), "perUser=%v got %v", perUser, got[0].FirstArticleDate)
	}
}
