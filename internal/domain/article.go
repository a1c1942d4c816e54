package domain

import "time"

// Article is a blog post authored by a single user.
type Article struct {
	ID             int64
	Slug           string
	Title          string
	Description    string
	Body           string
	AuthorID       int64
	FavoritesCount int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
