package domain

import "time"

// User is an account that authors and favorites articles. Every user appears
// exactly once in the roster.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
