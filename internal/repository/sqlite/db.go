package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"conduit/internal/repository"
)

// Open opens (or creates) a sqlite database at the given path and ensures directories exist.
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// a single connection also keeps ":memory:" databases alive across queries
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return db, nil
}

// Store bundles the sqlite repositories sharing one handle.
type Store struct {
	DB       *sql.DB
	Users    repository.UserRepository
	Articles repository.ArticleRepository
	Exports  repository.ExportRepository
}

// NewStore opens the database and creates the schema. Users go first since
// articles and favorites reference them.
func NewStore(ctx context.Context, path string) (*Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	s := &Store{
		DB:       db,
		Users:    NewUserRepository(db),
		Articles: NewArticleRepository(db),
		Exports:  NewExportRepository(db),
	}
	for _, initer := range []interface {
		Init(ctx context.Context) error
	}{s.Users, s.Articles, s.Exports} {
		if err := initer.Init(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}
