// Package postgres implements the repositories on PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"conduit/internal/repository"
)

// Open creates a connection pool and verifies it with a ping.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// Store bundles the postgres repositories sharing one pool.
type Store struct {
	Pool     *pgxpool.Pool
	Users    repository.UserRepository
	Articles repository.ArticleRepository
	Exports  repository.ExportRepository
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	s := &Store{
		Pool:     pool,
		Users:    NewUserRepository(pool),
		Articles: NewArticleRepository(pool),
		Exports:  NewExportRepository(pool),
	}
	for _, initer := range []interface {
		Init(ctx context.Context) error
	}{s.Users, s.Articles, s.Exports} {
		if err := initer.Init(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) Close() error {
	s.Pool.Close()
	return nil
}

func execAll(ctx context.Context, pool *pgxpool.Pool, statements ...string) error {
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
