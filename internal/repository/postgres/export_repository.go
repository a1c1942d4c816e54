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

const createExportsTable = `
CREATE TABLE IF NOT EXISTS roster_exports (
	id BIGSERIAL PRIMARY KEY,
	status TEXT NOT NULL,
	row_count INTEGER NOT NULL DEFAULT 0,
	location TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ NULL
)`

const selectExport = `SELECT id, status, row_count, location, error_message, created_at, updated_at, completed_at
		 FROM roster_exports`

type ExportRepository struct {
	pool *pgxpool.Pool
}

func NewExportRepository(pool *pgxpool.Pool) repository.ExportRepository {
	return &ExportRepository{pool: pool}
}

func (r *ExportRepository) Init(ctx context.Context) error {
	if err := execAll(ctx, r.pool, createExportsTable); err != nil {
		return fmt.Errorf("create roster_exports table: %w", err)
	}
	return nil
}

func (r *ExportRepository) Create(ctx context.Context, export *domain.Export) (int64, error) {
	now := time.Now().UTC()
	export.CreatedAt = now
	export.UpdatedAt = now

	err := r.pool.QueryRow(ctx,
		`INSERT INTO roster_exports (status, row_count, location, error_message, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		string(export.Status), export.Rows, export.Location, export.ErrorMessage, export.CreatedAt, export.UpdatedAt,
	).Scan(&export.ID)
	if err != nil {
		return 0, fmt.Errorf("creating export: %w", err)
	}
	return export.ID, nil
}

func (r *ExportRepository) Get(ctx context.Context, id int64) (*domain.Export, error) {
	return scanExport(r.pool.QueryRow(ctx, selectExport+` WHERE id = $1`, id))
}

func (r *ExportRepository) List(ctx context.Context) ([]domain.Export, error) {
	return r.query(ctx, selectExport+` ORDER BY id DESC`)
}

func (r *ExportRepository) ListByStatuses(ctx context.Context, statuses ...domain.ExportStatus) ([]domain.Export, error) {
	if len(statuses) == 0 {
		return []domain.Export{}, nil
	}
	values := make([]string, len(statuses))
	for i, status := range statuses {
		values[i] = string(status)
	}
	return r.query(ctx, selectExport+` WHERE status = ANY($1) ORDER BY id ASC`, values)
}

func (r *ExportRepository) query(ctx context.Context, query string, args ...any) ([]domain.Export, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing exports: %w", err)
	}
	defer rows.Close()

	exports := []domain.Export{}
	for rows.Next() {
		export, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		exports = append(exports, *export)
	}
	return exports, rows.Err()
}

func (r *ExportRepository) UpdateStatus(ctx context.Context, id int64, status domain.ExportStatus, errorMessage *string) error {
	msg := ""
	if errorMessage != nil {
		msg = *errorMessage
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE roster_exports SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`,
		string(status), msg, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating export status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("export: %w", repository.ErrNotFound)
	}
	return nil
}

func (r *ExportRepository) MarkCompleted(ctx context.Context, id int64, location string, rows int, completedAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE roster_exports
		 SET status = $1, location = $2, row_count = $3, error_message = '', completed_at = $4, updated_at = $5
		 WHERE id = $6`,
		string(domain.ExportStatusCompleted), location, rows, completedAt.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("marking export completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("export: %w", repository.ErrNotFound)
	}
	return nil
}

func scanExport(row pgx.Row) (*domain.Export, error) {
	var (
		export      domain.Export
		status      string
		completedAt *time.Time
	)
	if err := row.Scan(
		&export.ID,
		&status,
		&export.Rows,
		&export.Location,
		&export.ErrorMessage,
		&export.CreatedAt,
		&export.UpdatedAt,
		&completedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("export: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scanning export: %w", err)
	}
	export.Status = domain.ExportStatus(status)
	if completedAt != nil {
		t := completedAt.UTC()
		export.CompletedAt = &t
	}
	return &export, nil
}
