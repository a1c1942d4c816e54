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

const createExportsTable = `
CREATE TABLE IF NOT EXISTS roster_exports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	status TEXT NOT NULL,
	row_count INTEGER NOT NULL DEFAULT 0,
	location TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	completed_at DATETIME NULL
);
`

const selectExport = `
SELECT id, status, row_count, location, error_message, created_at, updated_at, completed_at
FROM roster_exports`

type ExportRepository struct {
	db *sql.DB
}

func NewExportRepository(db *sql.DB) repository.ExportRepository {
	return &ExportRepository{db: db}
}

func (r *ExportRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createExportsTable); err != nil {
		return fmt.Errorf("create roster_exports table: %w", err)
	}
	return nil
}

func (r *ExportRepository) Create(ctx context.Context, export *domain.Export) (int64, error) {
	now := time.Now().UTC()
	export.CreatedAt = now
	export.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO roster_exports (status, row_count, location, error_message, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		string(export.Status),
		export.Rows,
		export.Location,
		export.ErrorMessage,
		export.CreatedAt,
		export.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert export: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}
	export.ID = id
	return id, nil
}

func (r *ExportRepository) Get(ctx context.Context, id int64) (*domain.Export, error) {
	row := r.db.QueryRowContext(ctx, selectExport+`
WHERE id=?`, id)
	return scanExport(row)
}

func (r *ExportRepository) List(ctx context.Context) ([]domain.Export, error) {
	return r.query(ctx, selectExport+`
ORDER BY id DESC`)
}

func (r *ExportRepository) ListByStatuses(ctx context.Context, statuses ...domain.ExportStatus) ([]domain.Export, error) {
	if len(statuses) == 0 {
		return []domain.Export{}, nil
	}

	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		placeholders[i] = "?"
		args[i] = string(status)
	}

	return r.query(ctx, fmt.Sprintf(selectExport+`
WHERE status IN (%s)
ORDER BY id ASC`, strings.Join(placeholders, ",")), args...)
}

func (r *ExportRepository) query(ctx context.Context, query string, args ...any) ([]domain.Export, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exports: %w", err)
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
	res, err := r.db.ExecContext(ctx, `
UPDATE roster_exports
SET status=?, error_message=?, updated_at=?
WHERE id=?`,
		string(status),
		msg,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update export status: %w", err)
	}
	return expectAffected(res, "export")
}

func (r *ExportRepository) MarkCompleted(ctx context.Context, id int64, location string, rows int, completedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE roster_exports
SET status=?, location=?, row_count=?, error_message='', completed_at=?, updated_at=?
WHERE id=?`,
		string(domain.ExportStatusCompleted),
		location,
		rows,
		completedAt.UTC(),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark export completed: %w", err)
	}
	return expectAffected(res, "export")
}

func expectAffected(res sql.Result, what string) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if aff == 0 {
		return fmt.Errorf("%s: %w", what, repository.ErrNotFound)
	}
	return nil
}

func scanExport(scanner interface {
	Scan(dest ...any) error
}) (*domain.Export, error) {
	var (
		export      domain.Export
		status      string
		completedAt sql.NullTime
	)

	if err := scanner.Scan(
		&export.ID,
		&status,
		&export.Rows,
		&export.Location,
		&export.ErrorMessage,
		&export.CreatedAt,
		&export.UpdatedAt,
		&completedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("export: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan export: %w", err)
	}

	export.Status = domain.ExportStatus(status)
	export.CreatedAt = export.CreatedAt.UTC()
	export.UpdatedAt = export.UpdatedAt.UTC()
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		export.CompletedAt = &t
	}
	return &export, nil
}
