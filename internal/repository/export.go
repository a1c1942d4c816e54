package repository

import (
	"context"
	"time"

	"conduit/internal/domain"
)

// ExportRepository persists roster export records.
type ExportRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, export *domain.Export) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Export, error)
	List(ctx context.Context) ([]domain.Export, error)
	ListByStatuses(ctx context.Context, statuses ...domain.ExportStatus) ([]domain.Export, error)
	UpdateStatus(ctx context.Context, id int64, status domain.ExportStatus, errorMessage *string) error
	MarkCompleted(ctx context.Context, id int64, location string, rows int, completedAt time.Time) error
}
