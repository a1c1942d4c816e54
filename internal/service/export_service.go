package service

import (
	"context"
	"time"

	"conduit/internal/domain"
	"conduit/internal/repository"
)

// ExportService coordinates roster export records.
type ExportService interface {
	CreateExport(ctx context.Context) (*domain.Export, error)
	GetExport(ctx context.Context, id int64) (*domain.Export, error)
	ListExports(ctx context.Context) ([]domain.Export, error)
	ListByStatuses(ctx context.Context, statuses ...domain.ExportStatus) ([]domain.Export, error)
	UpdateStatus(ctx context.Context, id int64, status domain.ExportStatus, errMsg *string) error
	MarkCompleted(ctx context.Context, id int64, location string, rows int) error
}

type exportService struct {
	exports repository.ExportRepository
}

func NewExportService(exports repository.ExportRepository) ExportService {
	return &exportService{exports: exports}
}

func (s *exportService) CreateExport(ctx context.Context) (*domain.Export, error) {
	export := &domain.Export{Status: domain.ExportStatusPending}
	if _, err := s.exports.Create(ctx, export); err != nil {
		return nil, err
	}
	return export, nil
}

func (s *exportService) GetExport(ctx context.Context, id int64) (*domain.Export, error) {
	return s.exports.Get(ctx, id)
}

func (s *exportService) ListExports(ctx context.Context) ([]domain.Export, error) {
	return s.exports.List(ctx)
}

func (s *exportService) ListByStatuses(ctx context.Context, statuses ...domain.ExportStatus) ([]domain.Export, error) {
	return s.exports.ListByStatuses(ctx, statuses...)
}

func (s *exportService) UpdateStatus(ctx context.Context, id int64, status domain.ExportStatus, errMsg *string) error {
	return s.exports.UpdateStatus(ctx, id, status, errMsg)
}

func (s *exportService) MarkCompleted(ctx context.Context, id int64, location string, rows int) error {
	return s.exports.MarkCompleted(ctx, id, location, rows, time.Now())
}
