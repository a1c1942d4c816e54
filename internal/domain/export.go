package domain

import "time"

type ExportStatus string

const (
	ExportStatusPending   ExportStatus = "pending"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusCompleted ExportStatus = "completed"
	ExportStatusFailed    ExportStatus = "failed"
)

// Export tracks a roster snapshot written to object storage.
type Export struct {
	ID           int64
	Status       ExportStatus
	Rows         int
	Location     string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// Finished reports whether the export reached a terminal status.
func (e Export) Finished() bool {
	return e.Status == ExportStatusCompleted || e.Status == ExportStatusFailed
}
