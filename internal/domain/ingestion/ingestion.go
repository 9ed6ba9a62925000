// Package ingestion holds the bookkeeping entities of the ingestion
// pipeline: which source files have been merged and what each run did.
package ingestion

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dplus/backend/internal/domain/order"
)

// RunStatus describes the outcome of one ingestion run.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusRejected  RunStatus = "rejected"
	RunStatusNoChange  RunStatus = "no_change"
)

// SourceFile records one ingested export file. The checksum lets repeat
// runs skip files whose content has not changed.
type SourceFile struct {
	ID         uuid.UUID
	Path       string
	Checksum   string
	Platform   order.Platform
	SizeBytes  int64
	RowCount   int
	IngestedAt time.Time
}

// Run is the audit record of one ingestion pass over the data
// directories.
type Run struct {
	ID            uuid.UUID
	StartedAt     time.Time
	FinishedAt    time.Time
	Status        RunStatus
	FilesScanned  int
	FilesIngested int
	FilesSkipped  int
	FilesFailed   int
	RowsRead      int
	OrdersAdded   int
	Duplicates    int
	RowsRejected  int
	RowsExcluded  int
	Message       string
}

// Duration returns the wall time the run took.
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SourceFileRepository tracks which files have already been merged.
type SourceFileRepository interface {
	FindByPath(ctx context.Context, path string) (*SourceFile, error)
	FindAll(ctx context.Context) ([]SourceFile, error)
	Save(ctx context.Context, file *SourceFile) error
	DeleteAll(ctx context.Context) error
}

// RunRepository stores the audit trail of ingestion runs.
type RunRepository interface {
	Save(ctx context.Context, run *Run) error
	FindRecent(ctx context.Context, limit int) ([]Run, error)
}
