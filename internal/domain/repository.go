package domain

import (
	"context"
	"time"
)

// HistoryPage is one slice of a user's history plus the total row count for
// pagination UIs.
type HistoryPage struct {
	Items      []HistoryRecord
	TotalCount int
}

// HistoryRepository is the single source of truth for history records. Every
// component reads and writes job state through it; nothing caches records
// across calls.
type HistoryRepository interface {
	// Insert persists a new record. ErrConflict when the id already exists.
	Insert(ctx context.Context, rec *HistoryRecord) error

	// GetByID returns the record or ErrNotFound.
	GetByID(ctx context.Context, id string) (*HistoryRecord, error)

	// GetForOwner returns the record only when username owns it. An absent
	// record and a foreign record both yield ErrNotFound.
	GetForOwner(ctx context.Context, id, username string) (*HistoryRecord, error)

	// ListByUsername pages records newest-first (ties broken by id). An
	// empty username lists all users; an empty kind disables filtering.
	ListByUsername(ctx context.Context, username string, page, pageSize int, kind Kind) (*HistoryPage, error)

	// MarkCompleted transitions a processing record to completed with its
	// artifact URLs in one atomic write. Returns false when the record was
	// no longer processing, which callers treat as a duplicate delivery.
	MarkCompleted(ctx context.Context, id string, urls []string) (bool, error)

	// MarkFailed transitions a processing record to failed with a message.
	// Same duplicate semantics as MarkCompleted.
	MarkFailed(ctx context.Context, id, message string) (bool, error)

	// FailStale force-fails every processing record created before the
	// cutoff and returns how many rows transitioned.
	FailStale(ctx context.Context, olderThan time.Time, message string) (int64, error)
}
