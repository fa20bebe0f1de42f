package exchange

import (
	"context"
	"time"
)

// Store persists exchange records. Implementations rely on the backend's own
// per-document atomicity; there are no cross-record transactions.
type Store interface {
	// Create inserts a new visitor question with a store-assigned timestamp.
	Create(ctx context.Context, q Question) (*Record, error)
	// LatestPending returns the most recently created unanswered question.
	LatestPending(ctx context.Context) (*Record, error)
	// Answer attaches a reply to the record with the given id. A record is
	// answered at most once; later calls return ErrAlreadyAnswered.
	Answer(ctx context.Context, id string, a Answer) error
	// CreateStandalone records a reply that had no pending question to attach to.
	CreateStandalone(ctx context.Context, a Answer) (*Record, error)
	// List returns records ordered by ascending timestamp, strictly after since when non-zero.
	List(ctx context.Context, since time.Time) ([]Record, error)
	// Subscribe streams the full ordered record set on every change.
	Subscribe(ctx context.Context, since time.Time) (<-chan Snapshot, error)
}

// Snapshot is one delivery of the live query. A non-nil Err is terminal: the
// channel is closed right after it.
type Snapshot struct {
	Records []Record
	Err     error
}

func after(r Record, since time.Time) bool {
	return since.IsZero() || r.Timestamp.After(since)
}
