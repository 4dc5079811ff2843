package ledger

import "context"

// UpdateFunc mutates a record inside Repository.Update. Returning an error
// aborts the write.
type UpdateFunc func(rec *Record) error

// Repository persists ledger records. Implementations hold no policy; the
// state machine runs inside Update.
type Repository interface {
	// Get returns nil, nil when no record exists.
	Get(ctx context.Context, key Key) (*Record, error)
	// Update atomically loads the record for key (Open(0) if absent), applies
	// fn, and stores the result. Concurrent updates to one key serialize.
	Update(ctx context.Context, key Key, fn UpdateFunc) (*Record, error)
	// ListLocked returns locked records for a community, oldest lock first.
	ListLocked(ctx context.Context, communityID string) ([]*Record, error)
}
