package calls

import (
	"context"
	"errors"
)

var (
	ErrNotFound       = errors.New("calls: not found")
	ErrInvalidRequest = errors.New("calls: invalid request")
)

// UpdateFunc mutates a call record inside an atomic read-modify-write.
// It must be pure: no I/O, no side effects. Returning false means the
// event produced no change and the store may skip the write.
type UpdateFunc func(Call) (Call, bool)

// Store is the persistence contract shared by the initiation flow and the
// reconciliation engine.
//
// UpdateByProviderCallID is the engine's only write path. Implementations
// must apply fn under a per-record atomic read-modify-write so that two
// near-simultaneous webhook deliveries for the same provider call id can
// never commit based on stale reads.
type Store interface {
	Create(ctx context.Context, c Call) error
	Update(ctx context.Context, c Call) error
	Delete(ctx context.Context, id string) error

	GetByID(ctx context.Context, id string) (Call, error)
	GetByProviderCallID(ctx context.Context, providerCallID string) (Call, error)

	// UpdateByProviderCallID applies fn to the matching record. The second
	// return value reports whether a record matched; an unmatched provider
	// call id is not an error (the event may belong to another system
	// instance, or may have raced the initiation flow).
	UpdateByProviderCallID(ctx context.Context, providerCallID string, fn UpdateFunc) (Call, bool, error)

	// ListRegistered returns records with a provider call id, newest first,
	// capped at limit.
	ListRegistered(ctx context.Context, limit int) ([]Call, error)
}
