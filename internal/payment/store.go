package payment

import (
	"context"
	"encoding/json"
)

// Store is the authoritative record of every transaction. Implementations
// must apply UpdateStatus as an atomic read-modify-write per key so a
// callback and a status poll racing on the same transaction cannot bypass
// the lifecycle rule.
type Store interface {
	// Create inserts a new transaction. Returns ErrDuplicateID if the id is
	// already taken.
	Create(ctx context.Context, tx *Transaction) error

	// Get returns the transaction or ErrNotFound.
	Get(ctx context.Context, id string) (*Transaction, error)

	// UpdateStatus applies the lifecycle rule and attaches the given payload
	// snapshot. Re-applying the current terminal status is a no-op refresh of
	// UpdatedAt and the snapshot; moving between different terminal statuses
	// returns ErrInvalidTransition and leaves the record unchanged.
	UpdateStatus(ctx context.Context, id string, next Status, snapshot json.RawMessage, kind SnapshotKind) (*Transaction, error)

	// List returns every transaction. Ordering is unspecified; diagnostics only.
	List(ctx context.Context) ([]*Transaction, error)
}
