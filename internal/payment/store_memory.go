package payment

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore keeps transactions in a mutex-guarded map. Mutations on the
// same key serialize under the lock, which is what enforces the lifecycle
// rule under concurrent callbacks and polls.
type MemoryStore struct {
	mu  sync.RWMutex
	txs map[string]*Transaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{txs: make(map[string]*Transaction)}
}

func (m *MemoryStore) Create(_ context.Context, tx *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.txs[tx.TransactionID]; exists {
		return ErrDuplicateID
	}

	now := time.Now().UTC()
	cp := tx.Clone()
	if cp.Status == "" {
		cp.Status = StatusPending
	}
	cp.CreatedAt = now
	cp.UpdatedAt = now

	m.txs[cp.TransactionID] = cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.txs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return tx.Clone(), nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, id string, next Status, snapshot json.RawMessage, kind SnapshotKind) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.txs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !next.Valid() || !canTransition(tx.Status, next) {
		return nil, ErrInvalidTransition
	}

	tx.Status = next
	tx.UpdatedAt = time.Now().UTC()
	switch kind {
	case SnapshotCallback:
		tx.CallbackPayload = snapshot
	case SnapshotStatusPoll:
		tx.StatusPayload = snapshot
	}

	return tx.Clone(), nil
}

func (m *MemoryStore) List(_ context.Context) ([]*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Transaction, 0, len(m.txs))
	for _, tx := range m.txs {
		out = append(out, tx.Clone())
	}
	return out, nil
}
