package entitlement

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory entitlement Store for tests and
// single-process setups.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]Entitlement
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]Entitlement)}
}

func (s *MemoryStore) Get(ctx context.Context, accountID uuid.UUID) (*Entitlement, error) {
	if accountID == uuid.Nil {
		return nil, ErrEmptyAccountID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ent, ok := s.records[accountID]
	if !ok {
		return nil, ErrEntitlementNotFound
	}
	return &ent, nil
}

func (s *MemoryStore) Save(ctx context.Context, ent *Entitlement) error {
	if ent == nil || ent.AccountID == uuid.Nil {
		return ErrEmptyAccountID
	}

	cp := *ent
	cp.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[ent.AccountID] = cp
	return nil
}
