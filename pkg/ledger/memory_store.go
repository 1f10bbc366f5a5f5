package ledger

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and single-process setups.
// A single mutex serializes every operation, which gives the same
// insert-if-absent atomicity the Postgres constraint provides.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*ProcessingRecord
	now     func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source. Staleness tests depend on it.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]*ProcessingRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) HasProcessed(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, ErrEmptyEventID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[eventID]
	return ok && rec.State.Terminal(), nil
}

func (s *MemoryStore) Begin(ctx context.Context, req BeginRequest, staleAfter time.Duration) (BeginOutcome, error) {
	if req.EventID == "" {
		return Duplicate, ErrEmptyEventID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[req.EventID]; ok {
		if rec.State == StateProcessing && staleAfter > 0 && s.now().Sub(rec.StartedAt) > staleAfter {
			rec.StartedAt = s.now()
			rec.CustomerRef = req.CustomerRef
			rec.SubscriptionRef = req.SubscriptionRef
			return Reclaimed, nil
		}
		return Duplicate, nil
	}

	s.records[req.EventID] = &ProcessingRecord{
		EventID:         req.EventID,
		Kind:            req.Kind,
		State:           StateProcessing,
		CustomerRef:     req.CustomerRef,
		SubscriptionRef: req.SubscriptionRef,
		StartedAt:       s.now(),
	}
	return Started, nil
}

func (s *MemoryStore) Complete(ctx context.Context, eventID string, outcome Outcome) error {
	if eventID == "" {
		return ErrEmptyEventID
	}

	state := StateCompleted
	if !outcome.Success {
		state = StateFailed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[eventID]
	if !ok {
		return ErrRecordNotFound
	}

	if rec.State.Terminal() {
		if rec.State == state {
			return nil
		}
		return ErrAlreadyFinalized
	}

	now := s.now()
	rec.State = state
	rec.CompletedAt = &now
	rec.ResultSummary = outcome.Summary
	rec.LastError = outcome.Err
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, eventID string) (*ProcessingRecord, error) {
	if eventID == "" {
		return nil, ErrEmptyEventID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[eventID]
	if !ok {
		return nil, ErrRecordNotFound
	}

	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	maps.DeleteFunc(s.records, func(_ string, rec *ProcessingRecord) bool {
		if rec.State.Terminal() && rec.CompletedAt != nil && rec.CompletedAt.Before(cutoff) {
			purged++
			return true
		}
		return false
	})
	return purged, nil
}
