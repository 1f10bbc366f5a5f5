package usage

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

type counterKey struct {
	accountID   uuid.UUID
	periodStart time.Time
}

// MemoryStore is an in-memory usage Store for tests and single-process
// setups. One mutex covers the limit read and the counter write together,
// which gives the same check-inside-the-increment atomicity the Postgres
// conditional statement provides.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[counterKey]*Counter
	limits   LimitSource
}

// NewMemoryStore returns a MemoryStore that reads limits from src. A nil
// src serves the free-tier defaults.
func NewMemoryStore(src LimitSource) *MemoryStore {
	if src == nil {
		src = LimitSourceFunc(func(context.Context, uuid.UUID) (int64, int64, error) {
			return defaultAnalysisLimit, defaultRoastLimit, nil
		})
	}
	return &MemoryStore{
		counters: make(map[counterKey]*Counter),
		limits:   src,
	}
}

func (s *MemoryStore) Snapshot(ctx context.Context, accountID uuid.UUID, periodStart, periodEnd time.Time) (*Snapshot, error) {
	if accountID == uuid.Nil {
		return nil, ErrEmptyAccountID
	}

	analysisLimit, roastLimit, err := s.limits.Limits(ctx, accountID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{
		Counter:       Counter{AccountID: accountID, PeriodStart: periodStart, PeriodEnd: periodEnd},
		AnalysisLimit: analysisLimit,
		RoastLimit:    roastLimit,
	}
	if c, ok := s.counters[counterKey{accountID, periodStart}]; ok {
		snap.Counter.AnalysisUsed = c.AnalysisUsed
		snap.Counter.RoastsUsed = c.RoastsUsed
	}
	return snap, nil
}

func (s *MemoryStore) Add(ctx context.Context, accountID uuid.UUID, kind CounterKind, amount int64, periodStart, periodEnd time.Time) (int64, error) {
	if accountID == uuid.Nil {
		return 0, ErrEmptyAccountID
	}
	if !kind.Valid() {
		return 0, ErrInvalidKind
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.counter(accountID, periodStart, periodEnd)
	if kind == KindAnalysis {
		c.AnalysisUsed += amount
		return c.AnalysisUsed, nil
	}
	c.RoastsUsed += amount
	return c.RoastsUsed, nil
}

func (s *MemoryStore) ConsumeIfBelow(ctx context.Context, accountID uuid.UUID, kind CounterKind, amount int64, periodStart, periodEnd time.Time) (*ConsumeResult, error) {
	if accountID == uuid.Nil {
		return nil, ErrEmptyAccountID
	}
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	analysisLimit, roastLimit, err := s.limits.Limits(ctx, accountID)
	if err != nil {
		return nil, err
	}
	limit := analysisLimit
	if kind == KindRoasts {
		limit = roastLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.counter(accountID, periodStart, periodEnd)
	used := c.AnalysisUsed
	if kind == KindRoasts {
		used = c.RoastsUsed
	}

	if limit != Unlimited && used+amount > limit {
		return &ConsumeResult{Allowed: false, Kind: kind}, nil
	}

	if kind == KindAnalysis {
		c.AnalysisUsed += amount
		return &ConsumeResult{Allowed: true, Kind: kind, NewUsed: c.AnalysisUsed}, nil
	}
	c.RoastsUsed += amount
	return &ConsumeResult{Allowed: true, Kind: kind, NewUsed: c.RoastsUsed}, nil
}

func (s *MemoryStore) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	maps.DeleteFunc(s.counters, func(_ counterKey, c *Counter) bool {
		// PeriodEnd is exclusive, so a period ending exactly at the cutoff
		// is already closed.
		if !c.PeriodEnd.After(cutoff) {
			purged++
			return true
		}
		return false
	})
	return purged, nil
}

// counter returns the period row, creating it at zero on first touch.
// Callers must hold the mutex.
func (s *MemoryStore) counter(accountID uuid.UUID, periodStart, periodEnd time.Time) *Counter {
	key := counterKey{accountID, periodStart}
	c, ok := s.counters[key]
	if !ok {
		c = &Counter{AccountID: accountID, PeriodStart: periodStart, PeriodEnd: periodEnd}
		s.counters[key] = c
	}
	return c
}
