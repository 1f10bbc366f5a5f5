package usage

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service is the usage ledger facade consumed by request-handling
// middleware and the webhook handlers.
type Service struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

// ServiceOption configures optional Service settings.
type ServiceOption func(*Service)

// WithLogger sets the structured logger used for degraded-path warnings.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a usage Service over the given store.
// Panics on a nil store to fail fast during initialization.
func NewService(store Store, opts ...ServiceOption) *Service {
	if store == nil {
		panic("usage: Store is required")
	}

	s := &Service{
		store: store,
		log:   slog.Default(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckLimit is the advisory pre-flight read: allowed when the limit is
// unlimited or the counter is still below it. It fails closed, returning a
// denial whenever the store cannot answer, because an over-permissive race
// is worse than an under-permissive one.
func (s *Service) CheckLimit(ctx context.Context, accountID uuid.UUID, kind CounterKind) (*CheckResult, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}

	start, end := CurrentPeriod(s.now())
	snap, err := s.store.Snapshot(ctx, accountID, start, end)
	if err != nil {
		s.log.WarnContext(ctx, "usage snapshot failed, denying",
			slog.String("account_id", accountID.String()),
			slog.String("kind", string(kind)),
			slog.Any("error", err))
		return &CheckResult{Allowed: false, Kind: kind, PeriodEnd: end}, nil
	}

	limit := snap.AnalysisLimit
	if kind == KindRoasts {
		limit = snap.RoastLimit
	}
	used := snap.Counter.Used(kind)

	res := &CheckResult{
		Kind:      kind,
		Used:      used,
		Limit:     limit,
		PeriodEnd: end,
	}
	if limit == Unlimited {
		res.Allowed = true
		res.Unlimited = true
		res.Remaining = Unlimited
		return res, nil
	}

	res.Allowed = used < limit
	res.Remaining = max(limit-used, 0)
	return res, nil
}

// Increment adds to the counter unconditionally. The limit is not
// re-checked here; pair with CheckLimit for advisory enforcement or use
// TryConsume when strict non-overshoot is required.
func (s *Service) Increment(ctx context.Context, accountID uuid.UUID, kind CounterKind, amount int64) (int64, error) {
	start, end := CurrentPeriod(s.now())
	return s.store.Add(ctx, accountID, kind, amount, start, end)
}

// TryConsume atomically increments the counter only while it stays within
// the account's limit. This is the strict primitive: concurrent consumers
// can never jointly overshoot a finite limit.
func (s *Service) TryConsume(ctx context.Context, accountID uuid.UUID, kind CounterKind, amount int64) (*ConsumeResult, error) {
	start, end := CurrentPeriod(s.now())
	return s.store.ConsumeIfBelow(ctx, accountID, kind, amount, start, end)
}

// Summary returns both counters with their limits for dashboards.
func (s *Service) Summary(ctx context.Context, accountID uuid.UUID) (*Summary, error) {
	start, end := CurrentPeriod(s.now())
	snap, err := s.store.Snapshot(ctx, accountID, start, end)
	if err != nil {
		return nil, err
	}

	return &Summary{
		AccountID:   accountID,
		Analysis:    utilization(snap.Counter.AnalysisUsed, snap.AnalysisLimit),
		Roasts:      utilization(snap.Counter.RoastsUsed, snap.RoastLimit),
		PeriodStart: start,
		PeriodEnd:   end,
	}, nil
}

// PurgeExpired drops counter rows from past periods. Rollover primitive for
// an external scheduler; current-period counters are never touched.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	start, _ := CurrentPeriod(s.now())
	return s.store.PurgeExpired(ctx, start)
}
