package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/billingkit/pkg/dedup"
	"github.com/dmitrymomot/billingkit/pkg/entitlement"
	"github.com/dmitrymomot/billingkit/pkg/event"
	"github.com/dmitrymomot/billingkit/pkg/ledger"
)

// Processor drives a parsed event through claim, dispatch, and completion.
// Safe for concurrent use.
type Processor struct {
	ledger ledger.Store
	routes map[event.Kind]Handler
	warns  dedup.Deduper
	cfg    Config
	log    *slog.Logger
	now    func() time.Time
}

// Option configures optional Processor settings.
type Option func(*Processor)

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Processor) {
		if log != nil {
			p.log = log
		}
	}
}

// WithWarnDeduper sets the cache that bounds unrecognized-kind warnings to
// one per provider type per TTL window.
func WithWarnDeduper(d dedup.Deduper) Option {
	return func(p *Processor) {
		if d != nil {
			p.warns = d
		}
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// WithHandler replaces the handler for a kind. Intended for tests that need
// to observe or fail dispatch.
func WithHandler(kind event.Kind, h Handler) Option {
	return func(p *Processor) {
		if h != nil {
			p.routes[kind] = h
		}
	}
}

// New creates a Processor. The route table is closed: every recognized kind
// has exactly one handler, and anything else takes the acknowledged
// unrecognized path. Panics if a required dependency is nil.
func New(store ledger.Store, resolver *entitlement.Resolver, directory CustomerDirectory, cfg Config, opts ...Option) *Processor {
	if store == nil {
		panic("processor: ledger.Store is required")
	}
	if resolver == nil {
		panic("processor: entitlement.Resolver is required")
	}
	if directory == nil {
		panic("processor: CustomerDirectory is required")
	}

	if cfg.Budget <= 0 {
		cfg.Budget = 30 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Minute
	}
	if cfg.WarnTTL <= 0 {
		cfg.WarnTTL = 24 * time.Hour
	}

	p := &Processor{
		ledger: store,
		warns:  dedup.NewMemoryDeduper(),
		cfg:    cfg,
		log:    slog.Default(),
		now:    time.Now,
	}

	h := &handlers{resolver: resolver, directory: directory, log: slog.Default()}
	p.routes = map[event.Kind]Handler{
		event.KindCheckoutCompleted:   HandlerFunc(h.checkout),
		event.KindSubscriptionCreated: HandlerFunc(h.subscriptionUpsert),
		event.KindSubscriptionUpdated: HandlerFunc(h.subscriptionUpsert),
		event.KindSubscriptionDeleted: HandlerFunc(h.subscriptionDeleted),
		event.KindPaymentSucceeded:    HandlerFunc(h.paymentSucceeded),
		event.KindPaymentFailed:       HandlerFunc(h.paymentFailed),
	}

	for _, opt := range opts {
		opt(p)
	}
	h.log = p.log
	return p
}

// Process applies the event exactly once. Every return carries a Result the
// delivery can be acknowledged with; the error is non-nil only when the
// claim itself could not be attempted, the one case a retryable status is
// appropriate for.
func (p *Processor) Process(ctx context.Context, ev *event.Event) (*Result, error) {
	start := p.now()

	outcome, err := p.ledger.Begin(ctx, ledger.BeginRequest{
		EventID:         ev.ID,
		Kind:            string(ev.Kind),
		CustomerRef:     ev.CustomerRef(),
		SubscriptionRef: ev.SubscriptionRef(),
	}, p.cfg.StaleAfter)
	if err != nil {
		return nil, fmt.Errorf("claim event %s: %w", ev.ID, err)
	}

	if outcome == ledger.Duplicate {
		p.log.InfoContext(ctx, "duplicate event acknowledged",
			slog.String("event_id", ev.ID),
			slog.String("kind", string(ev.Kind)))
		return &Result{
			Received:       true,
			Idempotent:     true,
			Message:        "event already processed",
			ProcessingTime: p.now().Sub(start),
		}, nil
	}

	if outcome == ledger.Reclaimed {
		p.log.WarnContext(ctx, "stale in-flight event reclaimed",
			slog.String("event_id", ev.ID),
			slog.String("kind", string(ev.Kind)))
	}

	res := p.dispatch(ctx, ev)
	res.ProcessingTime = p.now().Sub(start)

	p.log.InfoContext(ctx, "event processed",
		slog.String("event_id", ev.ID),
		slog.String("kind", string(ev.Kind)),
		slog.Bool("processed", res.Processed),
		slog.Bool("handled", res.Handled),
		slog.Int64("processing_time_ms", res.ProcessingTimeMs()))
	return res, nil
}

// dispatch runs the handler under the processing budget and records the
// terminal outcome. Handler failures never propagate: they are written to
// the ledger and reported in the result so the delivery is still
// acknowledged.
func (p *Processor) dispatch(ctx context.Context, ev *event.Event) *Result {
	handler, ok := p.routes[ev.Kind]
	if !ok {
		return p.acknowledgeUnrecognized(ctx, ev)
	}

	hctx, cancel := context.WithTimeout(ctx, p.cfg.Budget)
	defer cancel()

	hr, err := handler.Handle(hctx, ev)
	if err != nil {
		p.log.ErrorContext(ctx, "event handler failed",
			slog.String("event_id", ev.ID),
			slog.String("kind", string(ev.Kind)),
			slog.Any("error", err))
		p.complete(ctx, ev.ID, ledger.Outcome{Err: err.Error()})
		return &Result{Received: true, Error: err.Error()}
	}

	p.complete(ctx, ev.ID, ledger.Outcome{Success: true, Summary: hr.Summary})
	return &Result{
		Received:  true,
		Processed: true,
		Handled:   hr.Handled,
		Message:   hr.Summary,
	}
}

// acknowledgeUnrecognized finalizes an event outside the closed route table.
// The warning is deduplicated per provider type so a new event name the
// provider starts sending surfaces once per window, not once per delivery.
func (p *Processor) acknowledgeUnrecognized(ctx context.Context, ev *event.Event) *Result {
	if p.warns.FirstSighting(ctx, "unrecognized:"+ev.ProviderType, p.cfg.WarnTTL) {
		p.log.WarnContext(ctx, "unrecognized event type acknowledged",
			slog.String("event_id", ev.ID),
			slog.String("provider_type", ev.ProviderType))
	}

	summary := fmt.Sprintf("unrecognized event type %s acknowledged", ev.ProviderType)
	p.complete(ctx, ev.ID, ledger.Outcome{Success: true, Summary: summary})
	return &Result{
		Received:  true,
		Processed: true,
		Handled:   false,
		Message:   summary,
	}
}

// complete writes the terminal state; a failure here is logged but must not
// turn an applied effect into a retry loop.
func (p *Processor) complete(ctx context.Context, eventID string, outcome ledger.Outcome) {
	if err := p.ledger.Complete(ctx, eventID, outcome); err != nil {
		p.log.ErrorContext(ctx, "failed to finalize processing record",
			slog.String("event_id", eventID),
			slog.Any("error", err))
	}
}
