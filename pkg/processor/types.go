package processor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/event"
)

// Result is the processing outcome returned for every acknowledged
// delivery. Processed false with Idempotent true means the event was
// already claimed or finished; Processed false with a non-empty Error means
// the handler failed and the failure was recorded for operator follow-up.
type Result struct {
	Received       bool          `json:"received"`
	Processed      bool          `json:"processed"`
	Idempotent     bool          `json:"idempotent"`
	Handled        bool          `json:"handled"`
	Message        string        `json:"message,omitempty"`
	Error          string        `json:"error,omitempty"`
	ProcessingTime time.Duration `json:"-"`
}

// ProcessingTimeMs returns the wall-clock processing time in milliseconds,
// the unit the response contract and logs use.
func (r *Result) ProcessingTimeMs() int64 {
	return r.ProcessingTime.Milliseconds()
}

// HandleResult is what a handler reports on success.
type HandleResult struct {
	Summary   string
	AccountID uuid.UUID // zero when the event had no account correlation
	Handled   bool
}

// Handler processes one event kind. A returned error marks the processing
// record failed; it never propagates to the delivery response.
type Handler interface {
	Handle(ctx context.Context, ev *event.Event) (*HandleResult, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, ev *event.Event) (*HandleResult, error)

func (f HandlerFunc) Handle(ctx context.Context, ev *event.Event) (*HandleResult, error) {
	return f(ctx, ev)
}

// CustomerDirectory maps provider customer references to internal account
// ids. The checkout handler writes the mapping; subscription and payment
// handlers read it.
type CustomerDirectory interface {
	// Link associates a provider customer reference with an account.
	Link(ctx context.Context, customerRef string, accountID uuid.UUID) error

	// Lookup resolves a customer reference to an account id.
	// Returns ErrUnknownCustomer when no mapping exists.
	Lookup(ctx context.Context, customerRef string) (uuid.UUID, error)
}

// Config bounds a single event-processing invocation.
type Config struct {
	Budget     time.Duration `env:"WEBHOOK_PROCESSING_BUDGET" envDefault:"30s"` // wall-clock budget per event
	StaleAfter time.Duration `env:"WEBHOOK_STALE_AFTER" envDefault:"5m"`        // in-flight records older than this may be reclaimed by a redelivery
	WarnTTL    time.Duration `env:"WEBHOOK_WARN_TTL" envDefault:"24h"`          // dedup window for unhandled-kind warnings
}
