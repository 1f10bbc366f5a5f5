package event

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

// Kind is the closed set of event types the processor routes on.
type Kind string

const (
	KindCheckoutCompleted   Kind = "checkout_completed"
	KindSubscriptionCreated Kind = "subscription_created"
	KindSubscriptionUpdated Kind = "subscription_updated"
	KindSubscriptionDeleted Kind = "subscription_deleted"
	KindPaymentSucceeded    Kind = "payment_succeeded"
	KindPaymentFailed       Kind = "payment_failed"
	KindUnrecognized        Kind = "unrecognized"
)

// Kinds returns every routable kind. Useful for registering handlers and
// for exhaustiveness checks in tests.
func Kinds() []Kind {
	return []Kind{
		KindCheckoutCompleted,
		KindSubscriptionCreated,
		KindSubscriptionUpdated,
		KindSubscriptionDeleted,
		KindPaymentSucceeded,
		KindPaymentFailed,
		KindUnrecognized,
	}
}

// Event is a single notification from the billing provider. Instances are
// never mutated after parsing.
type Event struct {
	ID           string
	Kind         Kind
	ProviderType string // original provider event name, kept for audit
	OccurredAt   time.Time
	Payload      Payload
}

// Payload is the kind-specific object carried by the event. Fields not
// present in a given event type are simply zero.
type Payload struct {
	ID             string            `json:"id,omitempty"`
	Object         string            `json:"object,omitempty"`
	Customer       string            `json:"customer,omitempty"`
	Subscription   string            `json:"subscription,omitempty"`
	Status         string            `json:"status,omitempty"`
	Mode           string            `json:"mode,omitempty"`
	PriceID        string            `json:"price_id,omitempty"`
	ProductID      string            `json:"product_id,omitempty"`
	InvoiceID      string            `json:"invoice_id,omitempty"`
	AmountCents    int64             `json:"amount_cents,omitempty"`
	AttemptCount   int               `json:"attempt_count,omitempty"`
	CancelAtPeriod bool              `json:"cancel_at_period_end,omitempty"`
	PeriodStart    int64             `json:"current_period_start,omitempty"`
	PeriodEnd      int64             `json:"current_period_end,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Raw            json.RawMessage   `json:"-"`
}

// envelope mirrors the provider's wire format.
type envelope struct {
	ID         string       `json:"id" validate:"required"`
	Type       string       `json:"type" validate:"required"`
	OccurredAt int64        `json:"created"`
	Data       envelopeData `json:"data"`
}

type envelopeData struct {
	Object json.RawMessage `json:"object" validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Parse decodes and structurally validates a raw provider event body.
// Malformed bodies are rejected here, before the idempotency ledger is ever
// consulted. Unknown event types are accepted and mapped to
// KindUnrecognized.
func Parse(body []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Join(ErrMalformedEvent, err)
	}

	if err := validate.Struct(env); err != nil {
		return nil, errors.Join(ErrMalformedEvent, err)
	}

	var payload Payload
	if err := json.Unmarshal(env.Data.Object, &payload); err != nil {
		return nil, errors.Join(ErrMalformedEvent, err)
	}
	payload.Raw = env.Data.Object

	occurred := time.Now().UTC()
	if env.OccurredAt > 0 {
		occurred = time.Unix(env.OccurredAt, 0).UTC()
	}

	return &Event{
		ID:           env.ID,
		Kind:         MapProviderType(env.Type),
		ProviderType: env.Type,
		OccurredAt:   occurred,
		Payload:      payload,
	}, nil
}

// MapProviderType normalizes a provider event name into the closed Kind set.
func MapProviderType(providerType string) Kind {
	switch providerType {
	case "checkout.session.completed":
		return KindCheckoutCompleted
	case "customer.subscription.created":
		return KindSubscriptionCreated
	case "customer.subscription.updated":
		return KindSubscriptionUpdated
	case "customer.subscription.deleted":
		return KindSubscriptionDeleted
	case "invoice.payment_succeeded":
		return KindPaymentSucceeded
	case "invoice.payment_failed":
		return KindPaymentFailed
	default:
		return KindUnrecognized
	}
}

// AccountID returns the internal account reference carried in the payload
// metadata, or "" when the event carries none.
func (e *Event) AccountID() string {
	if e.Payload.Metadata == nil {
		return ""
	}
	return e.Payload.Metadata["account_id"]
}

// CustomerRef returns the provider customer reference, best effort.
func (e *Event) CustomerRef() string {
	return e.Payload.Customer
}

// SubscriptionRef returns the provider subscription reference. Subscription
// events carry it as the object id, invoice events as a named field.
func (e *Event) SubscriptionRef() string {
	if e.Payload.Subscription != "" {
		return e.Payload.Subscription
	}
	if e.Kind == KindSubscriptionCreated || e.Kind == KindSubscriptionUpdated || e.Kind == KindSubscriptionDeleted {
		return e.Payload.ID
	}
	return ""
}

// PriceRef returns the provider price reference, or "" when absent.
func (e *Event) PriceRef() string {
	return e.Payload.PriceID
}
