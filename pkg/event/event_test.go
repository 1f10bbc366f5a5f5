package event_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/event"
)

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("checkout session", func(t *testing.T) {
		t.Parallel()

		body := []byte(`{
			"id": "evt_001",
			"type": "checkout.session.completed",
			"created": 1756646400,
			"data": {
				"object": {
					"id": "cs_123",
					"object": "checkout.session",
					"customer": "cus_abc",
					"mode": "subscription",
					"price_id": "price_pro",
					"metadata": {"account_id": "6a6f8f6e-3f6a-4c3e-9c2d-2f8f0a1b2c3d"}
				}
			}
		}`)

		ev, err := event.Parse(body)
		require.NoError(t, err)

		assert.Equal(t, "evt_001", ev.ID)
		assert.Equal(t, event.KindCheckoutCompleted, ev.Kind)
		assert.Equal(t, "checkout.session.completed", ev.ProviderType)
		assert.Equal(t, time.Unix(1756646400, 0).UTC(), ev.OccurredAt)
		assert.Equal(t, "cus_abc", ev.CustomerRef())
		assert.Equal(t, "price_pro", ev.PriceRef())
		assert.Equal(t, "6a6f8f6e-3f6a-4c3e-9c2d-2f8f0a1b2c3d", ev.AccountID())
	})

	t.Run("subscription event uses object id as subscription ref", func(t *testing.T) {
		t.Parallel()

		body := []byte(`{
			"id": "evt_002",
			"type": "customer.subscription.updated",
			"data": {
				"object": {
					"id": "sub_42",
					"object": "subscription",
					"customer": "cus_abc",
					"status": "active",
					"price_id": "price_starter"
				}
			}
		}`)

		ev, err := event.Parse(body)
		require.NoError(t, err)

		assert.Equal(t, event.KindSubscriptionUpdated, ev.Kind)
		assert.Equal(t, "sub_42", ev.SubscriptionRef())
	})

	t.Run("invoice event uses subscription field", func(t *testing.T) {
		t.Parallel()

		body := []byte(`{
			"id": "evt_003",
			"type": "invoice.payment_failed",
			"data": {
				"object": {
					"id": "in_9",
					"customer": "cus_abc",
					"subscription": "sub_42",
					"attempt_count": 2
				}
			}
		}`)

		ev, err := event.Parse(body)
		require.NoError(t, err)

		assert.Equal(t, event.KindPaymentFailed, ev.Kind)
		assert.Equal(t, "sub_42", ev.SubscriptionRef())
		assert.Equal(t, 2, ev.Payload.AttemptCount)
	})

	t.Run("unknown type maps to unrecognized", func(t *testing.T) {
		t.Parallel()

		body := []byte(`{
			"id": "evt_004",
			"type": "customer.tax_id.created",
			"data": {"object": {"id": "txi_1"}}
		}`)

		ev, err := event.Parse(body)
		require.NoError(t, err)

		assert.Equal(t, event.KindUnrecognized, ev.Kind)
		assert.Equal(t, "customer.tax_id.created", ev.ProviderType)
	})

	t.Run("missing created falls back to now", func(t *testing.T) {
		t.Parallel()

		body := []byte(`{
			"id": "evt_005",
			"type": "invoice.payment_succeeded",
			"data": {"object": {"id": "in_1"}}
		}`)

		ev, err := event.Parse(body)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().UTC(), ev.OccurredAt, time.Minute)
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		t.Parallel()

		_, err := event.Parse([]byte(`{"id": "evt_006"`))
		require.ErrorIs(t, err, event.ErrMalformedEvent)
	})

	t.Run("rejects missing id", func(t *testing.T) {
		t.Parallel()

		_, err := event.Parse([]byte(`{"type": "invoice.payment_succeeded", "data": {"object": {}}}`))
		require.ErrorIs(t, err, event.ErrMalformedEvent)
	})

	t.Run("rejects missing data object", func(t *testing.T) {
		t.Parallel()

		_, err := event.Parse([]byte(`{"id": "evt_007", "type": "invoice.payment_succeeded"}`))
		require.ErrorIs(t, err, event.ErrMalformedEvent)
	})
}

func TestMapProviderType(t *testing.T) {
	t.Parallel()

	cases := map[string]event.Kind{
		"checkout.session.completed":    event.KindCheckoutCompleted,
		"customer.subscription.created": event.KindSubscriptionCreated,
		"customer.subscription.updated": event.KindSubscriptionUpdated,
		"customer.subscription.deleted": event.KindSubscriptionDeleted,
		"invoice.payment_succeeded":     event.KindPaymentSucceeded,
		"invoice.payment_failed":        event.KindPaymentFailed,
		"charge.refunded":               event.KindUnrecognized,
		"":                              event.KindUnrecognized,
	}
	for providerType, want := range cases {
		assert.Equal(t, want, event.MapProviderType(providerType), providerType)
	}
}

func TestAccountID(t *testing.T) {
	t.Parallel()

	ev := &event.Event{}
	assert.Empty(t, ev.AccountID())

	ev.Payload.Metadata = map[string]string{"account_id": "acc-1"}
	assert.Equal(t, "acc-1", ev.AccountID())
}
