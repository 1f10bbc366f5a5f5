package entitlement_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/entitlement"
)

type httpStatusError struct {
	code int
}

func (e *httpStatusError) Error() string   { return fmt.Sprintf("provider returned %d", e.code) }
func (e *httpStatusError) StatusCode() int { return e.code }

type sequencePriceAPI struct {
	errs  []error
	price *entitlement.Price
	calls int
}

func (s *sequencePriceAPI) RetrievePrice(_ context.Context, _ string) (*entitlement.Price, error) {
	defer func() { s.calls++ }()
	if s.calls < len(s.errs) {
		return nil, s.errs[s.calls]
	}
	return s.price, nil
}

func fastRetry(attempts int) entitlement.RetryConfig {
	return entitlement.RetryConfig{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestRetryingPriceAPI(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("succeeds after transient server errors", func(t *testing.T) {
		t.Parallel()

		api := &sequencePriceAPI{
			errs:  []error{&httpStatusError{code: 500}, &httpStatusError{code: 503}},
			price: &entitlement.Price{ID: "price_1"},
		}
		r := entitlement.NewRetryingPriceAPI(api, fastRetry(3))

		price, err := r.RetrievePrice(ctx, "price_1")
		require.NoError(t, err)
		assert.Equal(t, "price_1", price.ID)
		assert.Equal(t, 3, api.calls)
	})

	t.Run("retries rate limiting", func(t *testing.T) {
		t.Parallel()

		api := &sequencePriceAPI{
			errs:  []error{&httpStatusError{code: 429}},
			price: &entitlement.Price{ID: "price_2"},
		}
		r := entitlement.NewRetryingPriceAPI(api, fastRetry(3))

		_, err := r.RetrievePrice(ctx, "price_2")
		require.NoError(t, err)
		assert.Equal(t, 2, api.calls)
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		t.Parallel()

		notFound := &httpStatusError{code: 404}
		api := &sequencePriceAPI{errs: []error{notFound, notFound, notFound}}
		r := entitlement.NewRetryingPriceAPI(api, fastRetry(3))

		_, err := r.RetrievePrice(ctx, "price_3")
		require.Error(t, err)
		assert.Equal(t, 1, api.calls)
	})

	t.Run("exhausts the attempt budget and returns the last error", func(t *testing.T) {
		t.Parallel()

		down := &httpStatusError{code: 500}
		api := &sequencePriceAPI{errs: []error{down, down, down, down}}
		r := entitlement.NewRetryingPriceAPI(api, fastRetry(3))

		_, err := r.RetrievePrice(ctx, "price_4")
		require.Error(t, err)
		var se *httpStatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, 3, api.calls)
	})

	t.Run("retries transport errors without a status", func(t *testing.T) {
		t.Parallel()

		api := &sequencePriceAPI{
			errs:  []error{errors.New("connection reset")},
			price: &entitlement.Price{ID: "price_5"},
		}
		r := entitlement.NewRetryingPriceAPI(api, fastRetry(2))

		_, err := r.RetrievePrice(ctx, "price_5")
		require.NoError(t, err)
		assert.Equal(t, 2, api.calls)
	})

	t.Run("stops when context is canceled", func(t *testing.T) {
		t.Parallel()

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		down := &httpStatusError{code: 500}
		api := &sequencePriceAPI{errs: []error{down, down, down}}
		r := entitlement.NewRetryingPriceAPI(api, fastRetry(3))

		_, err := r.RetrievePrice(cctx, "price_6")
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, api.calls)
	})
}
