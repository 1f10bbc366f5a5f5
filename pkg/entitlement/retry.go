package entitlement

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"
)

// RetryConfig bounds the retrying price caller.
type RetryConfig struct {
	MaxAttempts int           `env:"BILLING_RETRY_MAX_ATTEMPTS" envDefault:"3"` // total attempts, first call included
	BaseDelay   time.Duration `env:"BILLING_RETRY_BASE_DELAY" envDefault:"500ms"`
	MaxDelay    time.Duration `env:"BILLING_RETRY_MAX_DELAY" envDefault:"10s"`
}

// statusError lets transport implementations expose the HTTP status of a
// failed provider call so the retry policy can classify it.
type statusError interface {
	StatusCode() int
}

// retryable reports whether an attempt is worth repeating: transient
// transport errors and 5xx/429 responses are; other client errors are not.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var se statusError
	if errors.As(err, &se) {
		code := se.StatusCode()
		return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
	}

	// No status available: assume a transport-level failure and retry.
	return true
}

// RetryingPriceAPI wraps a PriceAPI with bounded exponential backoff.
// Delay grows as min(base * 2^attempt, cap); after the budget is exhausted
// the original error is returned unchanged.
type RetryingPriceAPI struct {
	api PriceAPI
	cfg RetryConfig
}

// NewRetryingPriceAPI wraps api with the retry policy from cfg. Zero config
// fields take the documented defaults.
func NewRetryingPriceAPI(api PriceAPI, cfg RetryConfig) *RetryingPriceAPI {
	if api == nil {
		panic("entitlement: PriceAPI is required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	return &RetryingPriceAPI{api: api, cfg: cfg}
}

func (r *RetryingPriceAPI) RetrievePrice(ctx context.Context, priceRef string) (*Price, error) {
	var lastErr error

	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.Join(lastErr, ctx.Err())
			case <-time.After(r.delay(attempt)):
			}
		}

		price, err := r.api.RetrievePrice(ctx, priceRef)
		if err == nil {
			return price, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}

	return nil, lastErr
}

func (r *RetryingPriceAPI) delay(attempt int) time.Duration {
	d := time.Duration(float64(r.cfg.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if d > r.cfg.MaxDelay {
		d = r.cfg.MaxDelay
	}
	return d
}
