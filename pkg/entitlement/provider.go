package entitlement

import "context"

// Price is the provider price object reduced to what resolution needs.
type Price struct {
	ID        string
	LookupKey string
	Metadata  map[string]string
	Product   Product
}

// Product is the provider product a price belongs to.
type Product struct {
	ID       string
	Name     string
	Metadata map[string]string
}

// PriceAPI fetches price and product metadata from the billing provider.
// Implementations are expected to be resilient callers: bounded retries on
// transient failures, surfacing the original error once the budget is
// exhausted. The Resolver treats any returned error as "provider
// unreachable" and falls back.
type PriceAPI interface {
	RetrievePrice(ctx context.Context, priceRef string) (*Price, error)
}
