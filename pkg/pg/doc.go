// Package pg bootstraps the PostgreSQL layer the billing stores run on:
// a pgxpool connection with startup retry, goose schema migrations, a
// health probe for the gateway, and error classification helpers shared by
// the store implementations.
//
// The stores themselves (webhook_events, account_entitlements,
// usage_counters, customer_accounts) live in their own packages and take a
// *pgxpool.Pool; this package only owns connectivity and schema lifecycle.
package pg
