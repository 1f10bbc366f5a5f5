// Package entitlement derives and stores per-account usage entitlements
// from billing provider plan metadata.
//
// The Resolver owns every write to the entitlement record. Writes are
// always wholesale: the new record replaces the old one entirely, which
// sidesteps partial-merge races between concurrent webhook deliveries at
// the cost of last-writer-wins semantics under out-of-order delivery.
//
// Resolution precedence is price metadata, then product metadata, then the
// defaults of the tier inferred from the price lookup key or product name.
// When the provider cannot be reached at all, the account is placed on the
// deterministic free-tier fallback; an account is never left without an
// entitlement record, and the read path degrades to the free default
// instead of returning errors to callers.
//
// The package also answers plan-level access questions: each tier caps the
// ordinal intensity levels (1-5) a feature may be configured with, and
// ceilings are monotonic across tiers.
package entitlement
