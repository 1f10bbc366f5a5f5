// Package event defines the billing provider event model shared by the
// webhook gateway and the event processor.
//
// An Event is an immutable snapshot of a single provider notification. The
// provider delivers events at least once, in no particular order, so the
// only stable identity of a notification is its ID. Parsing normalizes the
// provider's event names into a closed Kind enumeration; everything the
// package does not recognize maps to KindUnrecognized, which is a valid,
// routable kind rather than an error.
//
// The raw payload is retained verbatim. Typed accessors (AccountID,
// CustomerRef, SubscriptionRef, PriceRef) extract correlation fields on a
// best-effort basis: a missing field yields a zero value, never an error,
// because extraction failures must not reject a delivery at the transport
// boundary.
package event
