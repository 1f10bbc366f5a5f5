// Package processor orchestrates webhook event processing: idempotency
// claim, typed dispatch, and outcome recording.
//
// The control flow for one delivery is a short state machine:
//
//	Received -> duplicate?  -> Acknowledged no-op
//	         -> new         -> Claimed -> Dispatched -> Succeeded | Failed
//
// The claim step is the only idempotency mechanism: the ledger's atomic
// insert-if-absent decides which of N concurrent deliveries of the same
// event id runs the handler. Everything after the claim is failure-tolerant
// in one specific way: handler failures are recorded in the ledger and the
// delivery is still acknowledged, because a non-2xx answer would make the
// provider redeliver an event that will fail identically every time. Only
// the transport layer (signature verification, body parsing) may refuse a
// delivery.
//
// Routing is a closed mapping from the event kind enumeration to handlers;
// unknown kinds route to a no-op handler that succeeds with handled=false
// and emits a deduplicated warning. Adding a kind means extending the enum
// and the mapping, keeping the routing auditable.
package processor
