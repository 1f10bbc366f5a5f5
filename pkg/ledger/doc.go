// Package ledger implements the idempotency ledger that turns at-least-once
// webhook delivery into exactly-once processing.
//
// Every event id owns at most one ProcessingRecord. The record's state moves
// monotonically: Processing -> Completed or Failed, never backwards. The
// guarantee rests on a single primitive: Begin performs an atomic
// insert-if-absent backed by a uniqueness constraint on the event id, and
// reports whether this caller claimed the event, lost the race, or reclaimed
// a record another worker abandoned. A read-then-insert sequence would race
// under concurrent redelivery; the conflict must surface from the store
// itself.
//
// Records are retained after completion for audit. PurgeOlderThan exists for
// an external retention job; nothing in this package calls it.
//
// Two Store implementations ship with the package: a Postgres store built on
// pgx (production) and an in-memory store (tests, single-process setups).
package ledger
