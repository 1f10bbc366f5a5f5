// Package usage tracks per-account, per-period consumption against the
// limits granted by the account's entitlement.
//
// The package exposes three primitives with distinct atomicity contracts:
//
//   - CheckLimit is an advisory read. It joins the entitlement limit and
//     the current counter in one store query so both values come from a
//     consistent snapshot, and it fails closed: any ambiguity is a denial.
//   - Increment is unconditional bookkeeping, a single atomic upsert-add in
//     the store. Combined with an advisory check, a burst of concurrent
//     requests can overshoot a finite limit by at most (concurrency - 1)
//     units, because each racer observed "allowed" before any increment
//     landed.
//   - TryConsume folds the limit check into the same atomic statement
//     (increment only while used + n stays within the limit, or the limit
//     is unlimited). Callers that require strict non-overshoot use it
//     instead of the check/increment pair.
//
// No caller mutates counters directly; all writes go through the Store.
// Periods are UTC calendar months. Rolling a new period is the job of an
// external scheduler calling ResetPeriod.
package usage
