// Package dedup provides a bounded, shared first-sighting cache used to
// emit a warning only once per key across all processor instances.
//
// A process-local set would grow without bound and would log once per
// instance in a multi-replica deployment; delegating to a TTL'd external
// cache bounds memory and deduplicates fleet-wide. When the cache is
// unavailable, FirstSighting answers true: the worst case is a repeated
// warning, never a silenced one.
package dedup
