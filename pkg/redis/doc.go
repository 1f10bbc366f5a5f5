// Package redis owns the Redis connection used by the warn-dedup cache:
// a Connect helper with startup retry and a health probe for the gateway.
// Configuration comes from the environment via pkg/config.
package redis
