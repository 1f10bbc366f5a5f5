package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper answers whether a key is being seen for the first time within the
// cache window. Implementations must be safe for concurrent use.
type Deduper interface {
	// FirstSighting reports true the first time key is seen within ttl.
	FirstSighting(ctx context.Context, key string, ttl time.Duration) bool
}

// RedisDeduper marks sightings with SET NX + TTL, sharing the window across
// every processor instance.
type RedisDeduper struct {
	client *redis.Client
	prefix string
}

// NewRedisDeduper returns a Deduper backed by the given Redis client.
// Panics on a nil client to fail fast during initialization.
func NewRedisDeduper(client *redis.Client, prefix string) *RedisDeduper {
	if client == nil {
		panic("dedup: redis client is required")
	}
	if prefix == "" {
		prefix = "dedup"
	}
	return &RedisDeduper{client: client, prefix: prefix}
}

func (d *RedisDeduper) FirstSighting(ctx context.Context, key string, ttl time.Duration) bool {
	set, err := d.client.SetNX(ctx, d.prefix+":"+key, 1, ttl).Result()
	if err != nil {
		// Unreachable cache degrades to always-first: a repeated warning
		// beats a silenced one.
		return true
	}
	return set
}

type memoryEntry struct {
	expiresAt time.Time
}

// MemoryDeduper is a TTL'd in-process Deduper for tests and single-process
// setups. Expired entries are dropped lazily on access.
type MemoryDeduper struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryDeduper returns an empty MemoryDeduper.
func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{entries: make(map[string]memoryEntry)}
}

func (d *MemoryDeduper) FirstSighting(ctx context.Context, key string, ttl time.Duration) bool {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.entries[key]; ok && e.expiresAt.After(now) {
		return false
	}
	d.entries[key] = memoryEntry{expiresAt: now.Add(ttl)}
	return true
}
