// Package dedup suppresses duplicate webhook deliveries. Pipedream retries
// deliveries on slow responses, so the gateway remembers recently seen
// deliveries for a TTL and short-circuits replays before any processing.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper reports whether a delivery has been seen within the TTL window.
// Seen marks the delivery and returns true when it was already recorded.
type Deduper interface {
	Seen(ctx context.Context, sourceID string, payload []byte) (bool, error)
	Close() error
}

// Key derives the dedup key for a delivery from its source and payload hash.
func Key(sourceID string, payload []byte) string {
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("dedup:webhook:%s:%s", sourceID, hex.EncodeToString(sum[:]))
}

// RedisDeduper records deliveries in Redis with SET NX and a TTL, so the
// window survives restarts and is shared across replicas.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) Seen(ctx context.Context, sourceID string, payload []byte) (bool, error) {
	created, err := d.client.SetNX(ctx, Key(sourceID, payload), "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check delivery dedup: %w", err)
	}
	return !created, nil
}

func (d *RedisDeduper) Close() error {
	return d.client.Close()
}

// MemoryDeduper is the single-node fallback when Redis is not configured.
type MemoryDeduper struct {
	ttl  time.Duration
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryDeduper{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (d *MemoryDeduper) Seen(ctx context.Context, sourceID string, payload []byte) (bool, error) {
	key := Key(sourceID, payload)
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	// Opportunistic sweep of expired entries.
	for k, at := range d.seen {
		if now.Sub(at) > d.ttl {
			delete(d.seen, k)
		}
	}

	if at, ok := d.seen[key]; ok && now.Sub(at) <= d.ttl {
		return true, nil
	}
	d.seen[key] = now
	return false, nil
}

func (d *MemoryDeduper) Close() error { return nil }
