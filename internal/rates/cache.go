package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores resolved snapshots in Redis with a TTL. It is owned by the
// resolver instance; there is no process-global cache state.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a snapshot cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

type cachedSnapshot struct {
	Date  time.Time          `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

func cacheKey(date time.Time) string {
	return fmt.Sprintf("rates:at:%s", date.Format(time.DateOnly))
}

// Get returns the cached snapshot for a requested date, if present.
func (c *Cache) Get(ctx context.Context, date time.Time) (Snapshot, bool) {
	if c == nil || c.client == nil {
		return Snapshot{}, false
	}
	raw, err := c.client.Get(ctx, cacheKey(date)).Bytes()
	if err != nil {
		return Snapshot{}, false
	}
	var cached cachedSnapshot
	if err := json.Unmarshal(raw, &cached); err != nil {
		return Snapshot{}, false
	}
	return Snapshot{Date: cached.Date, Rates: cached.Rates}, true
}

// Set stores a snapshot under the requested date.
func (c *Cache) Set(ctx context.Context, date time.Time, snap Snapshot) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(cachedSnapshot{Date: snap.Date, Rates: snap.Rates})
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, cacheKey(date), raw, c.ttl).Err()
}

// Invalidate drops the cached entry for a requested date. Called when the
// ingestion feed rewrites a snapshot.
func (c *Cache) Invalidate(ctx context.Context, date time.Time) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, cacheKey(date)).Err()
}
