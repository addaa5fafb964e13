package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ChargeLockKey builds redis keys for charge regeneration critical sections.
func ChargeLockKey(chargeID uuid.UUID) string {
	return fmt.Sprintf("ledger:charge:%s:lock", chargeID)
}

// ChargeLock serializes regeneration cycles for the same charge across processes.
// The database row lock covers a single process; this guards overlapping requests
// landing on different instances.
type ChargeLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewChargeLock constructs a ChargeLock with the given lease duration.
func NewChargeLock(client *redis.Client, ttl time.Duration) *ChargeLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ChargeLock{client: client, ttl: ttl}
}

// Acquire takes the per-charge lock and returns a release function.
// Returns ErrChargeBusy when another holder owns the lease.
func (l *ChargeLock) Acquire(ctx context.Context, chargeID uuid.UUID) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	key := ChargeLockKey(chargeID)
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("shared: acquire charge lock: %w", err)
	}
	if !ok {
		return nil, ErrChargeBusy
	}
	release := func() {
		// Release only our own lease; an expired lease may already belong to someone else.
		const script = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
		_ = l.client.Eval(context.Background(), script, []string{key}, token).Err()
	}
	return release, nil
}
