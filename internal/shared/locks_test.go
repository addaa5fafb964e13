package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestChargeLockMutualExclusion(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	lock := NewChargeLock(client, time.Minute)

	chargeID := uuid.New()
	release, err := lock.Acquire(context.Background(), chargeID)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	if _, err := lock.Acquire(context.Background(), chargeID); !errors.Is(err, ErrChargeBusy) {
		t.Fatalf("expected ErrChargeBusy, got %v", err)
	}

	// A different charge is independent.
	otherRelease, err := lock.Acquire(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("independent acquire: %v", err)
	}
	otherRelease()

	release()
	release2, err := lock.Acquire(context.Background(), chargeID)
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	release2()
}
