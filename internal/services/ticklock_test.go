package services

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestLocalTickLock(t *testing.T) {
	ctx := context.Background()
	lock := NewLocalTickLock()

	release, err := lock.Acquire(ctx)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if _, err := lock.Acquire(ctx); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("second Acquire err = %v, want ErrLockHeld", err)
	}
	release()

	release, err = lock.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	release()
}

func TestRedisTickLock(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	rdb.Del(ctx, TickLockKey)

	a := NewRedisTickLock(rdb, time.Minute)
	b := NewRedisTickLock(rdb, time.Minute)

	release, err := a.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := b.Acquire(ctx); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("contended Acquire err = %v, want ErrLockHeld", err)
	}

	// a lease that expired must not release its successor
	rdb.Set(ctx, TickLockKey, "someone-else", time.Minute)
	release()
	if v, _ := rdb.Get(ctx, TickLockKey).Result(); v != "someone-else" {
		t.Fatalf("stale release deleted the successor lease, key = %q", v)
	}
	rdb.Del(ctx, TickLockKey)

	release, err = b.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	release()
	if n, _ := rdb.Exists(ctx, TickLockKey).Result(); n != 0 {
		t.Fatalf("lock key still present after release")
	}
}
