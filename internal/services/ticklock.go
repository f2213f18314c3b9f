package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TickLockKey is the redis key guarding the scheduler tick
const TickLockKey = "nudge:reminders:tick"

// ErrLockHeld means another scheduler instance is running a tick
var ErrLockHeld = errors.New("tick lock held by another instance")

// TickLock serializes ticks across scheduler instances. The returned release
// function must be called once the tick is done.
type TickLock interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// RedisTickLock is a single-key lease: SET NX with an expiry, released only
// by the holder of the token.
type RedisTickLock struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func NewRedisTickLock(rdb *redis.Client, ttl time.Duration) *RedisTickLock {
	if ttl <= 0 {
		ttl = 4 * time.Minute
	}
	return &RedisTickLock{rdb: rdb, key: TickLockKey, ttl: ttl}
}

// compare-and-delete so an expired lease never releases its successor
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *RedisTickLock) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire tick lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Err()
	}, nil
}

// LocalTickLock prevents overlapping ticks within one process
type LocalTickLock struct {
	mu sync.Mutex
}

func NewLocalTickLock() *LocalTickLock {
	return &LocalTickLock{}
}

func (l *LocalTickLock) Acquire(context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, ErrLockHeld
	}
	return l.mu.Unlock, nil
}
