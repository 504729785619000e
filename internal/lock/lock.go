// Package lock provides a short-lived mutual exclusion lock shared by every
// portal instance through Redis.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotAcquired is returned when the lock stayed held for the whole wait.
	ErrNotAcquired = errors.New("lock not acquired")
	// ErrLost is returned by Lease.Check once the lock expired or another
	// holder took it over.
	ErrLost = errors.New("lock lost")
)

// Lease is a held lock.
type Lease interface {
	// Check returns ErrLost when the lock is no longer ours.
	Check(ctx context.Context) error
	Release()
}

// HoldTTL returns a lock lifetime that outlasts the given number of
// sequential remote calls, each bounded by callTimeout.
func HoldTTL(calls int, callTimeout time.Duration) time.Duration {
	return time.Duration(calls)*callTimeout + 5*time.Second
}

// release deletes the key only if it still holds our token.
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker hands out locks backed by SET NX PX.
type RedisLocker struct {
	client *redis.Client
	prefix string
	// TTL bounds how long a crashed holder blocks others.
	TTL time.Duration
	// Wait is the longest Lock blocks before giving up.
	Wait time.Duration
	// Retry is the polling interval while waiting.
	Retry  time.Duration
	logger *slog.Logger
}

// NewRedisLocker constructs a locker with defaults suited to one
// registration round-trip against the content store.
func NewRedisLocker(client *redis.Client, logger *slog.Logger) *RedisLocker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{
		client: client,
		prefix: "lock:",
		TTL:    10 * time.Second,
		Wait:   3 * time.Second,
		Retry:  50 * time.Millisecond,
		logger: logger.With("component", "lock"),
	}
}

// Lock acquires key, waiting up to Wait.
func (l *RedisLocker) Lock(ctx context.Context, key string) (Lease, error) {
	k := l.prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.Wait)

	for {
		ok, err := l.client.SetNX(ctx, k, token, l.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return &redisLease{locker: l, key: k, token: token}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrNotAcquired
		}

		t := time.NewTimer(l.Retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

type redisLease struct {
	locker *RedisLocker
	key    string
	token  string
}

func (le *redisLease) Check(ctx context.Context) error {
	holder, err := le.locker.client.Get(ctx, le.key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return ErrLost
	case err != nil:
		return fmt.Errorf("check %s: %w", le.key, err)
	case holder != le.token:
		return ErrLost
	}
	return nil
}

func (le *redisLease) Release() {
	// The request context may already be done; release on a fresh one.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := release.Run(ctx, le.locker.client, []string{le.key}, le.token).Err(); err != nil {
		le.locker.logger.Warn("lock release failed", "key", le.key, "error", err)
	}
}
