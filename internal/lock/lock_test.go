package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLocker(client, nil)
	l.Wait = 100 * time.Millisecond
	l.Retry = 10 * time.Millisecond
	return l, s
}

func TestLockExcludesSecondHolder(t *testing.T) {
	l, s := setupLocker(t)
	ctx := context.Background()

	lease, err := l.Lock(ctx, "event:gala")
	require.NoError(t, err)
	assert.True(t, s.Exists("lock:event:gala"))

	_, err = l.Lock(ctx, "event:gala")
	assert.ErrorIs(t, err, ErrNotAcquired)

	other, err := l.Lock(ctx, "event:picnic")
	require.NoError(t, err, "keys are independent")
	other.Release()

	lease.Release()
	assert.False(t, s.Exists("lock:event:gala"))

	again, err := l.Lock(ctx, "event:gala")
	require.NoError(t, err)
	again.Release()
}

func TestLockWaitsForRelease(t *testing.T) {
	l, _ := setupLocker(t)
	l.Wait = time.Second
	ctx := context.Background()

	lease, err := l.Lock(ctx, "k")
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		lease.Release()
	}()

	second, err := l.Lock(ctx, "k")
	require.NoError(t, err)
	second.Release()
}

func TestReleaseKeepsForeignHolder(t *testing.T) {
	l, s := setupLocker(t)
	ctx := context.Background()

	lease, err := l.Lock(ctx, "k")
	require.NoError(t, err)

	// Our lease expires and someone else takes the key.
	s.FastForward(l.TTL + time.Second)
	require.NoError(t, s.Set("lock:k", "someone-else"))

	assert.ErrorIs(t, lease.Check(ctx), ErrLost)
	lease.Release()
	got, err := s.Get("lock:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestLockHonoursContext(t *testing.T) {
	l, _ := setupLocker(t)
	l.Wait = time.Minute

	lease, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer lease.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotAcquired)
}

func TestLeaseCheck(t *testing.T) {
	l, s := setupLocker(t)
	ctx := context.Background()

	lease, err := l.Lock(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, lease.Check(ctx))

	s.FastForward(l.TTL + time.Second)
	assert.ErrorIs(t, lease.Check(ctx), ErrLost, "expired")

	s.Close()
	err = lease.Check(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLost, "backend errors are not a lost lock")
}

func TestHoldTTLCoversEveryCall(t *testing.T) {
	ttl := HoldTTL(3, 15*time.Second)
	assert.Greater(t, ttl, 45*time.Second)
	assert.Greater(t, HoldTTL(3, 15*time.Second), NewRedisLocker(nil, nil).TTL)
}
