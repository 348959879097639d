package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalLocker_Exclusive(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()
	key := "tenant|connector|order"

	release, ok, err := l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, l.Held(key))

	_, ok, err = l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder is rejected, not queued")

	_, ok, err = l.TryLock(ctx, "tenant|connector|customer", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "other keys are independent")

	release()
	release()
	assert.False(t, l.Held(key))

	_, ok, err = l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalLocker_Expiry(t *testing.T) {
	l := NewLocalLocker()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	staleRelease, ok, _ := l.TryLock(ctx, "k", time.Minute)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = l.TryLock(ctx, "k", time.Minute)
	require.True(t, ok, "expired lock can be taken over")

	staleRelease()
	assert.True(t, l.Held("k"), "stale release does not free the new holder's key")
}

func TestLocalLocker_Concurrent(t *testing.T) {
	l := NewLocalLocker()
	const n = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := l.TryLock(context.Background(), "same", time.Minute)
			if err == nil && ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}

func TestRedisLocker_ErrorIsReported(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	l := NewRedisLocker(client, "", zap.NewNop())
	assert.Equal(t, DefaultKeyPrefix, l.keyPrefix)

	release, ok, err := l.TryLock(context.Background(), "k", time.Minute)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "acquire sync lock")
	assert.NotPanics(t, release)
}
