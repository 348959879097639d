package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultKeyPrefix namespaces lock keys in a shared Redis
const DefaultKeyPrefix = "sync:lock:"

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a SET NX PX lock shared by every node
type RedisLocker struct {
	client    redis.UniversalClient
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisLocker creates a RedisLocker
func NewRedisLocker(client redis.UniversalClient, keyPrefix string, logger *zap.Logger) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{client: client, keyPrefix: keyPrefix, logger: logger}
}

// TryLock acquires key for ttl without blocking. A held key returns
// acquired=false; a Redis failure returns the error.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	redisKey := l.keyPrefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return noop, false, fmt.Errorf("acquire sync lock: %w", err)
	}
	if !ok {
		return noop, false, nil
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// The run's context may already be cancelled; release on a fresh one
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
			l.logger.Warn("Failed to release sync lock, it will expire",
				zap.String("lock_key", key),
				zap.Duration("ttl", ttl),
				zap.Error(err),
			)
		}
	}, true, nil
}
