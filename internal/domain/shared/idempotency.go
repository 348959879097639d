package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys that were already handled, such as the
// delivery IDs of inbound platform webhooks. Keys expire after a TTL.
type IdempotencyStore interface {
	// MarkProcessed records key. It reports false when the key was already
	// recorded and has not yet expired.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether key is currently recorded.
	IsProcessed(ctx context.Context, key string) (bool, error)

	Close() error
}

// IdempotencyConfig controls how long handled keys are remembered
type IdempotencyConfig struct {
	TTL     time.Duration
	Enabled bool
}

// DefaultIdempotencyConfig keeps keys for a day, longer than any platform
// retries a webhook delivery
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
