package connector

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/erp/syncengine/internal/domain/integration"
)

// RetryPolicy controls how a connector retries transient failures
type RetryPolicy struct {
	// MaxAttempts counts the first call; 1 disables retries
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter is the randomization factor applied to each delay (0..1)
	Jitter float64
}

// DefaultRetryPolicy returns the production retry policy
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Jitter:      0.2,
	}
}

// RetryNotify is called before each retry with the error and the wait
type RetryNotify func(err error, wait time.Duration)

func (p RetryPolicy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.BaseDelay > 0 {
		b.InitialInterval = p.BaseDelay
	}
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	b.RandomizationFactor = p.Jitter
	b.Multiplier = 2
	return b
}

// Do runs op until it succeeds, fails permanently, or the attempts run out.
// Only transient errors are retried. A Retry-After hint on a rate limit error
// replaces the computed delay; a hint longer than MaxDelay ends the retries.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error, notify RetryNotify) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	b := &hintedBackOff{BackOff: p.newBackOff(), max: p.MaxDelay}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(backoff.Notify(notify)))
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		if !integration.IsTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		b.hint = integration.RetryAfterOf(err)
		return struct{}{}, err
	}, opts...)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Unwrap()
	}
	return err
}

// hintedBackOff prefers a server supplied delay over the exponential one
type hintedBackOff struct {
	backoff.BackOff
	hint time.Duration
	max  time.Duration
}

func (h *hintedBackOff) NextBackOff() time.Duration {
	if h.hint <= 0 {
		return h.BackOff.NextBackOff()
	}
	hint := h.hint
	h.hint = 0
	if h.max > 0 && hint > h.max {
		return backoff.Stop
	}
	return hint
}

func (h *hintedBackOff) Reset() {
	h.hint = 0
	h.BackOff.Reset()
}
