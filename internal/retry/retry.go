// Package retry runs store writes with bounded exponential backoff and
// jitter.
package retry

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"

	"northstar/internal/metrics"
)

type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Jitter is the randomization factor applied to each delay, in [0,1].
	Jitter float64
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  4,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Jitter:       0.5,
	}
}

// Permanent marks err as not worth retrying. Do returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do calls op until it succeeds, returns a permanent error, the context
// ends, or MaxAttempts calls have failed. The last error is returned.
func (p Policy) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.MaxInterval = p.MaxDelay
	b.RandomizationFactor = p.Jitter
	b.Multiplier = 2

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, op(ctx)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			metrics.RetryAttempts.Inc()
			log.Printf("[Retry] %s failed, retrying in %v: %v\n", name, next.Round(time.Millisecond), err)
		}),
	)
	return err
}
