package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is a single reusable retry description: attempt bound, jittered
// exponential backoff, and a predicate deciding which errors are worth
// retrying. One policy instance is shared by every external capability call
// that is transient-failure-prone.
type Policy struct {
	MaxAttempts     uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Retryable reports whether err is transient. Nil retries everything.
	Retryable func(error) bool
}

// Default is tuned for local key-server and chain RPC round trips.
func Default() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// Do runs op until it succeeds, exhausts the attempt budget, returns a
// non-retryable error, or ctx is done. The last error is returned unwrapped.
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		bo.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		bo.MaxInterval = p.MaxInterval
	}
	bo.Reset()

	wrapped := backoff.WithMaxRetries(backoff.WithContext(bo, ctx), attempts-1)
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, wrapped)
}
