// Package retry is the fixed-delay retry policy used for page fetches and
// the context-aware waits used for cool-down and politeness delays.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tradepath/roi-ingest/internal/etlerr"
)

// Policy retries an operation up to Retries extra times with a constant Delay.
// Only errors classified as transient are retried.
type Policy struct {
	Retries int
	Delay   time.Duration
}

// NotifyFunc is called before each retry with the 1-based attempt that failed.
type NotifyFunc func(attempt int, err error, wait time.Duration)

// Do runs op until it succeeds, returns a non-transient error, the retry
// budget is spent, or ctx is done. The last error is returned unchanged.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error, notify NotifyFunc) error {
	retries := p.Retries
	if retries < 0 {
		retries = 0
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(p.Delay)
	b = backoff.WithMaxRetries(b, uint64(retries))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !etlerr.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.RetryNotify(operation, b, func(err error, wait time.Duration) {
		if notify != nil {
			notify(attempt, err, wait)
		}
	})
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
