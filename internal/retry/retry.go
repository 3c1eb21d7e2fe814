// Package retry runs an operation until it succeeds or a bounded attempt
// budget is spent.
package retry

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrExhausted marks the error returned once every attempt has failed.
var ErrExhausted = errors.New("retry budget exhausted")

// Policy bounds a retry loop.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// Delay is the wait after the first failed attempt.
	Delay time.Duration

	// Multiplier scales Delay after every failure. Zero or one keeps the
	// delay fixed.
	Multiplier float64

	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Fixed returns a fixed-delay policy.
func Fixed(attempts int, delay time.Duration) Policy {
	return Policy{MaxAttempts: attempts, Delay: delay}
}

// Budget is the total time spent waiting if every attempt fails and the
// delay is slept after each attempt, which is how the wait is reported.
func (p Policy) Budget() time.Duration {
	var total time.Duration
	d := p.Delay
	for i := 0; i < p.MaxAttempts; i++ {
		total += d
		d = p.next(d)
	}
	return total
}

func (p Policy) next(d time.Duration) time.Duration {
	if p.Multiplier <= 1 {
		return d
	}
	return time.Duration(float64(d) * p.Multiplier)
}

// Do calls fn until it returns nil or MaxAttempts is reached. notify, when
// non-nil, is called after every failed attempt, before any wait. There is
// no wait after the final attempt. Attempt indexes are 1-based.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error, notify func(attempt int, err error)) error {
	if p.MaxAttempts < 1 {
		return errors.Newf("invalid retry policy: max attempts %d", p.MaxAttempts)
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	delay := p.Delay
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if notify != nil {
			notify(attempt, lastErr)
		}
		if attempt == p.MaxAttempts {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return errors.Wrapf(err, "interrupted after attempt %d", attempt)
		}
		delay = p.next(delay)
	}

	return errors.Mark(errors.Wrapf(lastErr, "all %d attempts failed", p.MaxAttempts), ErrExhausted)
}

func sleepContext(ctx context.Context, d time.Duration) error {
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
