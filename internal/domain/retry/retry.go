// Package retry runs an operation with bounded, jittered exponential backoff.
package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// Policy configures how often and how patiently an operation is retried.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Factor       float64
}

// DefaultPolicy returns a policy suited to in-process store contention.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  8,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     250 * time.Millisecond,
		Factor:       2.0,
	}
}

// Do calls fn until it succeeds, returns a non-retryable error, or attempts
// run out. onRetry, when non-nil, is called before each wait. When ctx ends
// during a wait, ctx.Err() is returned.
func (p Policy) Do(ctx context.Context, fn func(attempt int) error, retryable func(error) bool, onRetry func(attempt int, err error)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.InitialDelay
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil || !retryable(err) || attempt == attempts {
			return err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if werr := sleep(ctx, jitter(delay)); werr != nil {
			return werr
		}
		delay = p.next(delay)
	}
	return err
}

func (p Policy) next(d time.Duration) time.Duration {
	f := p.Factor
	if f < 1 {
		f = 1
	}
	d = time.Duration(float64(d) * f)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// jitter spreads d over [d/2, d) so racing writers do not retry in lockstep.
func jitter(d time.Duration) time.Duration {
	if d <= 1 {
		return d
	}
	half := d / 2
	return half + time.Duration(rand.Int64N(int64(half)))
}

func sleep(ctx context.Context, d time.Duration) error {
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
