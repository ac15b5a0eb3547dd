package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"wa-blaster/internal/model"
)

// RetryPolicy retries UI steps that failed because an element did not show up in time.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Retryable overrides the default ErrElementNotFound check.
	Retryable func(error) bool
	// Sleep and Jitter are overridable for tests.
	Sleep  func(ctx context.Context, d time.Duration) error
	Jitter func() float64
}

func (p RetryPolicy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

// Backoff returns the delay before retry number n (1-based): base<<(n-1), capped at MaxDelay.
func (p RetryPolicy) Backoff(n int) time.Duration {
	if p.BaseDelay <= 0 || n < 1 {
		return 0
	}
	shift := n - 1
	if shift > 30 {
		shift = 30
	}
	d := p.BaseDelay * time.Duration(1<<shift)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Do runs fn until it succeeds, returns a non-retryable error, or attempts run out.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = func(err error) bool { return errors.Is(err, model.ErrElementNotFound) }
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	jitter := p.Jitter
	if jitter == nil {
		jitter = func() float64 { return 0.7 + rand.Float64()*0.6 }
	}

	var err error
	for attempt := 1; attempt <= p.attempts(); attempt++ {
		if err = fn(ctx); err == nil || !retryable(err) || attempt == p.attempts() {
			return err
		}
		wait := time.Duration(float64(p.Backoff(attempt)) * jitter())
		if serr := sleep(ctx, wait); serr != nil {
			return serr
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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
