package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type ThrottleOptions struct {
	Enabled bool

	// per account token bucket; SendsPerMinute <= 0 disables it
	SendsPerMinute float64
	Burst          int

	BasePauseMin time.Duration
	BasePauseMax time.Duration

	ShortEvery    int
	ShortPauseMin time.Duration
	ShortPauseMax time.Duration

	LongEvery    int
	LongPauseMin time.Duration
	LongPauseMax time.Duration

	Sleep   func(ctx context.Context, d time.Duration) error
	Float64 func() float64
}

// Throttler spaces sends out: a pause that grows at fixed send counts, then a per account rate limit.
type Throttler struct {
	opts ThrottleOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewThrottler(opts ThrottleOptions) *Throttler {
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	if opts.Float64 == nil {
		opts.Float64 = rand.Float64
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	return &Throttler{opts: opts, limiters: make(map[string]*rate.Limiter)}
}

// PauseFor returns the pause taken after sent sends in the current run.
func (t *Throttler) PauseFor(sent int) time.Duration {
	if !t.opts.Enabled || sent <= 0 {
		return 0
	}
	switch {
	case t.opts.LongEvery > 0 && sent%t.opts.LongEvery == 0:
		return t.between(t.opts.LongPauseMin, t.opts.LongPauseMax)
	case t.opts.ShortEvery > 0 && sent%t.opts.ShortEvery == 0:
		return t.between(t.opts.ShortPauseMin, t.opts.ShortPauseMax)
	default:
		return t.between(t.opts.BasePauseMin, t.opts.BasePauseMax)
	}
}

func (t *Throttler) between(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(t.opts.Float64()*float64(hi-lo))
}

// Wait blocks before the next send through account, sent being the sends already made in the run.
func (t *Throttler) Wait(ctx context.Context, account string, sent int) error {
	if !t.opts.Enabled {
		return ctx.Err()
	}
	if d := t.PauseFor(sent); d > 0 {
		if err := t.opts.Sleep(ctx, d); err != nil {
			return err
		}
	}
	if l := t.limiter(account); l != nil {
		return l.Wait(ctx)
	}
	return ctx.Err()
}

func (t *Throttler) limiter(account string) *rate.Limiter {
	if t.opts.SendsPerMinute <= 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.limiters[account]
	if !ok {
		l = rate.NewLimiter(rate.Limit(t.opts.SendsPerMinute/60), t.opts.Burst)
		t.limiters[account] = l
	}
	return l
}
