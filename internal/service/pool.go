package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"wa-blaster/internal/automation"
	"wa-blaster/internal/model"
	"wa-blaster/internal/ws"

	"github.com/rs/zerolog"
)

type SelectionPolicy string

const (
	PolicyRoundRobin SelectionPolicy = "round-robin"
	PolicyLRU        SelectionPolicy = "lru"
	PolicyRandom     SelectionPolicy = "random"
)

// ParseSelectionPolicy accepts the policy names case-insensitively. Empty means round-robin.
func ParseSelectionPolicy(s string) (SelectionPolicy, error) {
	switch SelectionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyRoundRobin, "roundrobin", "rr":
		return PolicyRoundRobin, nil
	case PolicyLRU:
		return PolicyLRU, nil
	case PolicyRandom:
		return PolicyRandom, nil
	}
	return "", fmt.Errorf("%w: unknown selection policy %q", model.ErrValidation, s)
}

type PoolOptions struct {
	// SettleDelay is waited after each session opens so the web client can load.
	SettleDelay time.Duration
	Policy      SelectionPolicy
	Publisher   ws.RealtimePublisher
	Log         zerolog.Logger

	Sleep func(ctx context.Context, d time.Duration) error
	Intn  func(n int) int
	Now   func() time.Time
}

type account struct {
	id         string
	profileDir string
	session    automation.Session

	busy     bool
	disabled bool
	reason   string
	sends    int
	failures int
	lastUsed time.Time
}

// Lease is exclusive use of one account until Release.
type Lease struct {
	ID      string
	Session automation.Session
}

// SessionPool owns the open browser sessions, keyed by profile directory name.
type SessionPool struct {
	driver automation.Driver
	opts   PoolOptions

	// held for the whole of a setup
	setupMu sync.Mutex

	mu       sync.Mutex
	accounts map[string]*account
	order    []string
	next     int
	// closed and replaced whenever an account frees up or gets disabled
	changed chan struct{}
}

func NewSessionPool(driver automation.Driver, opts PoolOptions) *SessionPool {
	if opts.Policy == "" {
		opts.Policy = PolicyRoundRobin
	}
	if opts.Publisher == nil {
		opts.Publisher = ws.NopPublisher{}
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	if opts.Intn == nil {
		opts.Intn = rand.Intn
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SessionPool{
		driver:   driver,
		opts:     opts,
		accounts: make(map[string]*account),
		changed:  make(chan struct{}),
	}
}

func (p *SessionPool) Setup(ctx context.Context, root, platform string) error {
	return p.SetupWith(ctx, p.driver, root, platform)
}

// SetupWith opens one session per immediate subdirectory of root/platform using driver.
// Any sessions from a previous setup are closed first. A failed open stops the setup;
// sessions opened before it stay pooled. A setup started while another is in progress
// returns model.ErrSetupRunning.
func (p *SessionPool) SetupWith(ctx context.Context, driver automation.Driver, root, platform string) error {
	if driver == nil {
		return fmt.Errorf("%w: no browser driver configured", model.ErrSession)
	}
	if !p.setupMu.TryLock() {
		return model.ErrSetupRunning
	}
	defer p.setupMu.Unlock()

	base := filepath.Join(root, platform)
	entries, err := os.ReadDir(base)
	if err != nil {
		return fmt.Errorf("%w: list profiles in %s: %v", model.ErrSession, base, err)
	}

	if err := p.Close(); err != nil {
		p.opts.Log.Warn().Err(err).Msg("closing previous sessions")
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		id := entry.Name()
		dir := filepath.Join(base, id)
		sess, err := driver.Open(ctx, dir)
		if err != nil {
			if errors.Is(err, model.ErrSession) {
				return fmt.Errorf("open %s: %w", id, err)
			}
			return fmt.Errorf("%w: open %s: %v", model.ErrSession, id, err)
		}

		p.mu.Lock()
		prev := p.accounts[id]
		p.accounts[id] = &account{id: id, profileDir: dir, session: sess}
		if prev == nil {
			p.order = append(p.order, id)
		}
		p.notifyLocked()
		p.mu.Unlock()
		if prev != nil {
			if err := prev.session.Close(); err != nil {
				p.opts.Log.Warn().Err(err).Str("account", id).Msg("closing replaced session")
			}
		}

		p.opts.Log.Info().Str("account", id).Str("profile", dir).Msg("session opened")
		p.opts.Publisher.Publish(ws.WsEvent{
			Event: ws.EventSessionOpened,
			Data:  ws.SessionStatusData{Account: id, ProfileDir: dir},
		})

		if err := p.opts.Sleep(ctx, p.opts.SettleDelay); err != nil {
			return err
		}
	}

	p.opts.Log.Info().Int("sessions", p.Len()).Str("platform", platform).Msg("session setup finished")
	return nil
}

func (p *SessionPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.accounts)
}

// Enabled counts accounts that can still be leased.
func (p *SessionPool) Enabled() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, a := range p.accounts {
		if !a.disabled {
			n++
		}
	}
	return n
}

// Acquire leases an idle enabled account picked by the selection policy. It waits while every
// enabled account is busy and fails with ErrNoSessions when none are enabled.
func (p *SessionPool) Acquire(ctx context.Context) (*Lease, error) {
	for {
		p.mu.Lock()
		idle, enabled := p.candidatesLocked()
		if enabled == 0 {
			p.mu.Unlock()
			return nil, model.ErrNoSessions
		}
		if len(idle) > 0 {
			a := p.pickLocked(idle)
			a.busy = true
			a.lastUsed = p.opts.Now()
			p.mu.Unlock()
			return &Lease{ID: a.id, Session: a.session}, nil
		}
		wait := p.changed
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

// candidatesLocked returns idle enabled accounts in setup order.
func (p *SessionPool) candidatesLocked() ([]*account, int) {
	var idle []*account
	enabled := 0
	for _, id := range p.order {
		a := p.accounts[id]
		if a.disabled {
			continue
		}
		enabled++
		if !a.busy {
			idle = append(idle, a)
		}
	}
	return idle, enabled
}

func (p *SessionPool) pickLocked(idle []*account) *account {
	switch p.opts.Policy {
	case PolicyRandom:
		return idle[p.opts.Intn(len(idle))]

	case PolicyLRU:
		best := idle[0]
		for _, a := range idle[1:] {
			if a.lastUsed.Before(best.lastUsed) {
				best = a
			}
		}
		return best

	default:
		n := len(p.order)
		for i := 0; i < n; i++ {
			idx := (p.next + i) % n
			for _, a := range idle {
				if a.id == p.order[idx] {
					p.next = idx + 1
					return a
				}
			}
		}
		return idle[0]
	}
}

// Release returns a lease. sendErr is the outcome of the send made through it;
// cancellation and unreachable numbers are not counted against the account.
func (p *SessionPool) Release(l *Lease, sendErr error) {
	if l == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.accounts[l.ID]
	if !ok || a.session != l.Session {
		return
	}
	a.busy = false
	switch {
	case sendErr == nil:
		a.sends++
	case errors.Is(sendErr, context.Canceled), errors.Is(sendErr, context.DeadlineExceeded),
		errors.Is(sendErr, model.ErrNumberUnavailable):
	default:
		a.failures++
	}
	p.notifyLocked()
}

// Disable takes an account out of rotation for the rest of the pool's life.
func (p *SessionPool) Disable(id, reason string) {
	p.mu.Lock()
	a, ok := p.accounts[id]
	if !ok || a.disabled {
		p.mu.Unlock()
		return
	}
	a.disabled = true
	a.reason = reason
	p.notifyLocked()
	p.mu.Unlock()

	p.opts.Log.Warn().Str("account", id).Str("reason", reason).Msg("session disabled")
	p.opts.Publisher.Publish(ws.WsEvent{
		Event: ws.EventSessionDisabled,
		Data:  ws.SessionStatusData{Account: id, Reason: reason},
	})
}

func (p *SessionPool) notifyLocked() {
	close(p.changed)
	p.changed = make(chan struct{})
}

func (p *SessionPool) Accounts() []model.AccountInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]model.AccountInfo, 0, len(p.accounts))
	for _, a := range p.accounts {
		info := model.AccountInfo{
			ID:         a.id,
			ProfileDir: a.profileDir,
			Sends:      a.sends,
			Failures:   a.failures,
			Busy:       a.busy,
			Disabled:   a.disabled,
			Reason:     a.reason,
		}
		if !a.lastUsed.IsZero() {
			t := a.lastUsed
			info.LastUsed = &t
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Close closes every session and empties the pool.
func (p *SessionPool) Close() error {
	p.mu.Lock()
	accounts := p.accounts
	p.accounts = make(map[string]*account)
	p.order = nil
	p.next = 0
	p.notifyLocked()
	p.mu.Unlock()

	if len(accounts) == 0 {
		return nil
	}

	var errs []error
	for id, a := range accounts {
		if err := a.session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
	}
	p.opts.Log.Info().Int("sessions", len(accounts)).Msg("sessions closed")
	p.opts.Publisher.Publish(ws.WsEvent{Event: ws.EventSessionsClosed, Data: map[string]int{"closed": len(accounts)}})
	return errors.Join(errs...)
}
