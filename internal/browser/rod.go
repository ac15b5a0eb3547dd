// Package browser drives Chrome through go-rod, one browser process per account profile.
package browser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"wa-blaster/config"
	"wa-blaster/internal/automation"
	"wa-blaster/internal/model"

	"github.com/atotto/clipboard"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

const (
	PasteInsert    = "insert"
	PasteClipboard = "clipboard"
)

// Config holds browser launch settings.
type Config struct {
	Bin               string
	Headless          bool
	PasteMode         string
	NavigationTimeout time.Duration
	// Extra chrome flags in "name=value" or "name" form.
	Flags []string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PasteMode:         PasteInsert,
		NavigationTimeout: 60 * time.Second,
	}
}

func (c Config) navigationTimeout() time.Duration {
	if c.NavigationTimeout <= 0 {
		return 60 * time.Second
	}
	return c.NavigationTimeout
}

// Driver launches one Chrome per profile directory.
type Driver struct {
	cfg Config
	log zerolog.Logger

	// clipboard is process-global; pastes through it must not interleave
	clipMu sync.Mutex
}

func NewDriver(cfg Config, log zerolog.Logger) *Driver {
	return &Driver{cfg: cfg, log: log}
}

// Open starts Chrome with profileDir as its user data dir and attaches to its first tab.
func (d *Driver) Open(ctx context.Context, profileDir string) (automation.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(profileDir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve profile %s: %v", model.ErrSession, profileDir, err)
	}

	l := launcher.New().UserDataDir(abs).Headless(d.cfg.Headless)
	if d.cfg.Bin != "" {
		l = l.Bin(d.cfg.Bin)
	}
	for _, rawFlag := range d.cfg.Flags {
		name, val, hasVal := strings.Cut(strings.TrimLeft(rawFlag, "-"), "=")
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: launch chrome for %s: %v", model.ErrSession, abs, err)
	}

	// neither launcher nor browser is bound to ctx: the session outlives the request that opened it
	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("%w: connect to chrome for %s: %v", model.ErrSession, abs, err)
	}

	page, err := firstPage(b)
	if err != nil {
		_ = b.Close()
		l.Kill()
		return nil, fmt.Errorf("%w: open tab for %s: %v", model.ErrSession, abs, err)
	}

	d.log.Debug().Str("profile", abs).Str("control_url", controlURL).Msg("browser session opened")

	return &Session{
		driver:   d,
		launcher: l,
		browser:  b,
		page:     page,
		profile:  abs,
	}, nil
}

func firstPage(b *rod.Browser) (*rod.Page, error) {
	pages, err := b.Pages()
	if err == nil && len(pages) > 0 {
		return pages.First(), nil
	}
	return b.Page(proto.TargetCreateTarget{URL: "about:blank"})
}

// Session is one Chrome process bound to a single account profile.
type Session struct {
	driver   *Driver
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	profile  string

	closeOnce sync.Once
	closeErr  error
}

// Navigate loads url and clears any beforeunload prompt the web client installs.
func (s *Session) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx).Timeout(s.driver.cfg.navigationTimeout())
	defer p.CancelTimeout()

	if err := p.Navigate(url); err != nil {
		return s.wrap(ctx, "navigate "+url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return s.wrap(ctx, "wait load "+url, err)
	}
	if _, err := p.Eval(`() => { window.onbeforeunload = null }`); err != nil {
		s.driver.log.Debug().Err(err).Str("profile", s.profile).Msg("clear onbeforeunload failed")
	}
	return nil
}

func (s *Session) WaitFor(ctx context.Context, selector string, timeout time.Duration) (automation.Element, error) {
	p := s.page.Context(ctx).Timeout(timeout)

	var (
		el  *rod.Element
		err error
	)
	if automation.IsXPath(selector) {
		el, err = p.ElementX(selector)
	} else {
		el, err = p.Element(selector)
	}
	if err != nil {
		return nil, s.wrapWait(ctx, selector, err)
	}
	return &Element{el: el.CancelTimeout(), selector: selector}, nil
}

func (s *Session) Has(ctx context.Context, selector string) (bool, error) {
	p := s.page.Context(ctx)

	var (
		found bool
		err   error
	)
	if automation.IsXPath(selector) {
		found, _, err = p.HasX(selector)
	} else {
		found, _, err = p.Has(selector)
	}
	if err != nil {
		return false, s.wrap(ctx, "query "+selector, err)
	}
	return found, nil
}

func (s *Session) PasteText(ctx context.Context, text string) error {
	p := s.page.Context(ctx)

	if s.driver.cfg.PasteMode != PasteClipboard {
		if err := p.InsertText(text); err != nil {
			return s.wrap(ctx, "insert text", err)
		}
		return nil
	}

	s.driver.clipMu.Lock()
	defer s.driver.clipMu.Unlock()

	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("%w: write clipboard: %v", model.ErrSession, err)
	}
	if err := p.KeyActions().Press(input.ControlLeft).Type(input.KeyV).Do(); err != nil {
		return s.wrap(ctx, "paste keystroke", err)
	}
	return nil
}

// Close shuts Chrome down. The profile directory is kept.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if err := s.browser.Close(); err != nil {
			s.closeErr = fmt.Errorf("close browser %s: %w", s.profile, err)
			s.launcher.Kill()
		}
	})
	return s.closeErr
}

func (s *Session) wrapWait(ctx context.Context, selector string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", model.ErrElementNotFound, selector)
	}
	return s.wrap(ctx, "wait "+selector, err)
}

func (s *Session) wrap(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s (%s): %v", model.ErrSession, op, s.profile, err)
}

// Element wraps a located rod element.
type Element struct {
	el       *rod.Element
	selector string
}

func (e *Element) Click(ctx context.Context) error {
	if err := e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: click %s: %v", model.ErrElementNotFound, e.selector, err)
	}
	return nil
}

func (e *Element) SetFiles(paths []string) error {
	abs := make([]string, 0, len(paths))
	for _, p := range paths {
		a, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("%w: resolve %s: %v", model.ErrFilesystem, p, err)
		}
		abs = append(abs, a)
	}
	if err := e.el.SetFiles(abs); err != nil {
		return fmt.Errorf("%w: set files on %s: %v", model.ErrElementNotFound, e.selector, err)
	}
	return nil
}

var (
	_ automation.Driver  = (*Driver)(nil)
	_ automation.Session = (*Session)(nil)
	_ automation.Element = (*Element)(nil)
)

// ConfigFrom maps the env-driven browser settings onto a launch config.
func ConfigFrom(cfg config.BrowserConfig) Config {
	c := DefaultConfig()
	c.Bin = cfg.Bin
	c.Headless = cfg.Headless
	if cfg.PasteMode != "" {
		c.PasteMode = cfg.PasteMode
	}
	return c
}
