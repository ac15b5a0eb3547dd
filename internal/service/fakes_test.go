package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"wa-blaster/internal/automation"
	"wa-blaster/internal/model"
	"wa-blaster/internal/ws"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testSelectors = Selectors{
	MessageBox:    "#compose",
	SendButton:    "#send",
	AttachInput:   "input[type=file]",
	AttachSend:    "#attach-send",
	InvalidNumber: "//div[@role='dialog']",
}

const testChatURL = "https://chat.test/send?phone="

type fakeDriver struct {
	mu       sync.Mutex
	opened   []string
	sessions map[string]*fakeSession
	failOn   string
	setup    func(s *fakeSession)
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{sessions: map[string]*fakeSession{}}
}

func (d *fakeDriver) Open(_ context.Context, profileDir string) (automation.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name := filepath.Base(profileDir)
	d.opened = append(d.opened, profileDir)
	if name == d.failOn {
		return nil, fmt.Errorf("%w: chrome exited", model.ErrSession)
	}
	s := newFakeSession(name)
	if d.setup != nil {
		d.setup(s)
	}
	d.sessions[name] = s
	return s, nil
}

func (d *fakeDriver) session(name string) *fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions[name]
}

// fakeSession scripts a chat page: numbers listed in invalid show the invalid dialog,
// missing[selector] makes the next n waits for selector time out.
type fakeSession struct {
	name string

	mu        sync.Mutex
	actions   []string
	current   string
	invalid   map[string]bool
	missing   map[string]int
	loadPolls int
	polls     int

	navigateErr error
	pasteErr    error
	closeErr    error
	closed      int
	onAction    func(action string)
}

func newFakeSession(name string) *fakeSession {
	return &fakeSession{name: name, invalid: map[string]bool{}, missing: map[string]int{}}
}

func (s *fakeSession) record(action string) {
	s.actions = append(s.actions, action)
	if s.onAction != nil {
		s.onAction(action)
	}
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.navigateErr != nil {
		return s.navigateErr
	}
	s.current = url
	s.polls = 0
	s.record("navigate:" + url)
	return nil
}

func (s *fakeSession) currentNumber() string {
	_, number, _ := strings.Cut(s.current, "phone=")
	return number
}

func (s *fakeSession) WaitFor(ctx context.Context, selector string, _ time.Duration) (automation.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.missing[selector] > 0 {
		s.missing[selector]--
		return nil, fmt.Errorf("%w: %s", model.ErrElementNotFound, selector)
	}
	return &fakeElement{s: s, selector: selector}, nil
}

func (s *fakeSession) Has(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch selector {
	case testSelectors.InvalidNumber:
		return s.invalid[s.currentNumber()], nil
	case testSelectors.MessageBox:
		if s.invalid[s.currentNumber()] {
			return false, nil
		}
		s.polls++
		return s.polls > s.loadPolls, nil
	}
	return false, nil
}

func (s *fakeSession) PasteText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pasteErr != nil {
		return s.pasteErr
	}
	s.record("paste:" + text)
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return s.closeErr
}

func (s *fakeSession) Actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.actions...)
}

type fakeElement struct {
	s        *fakeSession
	selector string
}

func (e *fakeElement) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	e.s.record("click:" + e.selector)
	return nil
}

func (e *fakeElement) SetFiles(paths []string) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	e.s.record("files:" + strings.Join(paths, ","))
	return nil
}

// fakeClock advances only when something sleeps.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.slept = append(c.slept, d)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ws.WsEvent
}

func (p *recordingPublisher) Publish(evt ws.WsEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var names []string
	for _, e := range p.events {
		names = append(names, e.Event)
	}
	return names
}

// makeProfiles creates root/whatsapp/<id> for each id and returns root.
func makeProfiles(t *testing.T, ids ...string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "whatsapp"), 0o755))
	for _, id := range ids {
		require.NoError(t, os.MkdirAll(filepath.Join(root, "whatsapp", id), 0o755))
	}
	return root
}

func newTestPool(t *testing.T, driver *fakeDriver, policy SelectionPolicy, ids ...string) *SessionPool {
	t.Helper()
	clock := newFakeClock()
	pool := NewSessionPool(driver, PoolOptions{
		SettleDelay: 10 * time.Second,
		Policy:      policy,
		Log:         zerolog.Nop(),
		Sleep:       clock.Sleep,
		Now:         clock.Now,
	})
	require.NoError(t, pool.Setup(context.Background(), makeProfiles(t, ids...), "whatsapp"))
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}
