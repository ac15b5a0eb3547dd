package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"wa-blaster/internal/automation"
	"wa-blaster/internal/model"
	"wa-blaster/internal/service"
	"wa-blaster/internal/ws"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSession accepts every step. When gate is set, Navigate blocks until it is closed or ctx ends.
type stubSession struct {
	gate chan struct{}
}

func (s *stubSession) Navigate(ctx context.Context, _ string) error {
	if s.gate == nil {
		return ctx.Err()
	}
	select {
	case <-s.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *stubSession) WaitFor(ctx context.Context, _ string, _ time.Duration) (automation.Element, error) {
	return stubElement{}, ctx.Err()
}

func (s *stubSession) Has(_ context.Context, selector string) (bool, error) {
	return selector == "#compose", nil
}

func (s *stubSession) PasteText(ctx context.Context, _ string) error { return ctx.Err() }
func (s *stubSession) Close() error                                 { return nil }

type stubElement struct{}

func (stubElement) Click(ctx context.Context) error { return ctx.Err() }
func (stubElement) SetFiles([]string) error         { return nil }

type stubDriver struct{ session *stubSession }

func (d stubDriver) Open(context.Context, string) (automation.Session, error) { return d.session, nil }

type memRecorder struct {
	mu       sync.Mutex
	created  []model.BlastRun
	sends    []model.BlastSend
	finished []model.BlastRun
}

func (r *memRecorder) CreateRun(_ context.Context, run model.BlastRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, run)
	return nil
}

func (r *memRecorder) AddSend(_ context.Context, send model.BlastSend) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, send)
	return nil
}

func (r *memRecorder) FinishRun(_ context.Context, run model.BlastRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, run)
	return nil
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (e *eventLog) Publish(evt ws.WsEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt.Event)
}

func (e *eventLog) Send(_ context.Context, event string, _ interface{}) error {
	e.Publish(ws.WsEvent{Event: "webhook:" + event})
	return nil
}

func (e *eventLog) Names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

func newTestManager(t *testing.T, session *stubSession) (*JobManager, *memRecorder, *eventLog) {
	t.Helper()
	noSleep := func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "whatsapp", "acc"), 0o755))
	pool := service.NewSessionPool(stubDriver{session: session}, service.PoolOptions{Log: zerolog.Nop(), Sleep: noSleep})
	require.NoError(t, pool.Setup(context.Background(), root, "whatsapp"))

	blaster := service.NewBlaster(pool, nil, service.BlasterOptions{
		ChatURL:        "https://chat.test/send?phone=",
		Selectors:      service.Selectors{MessageBox: "#compose", SendButton: "#send", InvalidNumber: "#invalid"},
		ElementTimeout: time.Second,
		Retry:          service.RetryPolicy{Attempts: 1},
		Log:            zerolog.Nop(),
		Sleep:          noSleep,
	})

	rec := &memRecorder{}
	events := &eventLog{}
	m := NewJobManager(blaster, JobManagerOptions{
		Recorder:  rec,
		Publisher: events,
		Notifier:  events,
		Log:       zerolog.Nop(),
	})
	t.Cleanup(m.Stop)
	return m, rec, events
}

func TestJobManagerRunsBlastToCompletion(t *testing.T) {
	m, rec, events := newTestManager(t, &stubSession{})

	st, err := m.Start(service.BlastJob{Numbers: []string{"60111111111", "60122222222"}, Messages: []string{"hi"}})
	require.NoError(t, err)
	require.NotEmpty(t, st.ID)
	assert.True(t, st.Running)
	assert.Equal(t, 2, st.Total)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	final, err := m.Wait(ctx, st.ID)
	require.NoError(t, err)

	assert.False(t, final.Running)
	assert.Equal(t, model.BlastStatusCompleted, final.Status)
	assert.Equal(t, 2, final.Done)
	assert.Equal(t, 2, final.Sent)
	require.NotNil(t, final.DoneAt)
	require.NotNil(t, final.Report)
	assert.Len(t, final.Report.Results, 2)
	assert.False(t, m.Running())

	rec.mu.Lock()
	assert.Len(t, rec.created, 1)
	assert.Len(t, rec.sends, 2)
	require.Len(t, rec.finished, 1)
	assert.Equal(t, 2, rec.finished[0].Sent)
	rec.mu.Unlock()

	assert.Equal(t, []string{
		ws.EventBlastStarted, ws.EventBlastProgress, ws.EventBlastProgress,
		ws.EventBlastFinished, "webhook:" + ws.EventBlastFinished,
	}, events.Names())

	list := m.List()
	require.Len(t, list, 1)
	assert.Nil(t, list[0].Report)
}

func TestJobManagerStopWaitsForWebhook(t *testing.T) {
	var (
		mu       sync.Mutex
		received []service.WebhookPayload
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		var p service.WebhookPayload
		_ = json.NewDecoder(r.Body).Decode(&p)
		mu.Lock()
		received = append(received, p)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	m, _, _ := newTestManager(t, &stubSession{})
	m.opts.Notifier = service.NewWebhook(srv.URL, "", zerolog.Nop())

	_, err := m.Start(service.BlastJob{Numbers: []string{"60111111111"}, Messages: []string{"hi"}})
	require.NoError(t, err)
	m.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, ws.EventBlastFinished, received[0].Event)
}

func TestJobManagerRejectsInvalidAndConcurrentBlasts(t *testing.T) {
	gate := make(chan struct{})
	m, _, _ := newTestManager(t, &stubSession{gate: gate})

	_, err := m.Start(service.BlastJob{Messages: []string{"hi"}})
	assert.ErrorIs(t, err, model.ErrNoNumbers)

	st, err := m.Start(service.BlastJob{ID: "first", Numbers: []string{"60111111111"}, Messages: []string{"hi"}})
	require.NoError(t, err)
	assert.Equal(t, "first", st.ID)
	assert.True(t, m.Running())

	_, err = m.Start(service.BlastJob{Numbers: []string{"60111111111"}, Messages: []string{"hi"}})
	assert.ErrorIs(t, err, model.ErrBlastRunning)

	close(gate)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = m.Wait(ctx, "first")
	require.NoError(t, err)

	_, err = m.Start(service.BlastJob{ID: "first", Numbers: []string{"60111111111"}, Messages: []string{"hi"}})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestJobManagerCancel(t *testing.T) {
	m, rec, _ := newTestManager(t, &stubSession{gate: make(chan struct{})})

	st, err := m.Start(service.BlastJob{Numbers: []string{"60111111111", "60122222222"}, Messages: []string{"hi"}})
	require.NoError(t, err)

	require.NoError(t, m.Cancel(st.ID))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	final, err := m.Wait(ctx, st.ID)
	require.NoError(t, err)

	assert.Equal(t, model.BlastStatusCancelled, final.Status)
	assert.Zero(t, final.Sent)

	rec.mu.Lock()
	require.Len(t, rec.finished, 1)
	assert.Equal(t, model.BlastStatusCancelled, rec.finished[0].Status)
	rec.mu.Unlock()

	assert.ErrorIs(t, m.Cancel("missing"), model.ErrBlastNotFound)
	_, err = m.Get("missing")
	assert.ErrorIs(t, err, model.ErrBlastNotFound)
}
