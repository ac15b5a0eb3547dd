package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wa-blaster/internal/model"
	"wa-blaster/internal/service"
	"wa-blaster/internal/ws"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxFailuresKept = 50

// Recorder persists run history. model.BlastLogStore implements it.
type Recorder interface {
	CreateRun(ctx context.Context, run model.BlastRun) error
	AddSend(ctx context.Context, send model.BlastSend) error
	FinishRun(ctx context.Context, run model.BlastRun) error
}

// Notifier delivers the completion event outside the process. service.Webhook implements it.
type Notifier interface {
	Send(ctx context.Context, event string, data interface{}) error
}

// notifyTimeout bounds the completion webhook. Wait returns only after delivery ends.
const notifyTimeout = 10 * time.Second

// JobStatus is the live view of one blast.
type JobStatus struct {
	ID          string               `json:"id"`
	Status      string               `json:"status"`
	Running     bool                 `json:"running"`
	Total       int                  `json:"total"`
	Done        int                  `json:"done"`
	Sent        int                  `json:"sent"`
	Failed      int                  `json:"failed"`
	Unavailable int                  `json:"unavailable"`
	Failures    []string             `json:"failures,omitempty"`
	Error       string               `json:"error,omitempty"`
	StartedAt   time.Time            `json:"started_at"`
	DoneAt      *time.Time           `json:"done_at,omitempty"`
	Report      *service.BlastReport `json:"report,omitempty"`
}

type JobManagerOptions struct {
	Recorder  Recorder
	Publisher ws.RealtimePublisher
	Notifier  Notifier
	Log       zerolog.Logger
}

type job struct {
	status JobStatus
	cancel context.CancelFunc
	done   chan struct{}
}

// JobManager runs blasts in the background, one at a time since they share the session pool.
type JobManager struct {
	blaster *service.Blaster
	opts    JobManagerOptions

	mu      sync.RWMutex
	jobs    map[string]*job
	order   []string
	running string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewJobManager(blaster *service.Blaster, opts JobManagerOptions) *JobManager {
	if opts.Publisher == nil {
		opts.Publisher = ws.NopPublisher{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &JobManager{
		blaster: blaster,
		opts:    opts,
		jobs:    make(map[string]*job),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start validates j and launches it. An empty j.ID gets a generated one.
func (m *JobManager) Start(j service.BlastJob) (JobStatus, error) {
	if err := m.ctx.Err(); err != nil {
		return JobStatus{}, fmt.Errorf("job manager stopped: %w", err)
	}
	if err := m.blaster.Validate(j); err != nil {
		return JobStatus{}, err
	}
	if j.ID == "" {
		j.ID = uuid.NewString()
	}

	m.mu.Lock()
	if m.running != "" {
		m.mu.Unlock()
		return JobStatus{}, model.ErrBlastRunning
	}
	if _, exists := m.jobs[j.ID]; exists {
		m.mu.Unlock()
		return JobStatus{}, fmt.Errorf("%w: blast id %s already used", model.ErrValidation, j.ID)
	}

	ctx, cancel := context.WithCancel(m.ctx)
	jb := &job{
		status: JobStatus{
			ID:        j.ID,
			Status:    model.BlastStatusRunning,
			Running:   true,
			Total:     len(j.Numbers),
			StartedAt: time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.jobs[j.ID] = jb
	m.order = append(m.order, j.ID)
	m.running = j.ID
	snapshot := jb.snapshot()
	m.mu.Unlock()

	log := m.opts.Log.With().Str("blast_id", j.ID).Logger()

	if m.opts.Recorder != nil {
		if err := m.opts.Recorder.CreateRun(ctx, model.BlastRun{
			ID:        j.ID,
			CreatedAt: snapshot.StartedAt,
			Total:     snapshot.Total,
			Status:    model.BlastStatusRunning,
		}); err != nil {
			log.Error().Err(err).Msg("failed to record blast run")
		}
	}

	m.opts.Publisher.Publish(ws.WsEvent{
		Event: ws.EventBlastStarted,
		Data:  ws.BlastStartedData{BlastID: j.ID, Total: len(j.Numbers), Accounts: m.blaster.Pool().Enabled()},
	})

	m.wg.Add(1)
	go m.run(ctx, jb, j, log)

	return snapshot, nil
}

func (m *JobManager) run(ctx context.Context, jb *job, j service.BlastJob, log zerolog.Logger) {
	defer m.wg.Done()
	defer close(jb.done)
	defer jb.cancel()

	report, err := m.blaster.Run(ctx, j, func(res service.SendResult) {
		m.mu.Lock()
		st := &jb.status
		st.Done++
		switch {
		case res.Sent():
			st.Sent++
		case res.Unavailable():
			st.Unavailable++
		default:
			st.Failed++
			if len(st.Failures) < maxFailuresKept {
				st.Failures = append(st.Failures, res.Phone+": "+res.Error)
			}
		}
		m.mu.Unlock()

		if m.opts.Recorder != nil {
			// recorded after the send; a cancelled run still keeps its history
			if err := m.opts.Recorder.AddSend(context.Background(), model.BlastSend{
				RunID:    j.ID,
				Seq:      res.Index,
				Phone:    res.Phone,
				Account:  res.Account,
				State:    string(res.State),
				Error:    res.Error,
				SentAt:   res.StartedAt,
				Duration: res.Duration,
			}); err != nil {
				log.Error().Err(err).Str("phone", res.Phone).Msg("failed to record send")
			}
		}

		m.opts.Publisher.Publish(ws.WsEvent{
			Event: ws.EventBlastProgress,
			Data: ws.BlastProgressData{
				BlastID: j.ID,
				Index:   res.Index,
				Total:   len(j.Numbers),
				Phone:   res.Phone,
				Account: res.Account,
				State:   string(res.State),
				Error:   res.Error,
			},
		})
	})

	now := time.Now()
	m.mu.Lock()
	st := &jb.status
	st.Running = false
	st.Status = report.Status
	st.Error = report.Error
	st.DoneAt = &now
	st.Report = report
	if m.running == j.ID {
		m.running = ""
	}
	m.mu.Unlock()

	switch {
	case err == nil:
		log.Info().Int("sent", report.Sent).Int("failed", report.Failed).Int("unavailable", report.Unavailable).Msg("blast completed")
	case errors.Is(err, context.Canceled):
		log.Warn().Int("sent", report.Sent).Int("skipped", report.Skipped).Msg("blast cancelled")
	default:
		log.Error().Err(err).Int("sent", report.Sent).Int("skipped", report.Skipped).Msg("blast stopped")
	}

	if m.opts.Recorder != nil {
		if err := m.opts.Recorder.FinishRun(context.Background(), model.BlastRun{
			ID:          j.ID,
			FinishedAt:  &now,
			Total:       report.Total,
			Sent:        report.Sent,
			Failed:      report.Failed,
			Unavailable: report.Unavailable,
			Status:      report.Status,
			Error:       report.Error,
		}); err != nil {
			log.Error().Err(err).Msg("failed to record blast result")
		}
	}

	finished := ws.BlastFinishedData{
		BlastID:     j.ID,
		Status:      report.Status,
		Total:       report.Total,
		Sent:        report.Sent,
		Failed:      report.Failed,
		Unavailable: report.Unavailable,
		Error:       report.Error,
	}
	m.opts.Publisher.Publish(ws.WsEvent{Event: ws.EventBlastFinished, Data: finished})
	if m.opts.Notifier != nil {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		if err := m.opts.Notifier.Send(ctx, ws.EventBlastFinished, finished); err != nil {
			log.Warn().Err(err).Msg("webhook delivery failed")
		}
		cancel()
	}
}

func (jb *job) snapshot() JobStatus {
	st := jb.status
	st.Failures = append([]string(nil), jb.status.Failures...)
	return st
}

func (m *JobManager) Get(id string) (JobStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jb, ok := m.jobs[id]
	if !ok {
		return JobStatus{}, model.ErrBlastNotFound
	}
	return jb.snapshot(), nil
}

// List returns every blast of this process, newest first, without reports.
func (m *JobManager) List() []JobStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]JobStatus, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		st := m.jobs[m.order[i]].snapshot()
		st.Report = nil
		out = append(out, st)
	}
	return out
}

// Running reports whether a blast is in progress.
func (m *JobManager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running != ""
}

// Cancel stops a running blast. Cancelling a finished blast is a no-op.
func (m *JobManager) Cancel(id string) error {
	m.mu.RLock()
	jb, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return model.ErrBlastNotFound
	}
	jb.cancel()
	return nil
}

// Wait blocks until blast id finishes or ctx is done.
func (m *JobManager) Wait(ctx context.Context, id string) (JobStatus, error) {
	m.mu.RLock()
	jb, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return JobStatus{}, model.ErrBlastNotFound
	}
	select {
	case <-jb.done:
		return m.Get(id)
	case <-ctx.Done():
		return JobStatus{}, ctx.Err()
	}
}

// Stop cancels every blast and waits for them to wind down.
func (m *JobManager) Stop() {
	m.cancel()
	m.wg.Wait()
	m.opts.Log.Info().Msg("job manager stopped")
}
