package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wa-blaster/internal/automation"
	"wa-blaster/internal/helper"
	"wa-blaster/internal/model"

	"github.com/rs/zerolog"
)

type SendState string

// Send states in the order a send passes through them.
const (
	StatePending         SendState = "PENDING"
	StateNavigated       SendState = "NAVIGATED"
	StateAttached        SendState = "ATTACHED"
	StateMessageComposed SendState = "MESSAGE_COMPOSED"
	StateSent            SendState = "SENT"
)

type Selectors struct {
	MessageBox    string
	SendButton    string
	AttachInput   string
	AttachSend    string
	InvalidNumber string
}

type BlasterOptions struct {
	ChatURL   string
	Selectors Selectors

	NavigateSettle time.Duration
	AttachDelay    time.Duration
	PasteDelay     time.Duration
	ElementTimeout time.Duration
	// PollInterval spaces the availability checks after navigation.
	PollInterval time.Duration

	Retry RetryPolicy
	Log   zerolog.Logger

	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// SendResult is the outcome of one number. State is the last state reached.
type SendResult struct {
	Index     int           `json:"index"`
	Phone     string        `json:"phone"`
	Account   string        `json:"account"`
	State     SendState     `json:"state"`
	Attached  int           `json:"attached"`
	Error     string        `json:"error,omitempty"`
	Err       error         `json:"-"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

func (r SendResult) Sent() bool { return r.State == StateSent && r.Err == nil }

func (r SendResult) Unavailable() bool { return errors.Is(r.Err, model.ErrNumberUnavailable) }

// BlastJob is one campaign run over the normalized numbers.
type BlastJob struct {
	ID          string
	Numbers     []string
	Messages    []string
	Attachments []string
	// Contacts maps a number to its contact row, used to fill message placeholders.
	Contacts map[string]map[string]string
}

type BlastReport struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	Total       int          `json:"total"`
	Sent        int          `json:"sent"`
	Failed      int          `json:"failed"`
	Unavailable int          `json:"unavailable"`
	Skipped     int          `json:"skipped"`
	Error       string       `json:"error,omitempty"`
	Results     []SendResult `json:"results"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
}

func (r *BlastReport) add(res SendResult) {
	r.Results = append(r.Results, res)
	switch {
	case res.Sent():
		r.Sent++
	case res.Unavailable():
		r.Unavailable++
	default:
		r.Failed++
	}
}

// Blaster drives pooled browser sessions through the chat UI, one number at a time.
type Blaster struct {
	pool     *SessionPool
	throttle *Throttler
	opts     BlasterOptions
}

func NewBlaster(pool *SessionPool, throttle *Throttler, opts BlasterOptions) *Blaster {
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.Retry.Sleep == nil {
		opts.Retry.Sleep = opts.Sleep
	}
	return &Blaster{pool: pool, throttle: throttle, opts: opts}
}

func (b *Blaster) Pool() *SessionPool { return b.pool }

// Validate reports why job cannot start, if it cannot.
func (b *Blaster) Validate(job BlastJob) error {
	if len(job.Numbers) == 0 {
		return model.ErrNoNumbers
	}
	if len(job.Messages) == 0 && len(job.Attachments) == 0 {
		return model.ErrNothingToSend
	}
	if b.pool.Enabled() == 0 {
		return model.ErrNoSessions
	}
	return nil
}

// Run sends to every number of job in order. onSend, when set, is called after each number.
// The returned report covers the numbers attempted; err is set when the run stopped early.
func (b *Blaster) Run(ctx context.Context, job BlastJob, onSend func(SendResult)) (*BlastReport, error) {
	report := &BlastReport{
		ID:        job.ID,
		Total:     len(job.Numbers),
		StartedAt: b.opts.Now(),
		Status:    model.BlastStatusRunning,
	}
	finish := func(err error) (*BlastReport, error) {
		report.FinishedAt = b.opts.Now()
		report.Skipped = report.Total - len(report.Results)
		switch {
		case err == nil:
			report.Status = model.BlastStatusCompleted
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			report.Status = model.BlastStatusCancelled
			report.Error = err.Error()
		default:
			report.Status = model.BlastStatusFailed
			report.Error = err.Error()
		}
		return report, err
	}

	if err := b.Validate(job); err != nil {
		return finish(err)
	}

	log := b.opts.Log.With().Str("blast_id", job.ID).Logger()
	log.Info().Int("numbers", len(job.Numbers)).Int("messages", len(job.Messages)).
		Int("attachments", len(job.Attachments)).Msg("blast started")

	for i, number := range job.Numbers {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}

		lease, err := b.pool.Acquire(ctx)
		if err != nil {
			return finish(err)
		}

		if b.throttle != nil {
			if err := b.throttle.Wait(ctx, lease.ID, i); err != nil {
				b.pool.Release(lease, err)
				return finish(err)
			}
		}

		message := ""
		if len(job.Messages) > 0 {
			message = helper.RenderMessage(job.Messages[i%len(job.Messages)], job.Contacts[number])
		}

		res := b.SendTo(ctx, lease, number, message, job.Attachments)
		res.Index = i
		b.pool.Release(lease, res.Err)

		// a send cut short by cancellation is reported as skipped, not failed
		if err := ctx.Err(); err != nil && (errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded)) {
			log.Info().Str("phone", number).Msgf("send %d/%d interrupted", i+1, len(job.Numbers))
			return finish(err)
		}

		ev := log.Info()
		if res.Err != nil {
			ev = log.Warn().Err(res.Err)
		}
		ev.Str("account", res.Account).Str("phone", number).Str("state", string(res.State)).
			Dur("took", res.Duration).Msgf("send %d/%d", i+1, len(job.Numbers))

		if errors.Is(res.Err, model.ErrSession) {
			b.pool.Disable(lease.ID, res.Error)
		}

		report.add(res)
		if onSend != nil {
			onSend(res)
		}
	}
	if err := ctx.Err(); err != nil {
		return finish(err)
	}

	log.Info().Int("sent", report.Sent).Int("failed", report.Failed).
		Int("unavailable", report.Unavailable).Msg("blast finished")
	return finish(nil)
}

// SendTo opens the chat for number through lease and sends files then message.
// Attachments already sent stay sent when a later step fails.
func (b *Blaster) SendTo(ctx context.Context, lease *Lease, number, message string, files []string) (res SendResult) {
	res = SendResult{
		Phone:     number,
		Account:   lease.ID,
		State:     StatePending,
		StartedAt: b.opts.Now(),
	}
	defer func() {
		res.Duration = b.opts.Now().Sub(res.StartedAt)
		if res.Err != nil {
			res.Error = res.Err.Error()
		}
	}()

	if message == "" && len(files) == 0 {
		res.Err = model.ErrNothingToSend
		return res
	}

	s := lease.Session
	sel := b.opts.Selectors
	retry := b.opts.Retry

	err := retry.Do(ctx, func(ctx context.Context) error {
		return s.Navigate(ctx, helper.ChatLink(b.opts.ChatURL, number))
	})
	if err != nil {
		res.Err = err
		return res
	}
	res.State = StateNavigated

	if err := b.opts.Sleep(ctx, b.opts.NavigateSettle); err != nil {
		res.Err = err
		return res
	}

	if err := retry.Do(ctx, func(ctx context.Context) error { return b.waitChatReady(ctx, s, number) }); err != nil {
		res.Err = err
		return res
	}

	for _, file := range files {
		err := retry.Do(ctx, func(ctx context.Context) error {
			el, err := s.WaitFor(ctx, sel.AttachInput, b.opts.ElementTimeout)
			if err != nil {
				return err
			}
			return el.SetFiles([]string{file})
		})
		if err == nil {
			err = b.clickWhenReady(ctx, s, sel.AttachSend)
		}
		if err != nil {
			res.Err = fmt.Errorf("attach %s: %w", file, err)
			return res
		}
		res.State = StateAttached
		res.Attached++

		if err := b.opts.Sleep(ctx, b.opts.AttachDelay); err != nil {
			res.Err = err
			return res
		}
	}

	if message != "" {
		if err := b.clickWhenReady(ctx, s, sel.MessageBox); err != nil {
			res.Err = fmt.Errorf("focus message box: %w", err)
			return res
		}
		if err := s.PasteText(ctx, message); err != nil {
			res.Err = fmt.Errorf("paste message: %w", err)
			return res
		}
		res.State = StateMessageComposed

		if err := b.opts.Sleep(ctx, b.opts.PasteDelay); err != nil {
			res.Err = err
			return res
		}
		if err := b.clickWhenReady(ctx, s, sel.SendButton); err != nil {
			res.Err = fmt.Errorf("click send: %w", err)
			return res
		}
	}

	res.State = StateSent
	return res
}

func (b *Blaster) clickWhenReady(ctx context.Context, s automation.Session, selector string) error {
	return b.opts.Retry.Do(ctx, func(ctx context.Context) error {
		el, err := s.WaitFor(ctx, selector, b.opts.ElementTimeout)
		if err != nil {
			return err
		}
		return el.Click(ctx)
	})
}

// waitChatReady polls until either the message box or the invalid number dialog shows up.
func (b *Blaster) waitChatReady(ctx context.Context, s automation.Session, number string) error {
	sel := b.opts.Selectors
	deadline := b.opts.Now().Add(b.opts.ElementTimeout)

	for {
		if sel.InvalidNumber != "" {
			invalid, err := s.Has(ctx, sel.InvalidNumber)
			if err != nil {
				return err
			}
			if invalid {
				return fmt.Errorf("%w: %s", model.ErrNumberUnavailable, number)
			}
		}

		ready, err := s.Has(ctx, sel.MessageBox)
		if err != nil {
			return err
		}
		if ready {
			return nil
		}

		if !b.opts.Now().Before(deadline) {
			return fmt.Errorf("%w: chat for %s did not open", model.ErrElementNotFound, number)
		}
		if err := b.opts.Sleep(ctx, b.opts.PollInterval); err != nil {
			return err
		}
	}
}
