package model

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"wa-blaster/database"
)

const (
	BlastStatusRunning   = "running"
	BlastStatusCompleted = "completed"
	BlastStatusCancelled = "cancelled"
	BlastStatusFailed    = "failed"
)

// BlastRun is one blast as stored in the run history.
type BlastRun struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Total       int        `json:"total"`
	Sent        int        `json:"sent"`
	Failed      int        `json:"failed"`
	Unavailable int        `json:"unavailable"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
}

// BlastSend is the outcome of one number within a run.
type BlastSend struct {
	RunID    string        `json:"run_id"`
	Seq      int           `json:"seq"`
	Phone    string        `json:"phone"`
	Account  string        `json:"account"`
	State    string        `json:"state"`
	Error    string        `json:"error,omitempty"`
	SentAt   time.Time     `json:"sent_at"`
	Duration time.Duration `json:"duration"`
}

// BlastLogStore persists run history in any of the supported SQL databases.
type BlastLogStore struct {
	db     *sql.DB
	driver string
}

func NewBlastLogStore(db *sql.DB, driver string) *BlastLogStore {
	return &BlastLogStore{db: db, driver: driver}
}

func (s *BlastLogStore) q(query string) string {
	return database.SQLPlaceholders(s.driver, query)
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// CreateRun inserts a new run row.
func (s *BlastLogStore) CreateRun(ctx context.Context, run BlastRun) error {
	query := `
		INSERT INTO blast_runs (id, created_at, total, sent, failed, unavailable, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, s.q(query),
		run.ID, toMillis(run.CreatedAt), run.Total, run.Sent, run.Failed, run.Unavailable, run.Status)
	return err
}

func (s *BlastLogStore) AddSend(ctx context.Context, send BlastSend) error {
	query := `
		INSERT INTO blast_sends (run_id, seq, phone, account, state, error_message, sent_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, s.q(query),
		send.RunID, send.Seq, send.Phone, send.Account, send.State,
		sql.NullString{String: send.Error, Valid: send.Error != ""},
		toMillis(send.SentAt), send.Duration.Milliseconds())
	return err
}

// FinishRun writes the final counters and status of a run.
func (s *BlastLogStore) FinishRun(ctx context.Context, run BlastRun) error {
	finished := time.Now()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	query := `
		UPDATE blast_runs
		SET finished_at = $1, total = $2, sent = $3, failed = $4, unavailable = $5, status = $6, error_message = $7
		WHERE id = $8
	`
	res, err := s.db.ExecContext(ctx, s.q(query),
		toMillis(finished), run.Total, run.Sent, run.Failed, run.Unavailable, run.Status,
		sql.NullString{String: run.Error, Valid: run.Error != ""}, run.ID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrBlastNotFound
	}
	return nil
}

const runColumns = `id, created_at, finished_at, total, sent, failed, unavailable, status, error_message`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*BlastRun, error) {
	var (
		run      BlastRun
		created  int64
		finished sql.NullInt64
		errMsg   sql.NullString
	)
	if err := row.Scan(&run.ID, &created, &finished, &run.Total, &run.Sent, &run.Failed,
		&run.Unavailable, &run.Status, &errMsg); err != nil {
		return nil, err
	}
	run.CreatedAt = fromMillis(created)
	if finished.Valid {
		t := fromMillis(finished.Int64)
		run.FinishedAt = &t
	}
	run.Error = errMsg.String
	return &run, nil
}

func (s *BlastLogStore) GetRun(ctx context.Context, id string) (*BlastRun, error) {
	query := `SELECT ` + runColumns + ` FROM blast_runs WHERE id = $1`

	run, err := scanRun(s.db.QueryRowContext(ctx, s.q(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBlastNotFound
	}
	return run, err
}

// ListRuns returns the newest runs first.
func (s *BlastLogStore) ListRuns(ctx context.Context, limit int) ([]BlastRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + runColumns + ` FROM blast_runs ORDER BY created_at DESC LIMIT $1`

	rows, err := s.db.QueryContext(ctx, s.q(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []BlastRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func (s *BlastLogStore) ListSends(ctx context.Context, runID string) ([]BlastSend, error) {
	query := `
		SELECT run_id, seq, phone, account, state, error_message, sent_at, duration_ms
		FROM blast_sends
		WHERE run_id = $1
		ORDER BY seq
	`
	rows, err := s.db.QueryContext(ctx, s.q(query), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sends []BlastSend
	for rows.Next() {
		var (
			send     BlastSend
			errMsg   sql.NullString
			sentAt   int64
			duration int64
		)
		if err := rows.Scan(&send.RunID, &send.Seq, &send.Phone, &send.Account, &send.State,
			&errMsg, &sentAt, &duration); err != nil {
			return nil, err
		}
		send.Error = errMsg.String
		send.SentAt = fromMillis(sentAt)
		send.Duration = time.Duration(duration) * time.Millisecond
		sends = append(sends, send)
	}
	return sends, rows.Err()
}
