// internal/helper/schema.go
package helper

import (
	"context"
	"database/sql"
	"fmt"
)

// statements run one by one; the mysql driver rejects multi-statement Exec by default
var blastSchema = []string{
	`CREATE TABLE IF NOT EXISTS blast_runs (
		id            VARCHAR(64) PRIMARY KEY,
		created_at    BIGINT NOT NULL,
		finished_at   BIGINT,
		total         INT NOT NULL DEFAULT 0,
		sent          INT NOT NULL DEFAULT 0,
		failed        INT NOT NULL DEFAULT 0,
		unavailable   INT NOT NULL DEFAULT 0,
		status        VARCHAR(32) NOT NULL,
		error_message TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS blast_sends (
		run_id        VARCHAR(64) NOT NULL,
		seq           INT NOT NULL,
		phone         VARCHAR(32) NOT NULL,
		account       VARCHAR(128) NOT NULL,
		state         VARCHAR(32) NOT NULL,
		error_message TEXT,
		sent_at       BIGINT NOT NULL,
		duration_ms   BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, seq)
	)`,
}

// InitBlastSchema creates the run history tables when missing. The DDL is portable across
// postgres, mysql and sqlite; timestamps are unix milliseconds.
func InitBlastSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range blastSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to init blast schema: %w", err)
		}
	}
	return nil
}
