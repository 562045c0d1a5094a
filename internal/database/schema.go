package database

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS quote_run (
	id          UUID PRIMARY KEY,
	site        TEXT NOT NULL,
	status      TEXT NOT NULL,
	expected    INTEGER NOT NULL DEFAULT 0,
	resolved    INTEGER NOT NULL DEFAULT 0,
	quotes      INTEGER NOT NULL DEFAULT 0,
	no_offers   INTEGER NOT NULL DEFAULT 0,
	abandoned   INTEGER NOT NULL DEFAULT 0,
	rounds      INTEGER NOT NULL DEFAULT 0,
	attempts    INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at  TIMESTAMPTZ,
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS quote (
	id             BIGSERIAL PRIMARY KEY,
	run_id         UUID NOT NULL REFERENCES quote_run(id) ON DELETE CASCADE,
	coverage       TEXT NOT NULL,
	term           TEXT NOT NULL,
	age            INTEGER NOT NULL,
	gender         TEXT NOT NULL,
	nicotine       TEXT NOT NULL,
	state          TEXT NOT NULL DEFAULT '',
	premium        TEXT NOT NULL,
	premium_amount NUMERIC(12, 2),
	scraped_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quote_run_id ON quote(run_id);

CREATE TABLE IF NOT EXISTS abandoned_combination (
	run_id       UUID NOT NULL REFERENCES quote_run(id) ON DELETE CASCADE,
	combination  TEXT NOT NULL,
	resume_token TEXT NOT NULL DEFAULT '',
	last_round   INTEGER NOT NULL,
	reason       TEXT NOT NULL,
	PRIMARY KEY (run_id, combination)
);

CREATE TABLE IF NOT EXISTS outbox_event (
	id             UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id   TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	payload        JSONB NOT NULL,
	target_stream  TEXT NOT NULL,
	status         TEXT NOT NULL,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	error_message  TEXT,
	created_at     TIMESTAMPTZ NOT NULL,
	processed_at   TIMESTAMPTZ,
	next_retry_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_outbox_event_pending ON outbox_event(status, next_retry_at);
`

// Migrate creates the tables the scraper writes to.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
