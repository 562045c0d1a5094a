package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

var ErrRunNotFound = errors.New("run not found")

// Run is one scrape of one site.
type Run struct {
	ID         uuid.UUID  `json:"id"`
	Site       string     `json:"site"`
	Status     string     `json:"status"`
	Expected   int        `json:"expected"`
	Resolved   int        `json:"resolved"`
	Quotes     int        `json:"quotes"`
	NoOffers   int        `json:"no_offers"`
	Abandoned  int        `json:"abandoned"`
	Rounds     int        `json:"rounds"`
	Attempts   int        `json:"attempts"`
	Error      *string    `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type RunRepository struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Create(ctx context.Context, site string) (*Run, error) {
	run := &Run{
		ID:        uuid.New(),
		Site:      site,
		Status:    RunStatusQueued,
		CreatedAt: time.Now(),
	}

	_, err := r.db.pool.Exec(ctx,
		`INSERT INTO quote_run (id, site, status, created_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.Site, run.Status, run.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

func (r *RunRepository) MarkRunning(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.pool.Exec(ctx,
		`UPDATE quote_run SET status = $1, started_at = $2 WHERE id = $3`,
		RunStatusRunning, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark run running: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// CompleteWithTx stores the final counters of a run.
func (r *RunRepository) CompleteWithTx(ctx context.Context, tx pgx.Tx, run *Run) error {
	now := time.Now()
	run.Status = RunStatusCompleted
	run.FinishedAt = &now

	_, err := tx.Exec(ctx, `
		UPDATE quote_run
		SET status = $1, expected = $2, resolved = $3, quotes = $4, no_offers = $5,
			abandoned = $6, rounds = $7, attempts = $8, finished_at = $9
		WHERE id = $10`,
		run.Status, run.Expected, run.Resolved, run.Quotes, run.NoOffers,
		run.Abandoned, run.Rounds, run.Attempts, run.FinishedAt, run.ID)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

func (r *RunRepository) MarkFailed(ctx context.Context, id uuid.UUID, runErr error) error {
	_, err := r.db.pool.Exec(ctx,
		`UPDATE quote_run SET status = $1, error = $2, finished_at = $3 WHERE id = $4 AND status <> $5`,
		RunStatusFailed, runErr.Error(), time.Now(), id, RunStatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to mark run failed: %w", err)
	}
	return nil
}

const runColumns = `id, site, status, expected, resolved, quotes, no_offers, abandoned,
	rounds, attempts, error, created_at, started_at, finished_at`

func scanRun(row pgx.Row) (*Run, error) {
	run := &Run{}
	err := row.Scan(&run.ID, &run.Site, &run.Status, &run.Expected, &run.Resolved,
		&run.Quotes, &run.NoOffers, &run.Abandoned, &run.Rounds, &run.Attempts,
		&run.Error, &run.CreatedAt, &run.StartedAt, &run.FinishedAt)
	return run, err
}

func (r *RunRepository) Get(ctx context.Context, id uuid.UUID) (*Run, error) {
	run, err := scanRun(r.db.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM quote_run WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

func (r *RunRepository) List(ctx context.Context, limit int) ([]*Run, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT `+runColumns+` FROM quote_run ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return runs, nil
}

// NextQueued returns the oldest queued run, or nil when there is none.
func (r *RunRepository) NextQueued(ctx context.Context) (*Run, error) {
	run, err := scanRun(r.db.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM quote_run WHERE status = $1 ORDER BY created_at ASC LIMIT 1`,
		RunStatusQueued))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queued run: %w", err)
	}
	return run, nil
}
