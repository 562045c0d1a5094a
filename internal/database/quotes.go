package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/life-quote-scraper/internal/models"
	"github.com/maltedev/life-quote-scraper/internal/parser"
)

// Quote is a stored premium row.
type Quote struct {
	RunID         uuid.UUID `json:"run_id"`
	Coverage      string    `json:"coverage"`
	Term          string    `json:"term"`
	Age           int       `json:"age"`
	Gender        string    `json:"gender"`
	Nicotine      string    `json:"nicotine"`
	State         string    `json:"state,omitempty"`
	Premium       string    `json:"premium"`
	PremiumAmount *float64  `json:"premium_amount,omitempty"`
	ScrapedAt     time.Time `json:"scraped_at"`
}

var quoteColumns = []string{
	"run_id", "coverage", "term", "age", "gender", "nicotine", "state",
	"premium", "premium_amount", "scraped_at",
}

// QuoteFromResult flattens a result into a row. Premiums that do not parse
// are kept as text with no amount.
func QuoteFromResult(runID uuid.UUID, r models.QuoteResult) (Quote, error) {
	age, err := r.Combination.Int(models.DimAge)
	if err != nil {
		return Quote{}, err
	}
	q := Quote{
		RunID:     runID,
		Coverage:  r.Combination.Value(models.DimCoverage),
		Term:      r.Combination.Value(models.DimTerm),
		Age:       age,
		Gender:    r.Combination.Value(models.DimGender),
		Nicotine:  r.Combination.Value(models.DimNicotine),
		State:     r.Combination.Value(models.DimState),
		Premium:   r.Premium,
		ScrapedAt: r.ScrapedAt,
	}
	if amount, err := parser.ParseAmount(r.Premium); err == nil {
		q.PremiumAmount = &amount
	}
	return q, nil
}

type QuoteRepository struct {
	db *DB
}

func NewQuoteRepository(db *DB) *QuoteRepository {
	return &QuoteRepository{db: db}
}

// InsertWithTx bulk-loads the quotes of a run.
func (r *QuoteRepository) InsertWithTx(ctx context.Context, tx pgx.Tx, quotes []Quote) (int64, error) {
	if len(quotes) == 0 {
		return 0, nil
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"quote"}, quoteColumns,
		pgx.CopyFromSlice(len(quotes), func(i int) ([]any, error) {
			q := quotes[i]
			return []any{q.RunID, q.Coverage, q.Term, q.Age, q.Gender, q.Nicotine,
				q.State, q.Premium, q.PremiumAmount, q.ScrapedAt}, nil
		}))
	if err != nil {
		return 0, fmt.Errorf("failed to copy quotes: %w", err)
	}
	return n, nil
}

func (r *QuoteRepository) InsertAbandonedWithTx(ctx context.Context, tx pgx.Tx, runID uuid.UUID, failed []models.FailedCombination) error {
	if len(failed) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, f := range failed {
		batch.Queue(`
			INSERT INTO abandoned_combination (run_id, combination, resume_token, last_round, reason)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (run_id, combination) DO UPDATE
			SET resume_token = EXCLUDED.resume_token, last_round = EXCLUDED.last_round, reason = EXCLUDED.reason`,
			runID, f.Combination.Key(), f.ResumeToken, f.Round, f.Reason())
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert abandoned combinations: %w", err)
	}
	return nil
}

func (r *QuoteRepository) ListByRun(ctx context.Context, runID uuid.UUID, limit int) ([]Quote, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT run_id, coverage, term, age, gender, nicotine, state, premium, premium_amount::float8, scraped_at
		FROM quote
		WHERE run_id = $1
		ORDER BY id ASC
		LIMIT $2`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}
	defer rows.Close()

	var quotes []Quote
	for rows.Next() {
		var q Quote
		if err := rows.Scan(&q.RunID, &q.Coverage, &q.Term, &q.Age, &q.Gender, &q.Nicotine,
			&q.State, &q.Premium, &q.PremiumAmount, &q.ScrapedAt); err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		quotes = append(quotes, q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return quotes, nil
}
