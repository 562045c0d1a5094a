package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/life-quote-scraper/internal/database"
	"github.com/maltedev/life-quote-scraper/internal/events"
	"github.com/maltedev/life-quote-scraper/internal/models"
	"github.com/maltedev/life-quote-scraper/internal/scraper"
)

type Transactor interface {
	Transaction(ctx context.Context, fn func(pgx.Tx) error) error
}

type QuoteWriter interface {
	InsertWithTx(ctx context.Context, tx pgx.Tx, quotes []database.Quote) (int64, error)
	InsertAbandonedWithTx(ctx context.Context, tx pgx.Tx, runID uuid.UUID, failed []models.FailedCombination) error
}

type RunWriter interface {
	CompleteWithTx(ctx context.Context, tx pgx.Tx, run *database.Run) error
}

type EventPublisher interface {
	PublishRunCompletedWithTx(ctx context.Context, tx pgx.Tx, payload *events.RunCompletedPayload) error
}

// Postgres stores one run: its quotes, abandoned combinations, final
// counters and a completion event, all in a single transaction.
type Postgres struct {
	db        Transactor
	quotes    QuoteWriter
	runs      RunWriter
	publisher EventPublisher
	run       *database.Run
	logger    *slog.Logger
}

func NewPostgres(db Transactor, quotes QuoteWriter, runs RunWriter, publisher EventPublisher, run *database.Run, logger *slog.Logger) *Postgres {
	return &Postgres{
		db:        db,
		quotes:    quotes,
		runs:      runs,
		publisher: publisher,
		run:       run,
		logger:    logger.With("component", "postgres_sink", "run_id", run.ID),
	}
}

func (p *Postgres) Write(ctx context.Context, results []models.QuoteResult) error {
	return p.WriteReport(ctx, &scraper.Report{Results: results, Expected: len(results)})
}

func (p *Postgres) WriteReport(ctx context.Context, report *scraper.Report) error {
	rows := make([]database.Quote, 0, len(report.Results))
	for _, r := range report.Results {
		q, err := database.QuoteFromResult(p.run.ID, r)
		if err != nil {
			return fmt.Errorf("failed to convert result %s: %w", r.Combination.String(), err)
		}
		rows = append(rows, q)
	}

	p.run.Expected = report.Expected
	p.run.Resolved = report.Resolved()
	p.run.Quotes = len(report.Results)
	p.run.NoOffers = len(report.NoOffers)
	p.run.Abandoned = len(report.Abandoned)
	p.run.Rounds = report.Rounds
	p.run.Attempts = report.Attempts

	var inserted int64
	err := p.db.Transaction(ctx, func(tx pgx.Tx) error {
		n, err := p.quotes.InsertWithTx(ctx, tx, rows)
		if err != nil {
			return err
		}
		inserted = n
		if err := p.quotes.InsertAbandonedWithTx(ctx, tx, p.run.ID, report.Abandoned); err != nil {
			return err
		}
		if err := p.runs.CompleteWithTx(ctx, tx, p.run); err != nil {
			return err
		}
		return p.publisher.PublishRunCompletedWithTx(ctx, tx, &events.RunCompletedPayload{
			RunID:      p.run.ID.String(),
			Site:       p.run.Site,
			Expected:   report.Expected,
			Resolved:   report.Resolved(),
			Quotes:     len(report.Results),
			NoOffers:   len(report.NoOffers),
			Abandoned:  len(report.Abandoned),
			Rounds:     report.Rounds,
			Coverage:   report.Coverage(),
			StartedAt:  report.StartedAt,
			FinishedAt: report.FinishedAt,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to store run: %w", err)
	}

	p.logger.Info("run stored", "quotes", inserted, "abandoned", len(report.Abandoned))
	return nil
}
