package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/maltedev/life-quote-scraper/internal/combo"
	"github.com/maltedev/life-quote-scraper/internal/models"
)

// Orchestrator runs the initial pass over every batch and then retries the
// unresolved combinations, each as its own single-combination batch, for at
// most MaxRounds rounds. Combinations still failing after the last round are
// abandoned and reported, not returned as an error.
type Orchestrator struct {
	driver *Driver
	opts   Options
	logger *slog.Logger
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
}

func NewOrchestrator(page PageDriver, opts Options) (*Orchestrator, error) {
	if page == nil {
		return nil, ErrNoDriver
	}
	opts = opts.withDefaults()

	logger := opts.Logger.With("component", "orchestrator")
	observers := Observers{NewLogObserver(opts.Logger.With("component", "batch_driver"))}
	if opts.Observer != nil {
		observers = append(observers, opts.Observer)
	}
	opts.Observer = observers

	return &Orchestrator{
		driver: NewDriver(page, opts.Limiter, observers, opts.Logger),
		opts:   opts,
		logger: logger,
		now:    time.Now,
		sleep:  sleepContext,
	}, nil
}

// Run scrapes batches and retries failures. The report is always returned;
// the error is non-nil only when ctx ended the run early.
func (o *Orchestrator) Run(ctx context.Context, batches []Batch) (*Report, error) {
	acc := NewAccumulator()
	report := &Report{StartedAt: o.now()}

	o.logger.Info("starting run", "batches", len(batches), "max_rounds", o.opts.MaxRounds)

	start := o.now()
	var initial []Attempt
	for _, b := range batches {
		res := o.driver.ScrapeBatch(ctx, 0, b)
		o.record(acc, res)
		initial = append(initial, res.Attempts...)
	}
	report.Expected = acc.Seen()
	report.Attempts += len(initial)
	o.roundComplete(0, initial, acc, o.now().Sub(start))

	for round := 1; round <= o.opts.MaxRounds; round++ {
		if acc.FailedCount() == 0 || ctx.Err() != nil {
			break
		}
		if err := o.sleep(ctx, o.opts.RoundDelay); err != nil {
			break
		}

		start := o.now()
		taken := acc.TakeFailures()
		o.logger.Info("retrying failed combinations", "round", round, "count", len(taken))

		var attempts []Attempt
		for _, f := range taken {
			if ctx.Err() != nil {
				break
			}
			batch := Batch{
				ResumeToken:  f.ResumeToken,
				Combinations: combo.Product(combo.Pin(f.Combination)),
			}
			res := o.driver.ScrapeBatch(ctx, round, batch)
			o.record(acc, res)
			attempts = append(attempts, res.Attempts...)
		}

		if n := acc.Restore(taken); n > 0 {
			o.logger.Warn("carrying unattempted failures forward", "round", round, "count", n)
		}
		report.Rounds = round
		report.Attempts += len(attempts)
		o.roundComplete(round, attempts, acc, o.now().Sub(start))
	}

	report.Results = acc.Results()
	report.NoOffers = acc.NoOffers()
	report.Abandoned = acc.Failures()
	report.FinishedAt = o.now()

	for _, f := range report.Abandoned {
		o.logger.Warn("abandoning combination",
			"combination", f.Combination.String(),
			"last_round", f.Round,
			"resume_token", f.ResumeToken,
			"error", f.Reason())
	}

	o.logger.Info("run complete",
		"expected", report.Expected,
		"resolved", report.Resolved(),
		"quotes", len(report.Results),
		"abandoned", len(report.Abandoned),
		"rounds", report.Rounds,
		"duration", report.Duration())

	return report, ctx.Err()
}

func (o *Orchestrator) record(acc *Accumulator, res BatchResult) {
	for _, at := range res.Attempts {
		if err := acc.Record(at); err != nil {
			o.logger.Debug("ignoring repeated combination", "combination", at.Combination.String(), "error", err)
		}
	}
}

func (o *Orchestrator) roundComplete(round int, attempts []Attempt, acc *Accumulator, d time.Duration) {
	stats := RoundStats{
		Round:       round,
		Attempted:   len(attempts),
		Resolved:    acc.ResolvedCount(),
		Outstanding: acc.FailedCount(),
		Duration:    d,
	}
	for _, at := range attempts {
		switch at.Outcome.Kind {
		case models.OutcomeSuccess:
			stats.Succeeded++
		case models.OutcomeNoOffers:
			stats.NoOffers++
		default:
			stats.Failed++
		}
	}
	o.opts.Observer.OnRoundComplete(stats)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
