package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/life-quote-scraper/internal/models"
	"github.com/maltedev/life-quote-scraper/internal/ratelimit"
)

// Attempt is the outcome of scraping one combination once.
type Attempt struct {
	Combination models.Combination
	Outcome     models.Outcome
	ResumeToken string
	Round       int
	At          time.Time
}

func (a Attempt) failure() models.FailedCombination {
	return models.FailedCombination{
		Combination: a.Combination,
		Err:         a.Outcome.Err,
		ResumeToken: a.ResumeToken,
		Round:       a.Round,
		FailedAt:    a.At,
	}
}

// BatchResult holds exactly one attempt per combination of the batch, in
// batch order.
type BatchResult struct {
	Attempts []Attempt
}

func (b BatchResult) Results() []models.QuoteResult {
	var out []models.QuoteResult
	for _, at := range b.Attempts {
		for _, p := range at.Outcome.Premiums {
			out = append(out, models.QuoteResult{Combination: at.Combination, Premium: p, ScrapedAt: at.At})
		}
	}
	return out
}

func (b BatchResult) Failed() []models.FailedCombination {
	var out []models.FailedCombination
	for _, at := range b.Attempts {
		if at.Outcome.Kind == models.OutcomeFailure {
			out = append(out, at.failure())
		}
	}
	return out
}

func (b BatchResult) NoOffers() []models.Combination {
	var out []models.Combination
	for _, at := range b.Attempts {
		if at.Outcome.Kind == models.OutcomeNoOffers {
			out = append(out, at.Combination)
		}
	}
	return out
}

// Driver scrapes batches of combinations against one page driver. A failing
// combination is recorded and the batch moves on.
type Driver struct {
	page     PageDriver
	limiter  ratelimit.RateLimiter
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

func NewDriver(page PageDriver, limiter ratelimit.RateLimiter, observer Observer, logger *slog.Logger) *Driver {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if observer == nil {
		observer = NopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		page:     page,
		limiter:  limiter,
		observer: observer,
		logger:   logger.With("component", "batch_driver"),
		now:      time.Now,
	}
}

// ScrapeBatch positions the session with the batch token and scrapes every
// combination in order.
func (d *Driver) ScrapeBatch(ctx context.Context, round int, b Batch) BatchResult {
	var res BatchResult
	if b.Combinations == nil {
		return res
	}

	prepErr := d.prepare(ctx, b.ResumeToken)
	if prepErr != nil {
		d.logger.Warn("failed to prepare session", "round", round, "resume_token", b.ResumeToken, "error", prepErr)
	}

	for c := range b.Combinations {
		var outcome models.Outcome
		switch {
		case prepErr != nil:
			outcome = models.Failure(fmt.Errorf("failed to prepare session: %w", prepErr))
		case ctx.Err() != nil:
			outcome = models.Failure(ctx.Err())
		default:
			if err := d.limiter.Wait(ctx); err != nil {
				outcome = models.Failure(err)
			} else {
				outcome = d.attempt(ctx, c)
				d.feedback(outcome)
			}
		}

		at := Attempt{
			Combination: c,
			Outcome:     outcome,
			ResumeToken: d.resumeToken(b.ResumeToken),
			Round:       round,
			At:          d.now(),
		}
		res.Attempts = append(res.Attempts, at)
		d.observer.OnOutcome(round, c, outcome)
	}

	d.logger.Debug("batch complete",
		"round", round,
		"attempted", len(res.Attempts),
		"quotes", len(res.Results()),
		"no_offers", len(res.NoOffers()),
		"failed", len(res.Failed()))
	return res
}

func (d *Driver) prepare(ctx context.Context, token string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrDriverPanic, r)
		}
	}()
	return d.page.Prepare(ctx, token)
}

func (d *Driver) attempt(ctx context.Context, c models.Combination) (out models.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = models.Failure(fmt.Errorf("%w: %v", ErrDriverPanic, r))
		}
	}()

	if err := d.page.Apply(ctx, c); err != nil {
		return models.Failure(fmt.Errorf("failed to apply combination: %w", err))
	}

	premiums, err := d.page.ExtractPremiums(ctx)
	if err != nil {
		return models.Failure(fmt.Errorf("failed to extract premiums: %w", err))
	}

	return models.Success(premiums)
}

func (d *Driver) resumeToken(fallback string) string {
	if r, ok := d.page.(Resumer); ok {
		if token := r.ResumeToken(); token != "" {
			return token
		}
	}
	return fallback
}

func (d *Driver) feedback(o models.Outcome) {
	fb, ok := d.limiter.(ratelimit.Feedback)
	if !ok {
		return
	}
	if o.Kind == models.OutcomeFailure {
		fb.RecordError()
	} else {
		fb.RecordSuccess()
	}
}
