// Package scraper drives a page driver through a grid of combinations and
// retries the combinations that failed, round by round, within a budget.
package scraper

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"time"

	"github.com/maltedev/life-quote-scraper/internal/models"
	"github.com/maltedev/life-quote-scraper/internal/ratelimit"
)

var (
	ErrNoDriver        = errors.New("page driver is required")
	ErrDriverPanic     = errors.New("page driver panicked")
	ErrAlreadyResolved = errors.New("combination already resolved")
)

// PageDriver applies combinations to one exclusive browser page and reads
// premiums back. Calls are strictly sequential.
type PageDriver interface {
	// Prepare positions the session at the start of a batch. An empty token
	// means the site's default entry point.
	Prepare(ctx context.Context, resumeToken string) error
	Apply(ctx context.Context, c models.Combination) error
	// ExtractPremiums returns an empty slice when the page shows no offers.
	ExtractPremiums(ctx context.Context) ([]string, error)
}

// Resumer is implemented by drivers whose current page state can be
// re-entered directly, e.g. through a stable URL.
type Resumer interface {
	ResumeToken() string
}

// Batch is a run of combinations scraped against one positioned session.
type Batch struct {
	ResumeToken  string
	Combinations iter.Seq[models.Combination]
}

type Options struct {
	// MaxRounds bounds the retry rounds after the initial pass.
	MaxRounds  int
	RoundDelay time.Duration
	Limiter    ratelimit.RateLimiter
	Observer   Observer
	Logger     *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		MaxRounds:  10,
		RoundDelay: 2 * time.Second,
		Limiter:    ratelimit.Unlimited{},
		Logger:     slog.Default(),
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxRounds < 0 {
		o.MaxRounds = 0
	}
	if o.RoundDelay < 0 {
		o.RoundDelay = 0
	}
	if o.Limiter == nil {
		o.Limiter = def.Limiter
	}
	if o.Logger == nil {
		o.Logger = def.Logger
	}
	return o
}

// Report is the outcome of one orchestrated run.
type Report struct {
	Results   []models.QuoteResult
	NoOffers  []models.Combination
	Abandoned []models.FailedCombination
	// Expected is the number of distinct combinations in the initial pass.
	Expected   int
	Rounds     int
	Attempts   int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Resolved counts combinations that produced quotes or a definite no-offer.
func (r *Report) Resolved() int {
	return r.Expected - len(r.Abandoned)
}

func (r *Report) Coverage() float64 {
	if r.Expected == 0 {
		return 0
	}
	return float64(r.Resolved()) / float64(r.Expected)
}

func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
