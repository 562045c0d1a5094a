// Package runner wires a site, a browser page, the retry orchestrator and
// the result sinks into a single scrape.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/life-quote-scraper/internal/combo"
	"github.com/maltedev/life-quote-scraper/internal/config"
	"github.com/maltedev/life-quote-scraper/internal/ratelimit"
	"github.com/maltedev/life-quote-scraper/internal/scraper"
	"github.com/maltedev/life-quote-scraper/internal/sink"
	"github.com/maltedev/life-quote-scraper/internal/storage"
)

var ErrUnknownSite = errors.New("unknown site")

func unknownSite(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownSite, name)
}

// PageOpener hands out browser pages and navigates them.
type PageOpener interface {
	NewPage() (playwright.Page, error)
	Navigate(ctx context.Context, page playwright.Page, url string) error
}

type Runner struct {
	browser PageOpener
	sites   Registry
	grid    config.Grid
	cfg     config.ScraperConfig
	ready   config.BrowserConfig
	observe func(site string) scraper.Observer
	logger  *slog.Logger
}

type Option func(*Runner)

func WithRegistry(r Registry) Option {
	return func(rn *Runner) { rn.sites = r }
}

// WithObserver attaches an observer built for each scraped site.
func WithObserver(observe func(site string) scraper.Observer) Option {
	return func(rn *Runner) { rn.observe = observe }
}

func New(browser PageOpener, grid config.Grid, cfg *config.Config, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		browser: browser,
		sites:   DefaultRegistry(),
		grid:    grid,
		cfg:     cfg.Scraper,
		ready:   cfg.Browser,
		logger:  logger.With("component", "runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxRounds is the retry budget for site: the configured override when set,
// the site's own default otherwise.
func (r *Runner) MaxRounds(site Site) int {
	if r.cfg.MaxRounds > 0 {
		return r.cfg.MaxRounds
	}
	return site.DefaultMaxRounds
}

// OutputSink is the CSV file the site's results go to.
func (r *Runner) OutputSink(site Site) *sink.CSV {
	return sink.NewCSV(r.cfg.OutputDir, site.OutputFile)
}

// Run scrapes one site and hands the report to out. A report is returned
// whenever the orchestrator ran, even if the context ended it or the sink
// failed.
func (r *Runner) Run(ctx context.Context, siteName string, out sink.Sink) (*scraper.Report, error) {
	site, err := r.sites.Lookup(siteName)
	if err != nil {
		return nil, err
	}
	if err := combo.Validate(site.Dimensions(r.grid)); err != nil {
		return nil, fmt.Errorf("invalid grid for %s: %w", site.Name, err)
	}

	page, err := r.browser.NewPage()
	if err != nil {
		return nil, err
	}
	if page != nil {
		defer page.Close()
	}

	sessions, err := storage.NewSessionStore(r.cfg.SessionFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	logger := r.logger.With("site", site.Name)
	driver, batches, err := site.Setup(ctx, Env{
		Grid:         r.grid,
		Page:         page,
		Navigator:    r.browser,
		Sessions:     sessions,
		ReadyTimeout: r.ready.ReadyTimeout,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up %s: %w", site.Name, err)
	}

	var observer scraper.Observer
	if r.observe != nil {
		observer = r.observe(site.Name)
	}
	orch, err := scraper.NewOrchestrator(driver, scraper.Options{
		MaxRounds:  r.MaxRounds(site),
		RoundDelay: r.cfg.RoundDelay,
		Limiter:    r.limiter(),
		Observer:   observer,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("starting scrape", "combinations", combo.Count(site.Dimensions(r.grid)), "max_rounds", r.MaxRounds(site))

	report, runErr := orch.Run(ctx, batches)
	if out != nil {
		// Partial results of a cancelled run are still written.
		if err := sink.WriteReport(context.WithoutCancel(ctx), out, report); err != nil {
			return report, errors.Join(runErr, fmt.Errorf("failed to write results: %w", err))
		}
	}
	return report, runErr
}

func (r *Runner) limiter() ratelimit.RateLimiter {
	if r.cfg.RateLimitMax <= 0 {
		return ratelimit.Unlimited{}
	}
	return ratelimit.NewAdaptiveRateLimiter(r.cfg.RateLimitMin, r.cfg.RateLimitMax)
}
