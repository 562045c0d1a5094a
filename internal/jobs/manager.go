// Package jobs queues scrape runs in Postgres and executes them one at a
// time on a background worker.
package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/maltedev/life-quote-scraper/internal/database"
	"github.com/maltedev/life-quote-scraper/internal/runner"
	"github.com/maltedev/life-quote-scraper/internal/scraper"
	"github.com/maltedev/life-quote-scraper/internal/sink"
)

var ErrRunNotFound = database.ErrRunNotFound

const listLimit = 100

type RunStore interface {
	Create(ctx context.Context, site string) (*database.Run, error)
	MarkRunning(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, runErr error) error
	Get(ctx context.Context, id uuid.UUID) (*database.Run, error)
	List(ctx context.Context, limit int) ([]*database.Run, error)
	NextQueued(ctx context.Context) (*database.Run, error)
}

type QuoteLister interface {
	ListByRun(ctx context.Context, runID uuid.UUID, limit int) ([]database.Quote, error)
}

type Scraper interface {
	Run(ctx context.Context, site string, out sink.Sink) (*scraper.Report, error)
}

// SinkFactory builds the sink a queued run writes to.
type SinkFactory func(run *database.Run) (sink.Sink, error)

type Manager struct {
	runs    RunStore
	quotes  QuoteLister
	scraper Scraper
	sites   runner.Registry
	sinkFor SinkFactory
	wake    chan struct{}
	logger  *slog.Logger
}

func NewManager(runs RunStore, quotes QuoteLister, s Scraper, sites runner.Registry, sinkFor SinkFactory, logger *slog.Logger) *Manager {
	return &Manager{
		runs:    runs,
		quotes:  quotes,
		scraper: s,
		sites:   sites,
		sinkFor: sinkFor,
		wake:    make(chan struct{}, 1),
		logger:  logger.With("component", "job_manager"),
	}
}

// CreateRun queues a scrape of site and wakes the worker.
func (m *Manager) CreateRun(ctx context.Context, site string) (*database.Run, error) {
	if _, err := m.sites.Lookup(site); err != nil {
		return nil, err
	}

	run, err := m.runs.Create(ctx, site)
	if err != nil {
		return nil, err
	}

	select {
	case m.wake <- struct{}{}:
	default:
	}

	m.logger.Info("run queued", "run_id", run.ID, "site", site)
	return run, nil
}

func (m *Manager) GetRun(ctx context.Context, id uuid.UUID) (*database.Run, error) {
	return m.runs.Get(ctx, id)
}

func (m *Manager) ListRuns(ctx context.Context) ([]*database.Run, error) {
	return m.runs.List(ctx, listLimit)
}

// RunQuotes returns the stored quotes of a run.
func (m *Manager) RunQuotes(ctx context.Context, id uuid.UUID, limit int) ([]database.Quote, error) {
	if _, err := m.runs.Get(ctx, id); err != nil {
		return nil, err
	}
	quotes, err := m.quotes.ListByRun(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get run quotes: %w", err)
	}
	return quotes, nil
}
