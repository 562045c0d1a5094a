package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/maltedev/life-quote-scraper/internal/database"
)

// StartWorker executes queued runs until ctx is cancelled. There is one
// browser, so runs never overlap.
func (m *Manager) StartWorker(ctx context.Context, pollInterval time.Duration) {
	m.logger.Info("job worker started", "poll_interval", pollInterval)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		for m.processNextRun(ctx) {
		}

		select {
		case <-ctx.Done():
			m.logger.Info("job worker stopping")
			return
		case <-ticker.C:
		case <-m.wake:
		}
	}
}

// processNextRun executes the oldest queued run and reports whether one was
// found.
func (m *Manager) processNextRun(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	run, err := m.runs.NextQueued(ctx)
	if err != nil {
		m.logger.Error("failed to get queued run", "error", err)
		return false
	}
	if run == nil {
		return false
	}

	logger := m.logger.With("run_id", run.ID, "site", run.Site)
	if err := m.runs.MarkRunning(ctx, run.ID); err != nil {
		logger.Error("failed to mark run running", "error", err)
		return false
	}

	if err := m.execute(ctx, run); err != nil {
		m.markFailed(context.WithoutCancel(ctx), run, err, logger)
		return true
	}

	logger.Info("run completed")
	return true
}

func (m *Manager) execute(ctx context.Context, run *database.Run) error {
	out, err := m.sinkFor(run)
	if err != nil {
		return err
	}
	_, err = m.scraper.Run(ctx, run.Site, out)
	return err
}

// markFailed records err on the run unless the sink already stored a partial
// report and completed it, which is what happens on cancellation.
func (m *Manager) markFailed(ctx context.Context, run *database.Run, err error, logger *slog.Logger) {
	if stored, getErr := m.runs.Get(ctx, run.ID); getErr == nil && stored.Status == database.RunStatusCompleted {
		logger.Warn("run interrupted after partial report was stored", "error", err)
		return
	}
	logger.Error("run failed", "error", err)
	if markErr := m.runs.MarkFailed(ctx, run.ID, err); markErr != nil {
		logger.Error("failed to mark run failed", "error", markErr)
	}
}
