package drewberry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/life-quote-scraper/internal/models"
	"github.com/maltedev/life-quote-scraper/internal/sites"
	"github.com/maltedev/life-quote-scraper/internal/storage"
)

// ProfileSubmitter fills the quote form for one profile and returns the
// resulting session URL.
type ProfileSubmitter interface {
	SubmitProfile(ctx context.Context, p sites.Profile) (string, error)
}

type CollectResult struct {
	Expected  int
	Collected int
	Failed    int
	Cached    int
}

// Collector fills the session store. Profiles already stored are skipped, so
// a complete store means no browser work at all.
type Collector struct {
	submitter ProfileSubmitter
	store     *storage.SessionStore
	logger    *slog.Logger
	now       func() time.Time
}

func NewCollector(submitter ProfileSubmitter, store *storage.SessionStore, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		submitter: submitter,
		store:     store,
		logger:    logger.With("component", "session_collector"),
		now:       time.Now,
	}
}

// Missing reports whether any profile lacks a session.
func (c *Collector) Missing(profiles []models.Combination) []models.Combination {
	return c.store.Missing(profiles)
}

func (c *Collector) Collect(ctx context.Context, profiles []models.Combination) (CollectResult, error) {
	missing := c.store.Missing(profiles)
	res := CollectResult{
		Expected: len(profiles),
		Cached:   len(profiles) - len(missing),
	}

	if len(missing) == 0 {
		c.logger.Info("session collection already complete, skipping", "profiles", len(profiles))
		return res, nil
	}

	c.logger.Info("collecting sessions", "missing", len(missing), "cached", res.Cached)

	for _, profile := range missing {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		p, err := sites.ProfileOf(profile, c.now())
		if err != nil {
			return res, fmt.Errorf("invalid profile %s: %w", profile, err)
		}

		url, err := c.submitter.SubmitProfile(ctx, p)
		if err != nil {
			c.logger.Warn("failed to collect session", "profile", profile.String(), "error", err)
			res.Failed++
			continue
		}

		if err := c.store.Put(profile, url); err != nil {
			return res, fmt.Errorf("failed to store session: %w", err)
		}
		res.Collected++
		c.logger.Info("collected session", "profile", profile.String())
	}

	return res, nil
}
