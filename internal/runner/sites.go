package runner

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/life-quote-scraper/internal/combo"
	"github.com/maltedev/life-quote-scraper/internal/config"
	"github.com/maltedev/life-quote-scraper/internal/models"
	"github.com/maltedev/life-quote-scraper/internal/scraper"
	"github.com/maltedev/life-quote-scraper/internal/sites"
	"github.com/maltedev/life-quote-scraper/internal/sites/drewberry"
	"github.com/maltedev/life-quote-scraper/internal/sites/lifeinsure"
	"github.com/maltedev/life-quote-scraper/internal/storage"
)

// Env is what a site needs to build its driver and batches.
type Env struct {
	Grid         config.Grid
	Page         playwright.Page
	Navigator    sites.Navigator
	Sessions     *storage.SessionStore
	ReadyTimeout time.Duration
	Logger       *slog.Logger
}

// Site describes one quote site.
type Site struct {
	Name             string
	OutputFile       string
	DefaultMaxRounds int
	// Dimensions lists every dimension the site iterates, in nesting order.
	Dimensions func(config.Grid) []models.Dimension
	Setup      func(ctx context.Context, env Env) (scraper.PageDriver, []scraper.Batch, error)
}

func LifeInsure() Site {
	return Site{
		Name:             lifeinsure.Name,
		OutputFile:       lifeinsure.OutputFile,
		DefaultMaxRounds: lifeinsure.DefaultMaxRounds,
		Dimensions:       lifeinsure.Dimensions,
		Setup: func(_ context.Context, env Env) (scraper.PageDriver, []scraper.Batch, error) {
			form := lifeinsure.NewPageForm(env.Navigator, env.Page, env.ReadyTimeout, env.Logger)
			batch := scraper.Batch{Combinations: combo.Product(lifeinsure.Dimensions(env.Grid))}
			return lifeinsure.NewDriver(form, env.Logger), []scraper.Batch{batch}, nil
		},
	}
}

func Drewberry() Site {
	return Site{
		Name:             drewberry.Name,
		OutputFile:       drewberry.OutputFile,
		DefaultMaxRounds: drewberry.DefaultMaxRounds,
		Dimensions: func(g config.Grid) []models.Dimension {
			return append(drewberry.ProfileDimensions(g), drewberry.CoverDimensions(g)...)
		},
		Setup: func(ctx context.Context, env Env) (scraper.PageDriver, []scraper.Batch, error) {
			form := drewberry.NewPageForm(env.Navigator, env.Page, env.ReadyTimeout, env.Logger)

			profiles := combo.Collect(combo.Product(drewberry.ProfileDimensions(env.Grid)))
			collector := drewberry.NewCollector(form, env.Sessions, env.Logger)
			if _, err := collector.Collect(ctx, profiles); err != nil {
				return nil, nil, err
			}

			return drewberry.NewDriver(form, env.Logger), drewberry.Batches(env.Grid, env.Sessions, env.Logger), nil
		},
	}
}

// Registry maps site names to their definitions.
type Registry map[string]Site

func DefaultRegistry() Registry {
	return NewRegistry(LifeInsure(), Drewberry())
}

func NewRegistry(all ...Site) Registry {
	r := make(Registry, len(all))
	for _, s := range all {
		r[s.Name] = s
	}
	return r
}

func (r Registry) Lookup(name string) (Site, error) {
	s, ok := r[name]
	if !ok {
		return Site{}, unknownSite(name)
	}
	return s, nil
}

func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
