package scraper

import (
	"log/slog"
	"time"

	"github.com/maltedev/life-quote-scraper/internal/models"
)

type RoundStats struct {
	Round       int
	Attempted   int
	Succeeded   int
	NoOffers    int
	Failed      int
	Resolved    int
	Outstanding int
	Duration    time.Duration
}

// Observer receives a callback for every attempt and every finished round.
type Observer interface {
	OnOutcome(round int, c models.Combination, o models.Outcome)
	OnRoundComplete(stats RoundStats)
}

type NopObserver struct{}

func (NopObserver) OnOutcome(int, models.Combination, models.Outcome) {}
func (NopObserver) OnRoundComplete(RoundStats)                        {}

// Observers fans callbacks out in order.
type Observers []Observer

func (all Observers) OnOutcome(round int, c models.Combination, o models.Outcome) {
	for _, obs := range all {
		obs.OnOutcome(round, c, o)
	}
}

func (all Observers) OnRoundComplete(stats RoundStats) {
	for _, obs := range all {
		obs.OnRoundComplete(stats)
	}
}

// LogObserver writes one line per attempt and per round.
type LogObserver struct {
	logger *slog.Logger
}

func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (l *LogObserver) OnOutcome(round int, c models.Combination, o models.Outcome) {
	switch o.Kind {
	case models.OutcomeSuccess:
		l.logger.Info("quotes collected", "round", round, "combination", c.String(), "premiums", len(o.Premiums))
	case models.OutcomeNoOffers:
		l.logger.Info("no quotes found", "round", round, "combination", c.String())
	default:
		l.logger.Warn("failed to scrape combination", "round", round, "combination", c.String(), "error", o.Err)
	}
}

func (l *LogObserver) OnRoundComplete(stats RoundStats) {
	l.logger.Info("round complete",
		"round", stats.Round,
		"attempted", stats.Attempted,
		"succeeded", stats.Succeeded,
		"no_offers", stats.NoOffers,
		"failed", stats.Failed,
		"resolved", stats.Resolved,
		"outstanding", stats.Outstanding,
		"duration", stats.Duration)
}
