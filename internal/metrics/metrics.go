// Package metrics exposes scrape progress as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/maltedev/life-quote-scraper/internal/models"
	"github.com/maltedev/life-quote-scraper/internal/scraper"
)

type Metrics struct {
	Attempts      *prometheus.CounterVec
	Premiums      *prometheus.CounterVec
	RoundDuration *prometheus.HistogramVec
	Outstanding   *prometheus.GaugeVec
	Rounds        *prometheus.CounterVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quote_scraper_attempts_total",
			Help: "Combination attempts by site and outcome",
		}, []string{"site", "outcome"}),
		Premiums: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quote_scraper_premiums_total",
			Help: "Premiums collected by site",
		}, []string{"site"}),
		RoundDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quote_scraper_round_duration_seconds",
			Help:    "Duration of a scrape round",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"site"}),
		Outstanding: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "quote_scraper_outstanding_combinations",
			Help: "Combinations still failing after the latest round",
		}, []string{"site"}),
		Rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quote_scraper_rounds_total",
			Help: "Completed scrape rounds, the initial pass included",
		}, []string{"site"}),
	}
	reg.MustRegister(m.Attempts, m.Premiums, m.RoundDuration, m.Outstanding, m.Rounds)
	return m
}

// Collector records one site's scrape into Metrics.
type Collector struct {
	m    *Metrics
	site string
}

var _ scraper.Observer = (*Collector)(nil)

func (m *Metrics) For(site string) *Collector {
	return &Collector{m: m, site: site}
}

func (c *Collector) OnOutcome(_ int, _ models.Combination, o models.Outcome) {
	c.m.Attempts.WithLabelValues(c.site, o.Kind.String()).Inc()
	if o.Kind == models.OutcomeSuccess {
		c.m.Premiums.WithLabelValues(c.site).Add(float64(len(o.Premiums)))
	}
}

func (c *Collector) OnRoundComplete(stats scraper.RoundStats) {
	c.m.Rounds.WithLabelValues(c.site).Inc()
	c.m.RoundDuration.WithLabelValues(c.site).Observe(stats.Duration.Seconds())
	c.m.Outstanding.WithLabelValues(c.site).Set(float64(stats.Outstanding))
}
