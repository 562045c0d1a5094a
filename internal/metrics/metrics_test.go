package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/maltedev/life-quote-scraper/internal/models"
	"github.com/maltedev/life-quote-scraper/internal/scraper"
)

func TestCollector(t *testing.T) {
	m := New(prometheus.NewRegistry())
	c := m.For("lifeinsure")
	combo := models.NewCombination(models.Field{Name: models.DimAge, Value: "30"})

	c.OnOutcome(0, combo, models.Success([]string{"$1.00", "$2.00"}))
	c.OnOutcome(0, combo, models.NoOffers())
	c.OnOutcome(0, combo, models.Failure(errors.New("timeout")))
	c.OnOutcome(1, combo, models.Failure(errors.New("timeout")))
	c.OnRoundComplete(scraper.RoundStats{Round: 1, Outstanding: 1, Duration: 3 * time.Second})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Attempts.WithLabelValues("lifeinsure", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Attempts.WithLabelValues("lifeinsure", "no_offers")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Attempts.WithLabelValues("lifeinsure", "failure")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Premiums.WithLabelValues("lifeinsure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Outstanding.WithLabelValues("lifeinsure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rounds.WithLabelValues("lifeinsure")))
}

func TestCollector_SitesAreSeparate(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.For("lifeinsure").OnOutcome(0, models.Combination{}, models.NoOffers())
	m.For("drewberry").OnOutcome(0, models.Combination{}, models.NoOffers())
	m.For("drewberry").OnOutcome(0, models.Combination{}, models.NoOffers())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Attempts.WithLabelValues("lifeinsure", "no_offers")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Attempts.WithLabelValues("drewberry", "no_offers")))
}
