package commands

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/maltedev/life-quote-scraper/internal/combo"
	"github.com/maltedev/life-quote-scraper/internal/models"
	"github.com/maltedev/life-quote-scraper/internal/scraper"
)

func TestRenderReport(t *testing.T) {
	start := time.Date(2026, time.May, 3, 9, 0, 0, 0, time.UTC)
	failed := models.NewCombination(
		models.Field{Name: models.DimAge, Value: "30"},
		models.Field{Name: models.DimGender, Value: "Male"},
	)
	r := &scraper.Report{
		Results:    []models.QuoteResult{{Premium: "$1.00"}, {Premium: "$2.00"}},
		Abandoned:  []models.FailedCombination{{Combination: failed, Err: errors.New("timeout"), Round: 5}},
		Expected:   4,
		Rounds:     5,
		Attempts:   9,
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
	}

	var buf bytes.Buffer
	renderReport(&buf, "drewberry", 5, r)
	out := buf.String()

	assert.Contains(t, strings.ToLower(out), "drewberry")
	assert.Contains(t, out, "5 / 5")
	assert.Contains(t, out, "75.0%")
	assert.Contains(t, strings.ToLower(out), "abandoned combinations")
	assert.Contains(t, out, "(30, Male)")
	assert.Contains(t, out, "timeout")
}

func TestRenderReport_NoAbandoned(t *testing.T) {
	var buf bytes.Buffer
	renderReport(&buf, "lifeinsure", 10, &scraper.Report{Expected: 1})
	assert.NotContains(t, strings.ToLower(buf.String()), "abandoned combinations")
}

func TestRenderCombinations(t *testing.T) {
	dims := []models.Dimension{
		models.IntDimension(models.DimAge, 30, 40),
		models.NewDimension(models.DimGender, "Male", "Female"),
	}
	var buf bytes.Buffer
	renderCombinations(&buf, dims, combo.Collect(combo.Product(dims))[:2], combo.Count(dims))

	out := buf.String()
	assert.Contains(t, out, "4 combinations")
	assert.Contains(t, out, "Female")
	assert.NotContains(t, out, "40")
}
