package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/life-quote-scraper/internal/combo"
	"github.com/maltedev/life-quote-scraper/internal/config"
	"github.com/maltedev/life-quote-scraper/internal/models"
	"github.com/maltedev/life-quote-scraper/internal/scraper"
	"github.com/maltedev/life-quote-scraper/internal/sink"
)

type fakeOpener struct {
	err error
}

func (f fakeOpener) NewPage() (playwright.Page, error) { return nil, f.err }

func (fakeOpener) Navigate(context.Context, playwright.Page, string) error { return nil }

// flakyPage fails every attempt for the ages in failing.
type flakyPage struct {
	failing map[string]bool
	current models.Combination
}

func (p *flakyPage) Prepare(context.Context, string) error { return nil }

func (p *flakyPage) Apply(_ context.Context, c models.Combination) error {
	p.current = c
	if p.failing[c.Value(models.DimAge)] {
		return errors.New("results did not load")
	}
	return nil
}

func (p *flakyPage) ExtractPremiums(context.Context) ([]string, error) {
	return []string{"$" + p.current.Value(models.DimAge) + ".00"}, nil
}

type memorySink struct {
	results []models.QuoteResult
	err     error
}

func (m *memorySink) Write(_ context.Context, results []models.QuoteResult) error {
	m.results = results
	return m.err
}

func testSite(page scraper.PageDriver) Site {
	dims := func(g config.Grid) []models.Dimension {
		return []models.Dimension{
			models.IntDimension(models.DimAge, g.AgeValues()...),
			models.NewDimension(models.DimGender, g.Genders...),
		}
	}
	return Site{
		Name:             "stub",
		OutputFile:       "stub.csv",
		DefaultMaxRounds: 2,
		Dimensions:       dims,
		Setup: func(_ context.Context, env Env) (scraper.PageDriver, []scraper.Batch, error) {
			return page, []scraper.Batch{{Combinations: combo.Product(dims(env.Grid))}}, nil
		},
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Scraper: config.ScraperConfig{
			OutputDir:   dir,
			SessionFile: filepath.Join(dir, "sessions.json"),
		},
	}
}

func testGrid() config.Grid {
	return config.Grid{Ages: []int{30, 40}, Genders: []string{"Male", "Female"}}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunner_RunWritesResults(t *testing.T) {
	page := &flakyPage{failing: map[string]bool{"40": true}}
	r := New(fakeOpener{}, testGrid(), testConfig(t), quietLogger(), WithRegistry(NewRegistry(testSite(page))))

	out := &memorySink{}
	report, err := r.Run(context.Background(), "stub", out)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Expected)
	assert.Len(t, report.Results, 2)
	assert.Len(t, report.Abandoned, 2)
	assert.Equal(t, 2, report.Rounds)
	assert.Equal(t, report.Results, out.results)
}

func TestRunner_UnknownSite(t *testing.T) {
	r := New(fakeOpener{}, testGrid(), testConfig(t), quietLogger())
	_, err := r.Run(context.Background(), "nowhere", nil)
	assert.ErrorIs(t, err, ErrUnknownSite)
}

func TestRunner_RejectsDuplicateDimensions(t *testing.T) {
	site := testSite(&flakyPage{})
	site.Dimensions = func(config.Grid) []models.Dimension {
		return []models.Dimension{
			models.NewDimension(models.DimAge, "30"),
			models.NewDimension(models.DimAge, "40"),
		}
	}
	r := New(fakeOpener{}, testGrid(), testConfig(t), quietLogger(), WithRegistry(NewRegistry(site)))

	_, err := r.Run(context.Background(), "stub", nil)
	assert.ErrorIs(t, err, combo.ErrDuplicateDimension)
}

func TestRunner_PageFailure(t *testing.T) {
	r := New(fakeOpener{err: errors.New("browser closed")}, testGrid(), testConfig(t), quietLogger(),
		WithRegistry(NewRegistry(testSite(&flakyPage{}))))

	report, err := r.Run(context.Background(), "stub", nil)
	assert.Nil(t, report)
	assert.ErrorContains(t, err, "browser closed")
}

func TestRunner_SinkErrorKeepsReport(t *testing.T) {
	r := New(fakeOpener{}, testGrid(), testConfig(t), quietLogger(), WithRegistry(NewRegistry(testSite(&flakyPage{}))))

	report, err := r.Run(context.Background(), "stub", &memorySink{err: errors.New("disk full")})
	require.NotNil(t, report)
	assert.Len(t, report.Results, 4)
	assert.ErrorContains(t, err, "failed to write results: disk full")
}

func TestRunner_MaxRounds(t *testing.T) {
	cfg := testConfig(t)
	r := New(fakeOpener{}, testGrid(), cfg, quietLogger())
	assert.Equal(t, 10, r.MaxRounds(LifeInsure()))
	assert.Equal(t, 5, r.MaxRounds(Drewberry()))

	cfg.Scraper.MaxRounds = 3
	r = New(fakeOpener{}, testGrid(), cfg, quietLogger())
	assert.Equal(t, 3, r.MaxRounds(Drewberry()))
}

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	assert.Equal(t, []string{"drewberry", "lifeinsure"}, reg.Names())

	g := config.DefaultGrid()
	for _, name := range reg.Names() {
		site, err := reg.Lookup(name)
		require.NoError(t, err)
		assert.NoError(t, combo.Validate(site.Dimensions(g)), name)
	}

	li, _ := reg.Lookup("lifeinsure")
	db, _ := reg.Lookup("drewberry")
	assert.Equal(t, combo.Count(li.Dimensions(g)), combo.Count(db.Dimensions(g)))
}

func TestRunner_OutputSink(t *testing.T) {
	cfg := testConfig(t)
	r := New(fakeOpener{}, testGrid(), cfg, quietLogger())
	var s sink.Sink = r.OutputSink(LifeInsure())
	assert.Equal(t, filepath.Join(cfg.Scraper.OutputDir, "US_quotes.csv"), s.(*sink.CSV).Path())
}

type siteObserver struct {
	site     string
	outcomes int
}

func (s *siteObserver) OnOutcome(int, models.Combination, models.Outcome) { s.outcomes++ }
func (s *siteObserver) OnRoundComplete(scraper.RoundStats)                {}

func TestRunner_ObserverPerSite(t *testing.T) {
	obs := &siteObserver{}
	r := New(fakeOpener{}, testGrid(), testConfig(t), quietLogger(),
		WithRegistry(NewRegistry(testSite(&flakyPage{}))),
		WithObserver(func(site string) scraper.Observer {
			obs.site = site
			return obs
		}))

	_, err := r.Run(context.Background(), "stub", nil)
	require.NoError(t, err)
	assert.Equal(t, "stub", obs.site)
	assert.Equal(t, 4, obs.outcomes)
}

func TestBrowserOptions(t *testing.T) {
	cfg := testConfig(t)
	cfg.Browser.Headless = false
	cfg.Browser.Locale = "en-GB"
	cfg.Browser.UserAgents = []string{"agent-a"}
	cfg.Scraper.NavigationRetries = 7

	opts := BrowserOptions(cfg)
	assert.False(t, opts.Headless)
	assert.Equal(t, "en-GB", opts.Locale)
	assert.Equal(t, "agent-a", opts.UserAgent)
	assert.Equal(t, 7, opts.NavigationRetries)
}
