// Package drewberry drives the UK comparison site. Every risk profile gets
// its own results URL from the quote form; coverage and term are then edited
// on that page. Profiles therefore map to batches whose resume token is the
// profile's session URL.
package drewberry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maltedev/life-quote-scraper/internal/combo"
	"github.com/maltedev/life-quote-scraper/internal/config"
	"github.com/maltedev/life-quote-scraper/internal/models"
	"github.com/maltedev/life-quote-scraper/internal/parser"
	"github.com/maltedev/life-quote-scraper/internal/scraper"
	"github.com/maltedev/life-quote-scraper/internal/sites"
	"github.com/maltedev/life-quote-scraper/internal/storage"
)

const (
	Name             = "drewberry"
	QuoteFormURL     = "https://www.drewberryinsurance.co.uk/life-insurance/life-insurance-quote"
	OutputFile       = "UK_quotes.csv"
	DefaultMaxRounds = 5

	Smoker    = "Smoker"
	NonSmoker = "Non-Smoker"
)

var ErrNoSession = errors.New("no session url for profile")

// Form is the page surface the driver works through.
type Form interface {
	// OpenSession loads a results URL and clears the first-visit overlays.
	OpenSession(ctx context.Context, url string) error
	// EditCover submits coverage and term through the edit panel.
	EditCover(coverage, term string) error
	// Content filters to life-only quotes, expands them and returns the HTML.
	Content() (string, error)
	URL() string
}

func NicotineLabel(smoker bool) string {
	if smoker {
		return Smoker
	}
	return NonSmoker
}

// ProfileDimensions are the dimensions fixed per session URL.
func ProfileDimensions(g config.Grid) []models.Dimension {
	nicotine := make([]string, len(g.Nicotine))
	for i, n := range g.Nicotine {
		nicotine[i] = NicotineLabel(n)
	}
	return []models.Dimension{
		models.IntDimension(models.DimAge, g.AgeValues()...),
		models.NewDimension(models.DimGender, g.Genders...),
		models.NewDimension(models.DimNicotine, nicotine...),
	}
}

// CoverDimensions are the dimensions edited on a session page.
func CoverDimensions(g config.Grid) []models.Dimension {
	return []models.Dimension{
		models.NewDimension(models.DimCoverage, g.CoverageAmounts...),
		models.NewDimension(models.DimTerm, sites.Ints(g.TermLengths)...),
	}
}

// Batches builds one batch per profile. A profile without a stored session
// still gets a batch with an empty token, so its combinations are recorded
// as failures instead of disappearing.
func Batches(g config.Grid, store *storage.SessionStore, logger *slog.Logger) []scraper.Batch {
	cover := CoverDimensions(g)

	var batches []scraper.Batch
	for profile := range combo.Product(ProfileDimensions(g)) {
		var token string
		if s, err := store.Get(profile); err == nil {
			token = s.URL
		} else {
			logger.Warn("missing session for profile", "profile", profile.String())
		}
		batches = append(batches, scraper.Batch{
			ResumeToken:  token,
			Combinations: combo.Product(combo.Prefix(profile, cover)),
		})
	}
	return batches
}

// Driver edits coverage and term on a profile's session page.
type Driver struct {
	form    Form
	parser  parser.PremiumParser
	logger  *slog.Logger
	session string
	current models.Combination
	valid   bool
}

func NewDriver(form Form, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		form:   form,
		parser: parser.NewDrewberryParser(),
		logger: logger.With("component", "drewberry"),
	}
}

func (d *Driver) Prepare(ctx context.Context, resumeToken string) error {
	d.valid = false
	d.session = resumeToken
	if resumeToken == "" {
		return ErrNoSession
	}
	if err := d.form.OpenSession(ctx, resumeToken); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	return nil
}

func (d *Driver) Apply(ctx context.Context, c models.Combination) error {
	changed := c.Changed(models.Combination{})
	if d.valid {
		changed = c.Changed(d.current)
	}
	d.valid = false

	if err := ctx.Err(); err != nil {
		return err
	}

	if sites.Touches(changed, models.DimCoverage, models.DimTerm) {
		if err := d.form.EditCover(c.Value(models.DimCoverage), c.Value(models.DimTerm)); err != nil {
			return err
		}
	}

	d.current = c
	d.valid = true
	return nil
}

func (d *Driver) ExtractPremiums(ctx context.Context) ([]string, error) {
	html, err := d.form.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	return d.parser.ParsePremiums(html)
}

// ResumeToken is the session URL of the profile being scraped.
func (d *Driver) ResumeToken() string {
	return d.session
}
