// Package lifeinsure drives the single-page US quoter. Results and the edit
// panel share one page, so the whole grid runs as a single batch.
package lifeinsure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/life-quote-scraper/internal/config"
	"github.com/maltedev/life-quote-scraper/internal/models"
	"github.com/maltedev/life-quote-scraper/internal/parser"
	"github.com/maltedev/life-quote-scraper/internal/sites"
)

const (
	Name             = "lifeinsure"
	QuoteURL         = "https://quoter.lifeinsure.com/#gender"
	OutputFile       = "US_quotes.csv"
	DefaultMaxRounds = 10

	NicotineUser  = "Current user"
	NicotineNever = "Never Used"
)

// Form is the page surface the driver works through.
type Form interface {
	// Open loads url and submits the baseline profile.
	Open(ctx context.Context, url string) error
	SetCoverage(amount string) error
	SetTerm(label string) error
	SetState(state string) error
	// EditProfile sets nicotine, birth year and gender in the edit panel.
	EditProfile(p sites.Profile) error
	// Content expands the result list and returns the page HTML.
	Content() (string, error)
}

// TermLabel renders a term length the way the term dropdown shows it.
func TermLabel(years int) string {
	return fmt.Sprintf("%d Year Term", years)
}

func NicotineLabel(user bool) string {
	if user {
		return NicotineUser
	}
	return NicotineNever
}

// Dimensions maps the grid onto this site's labels in nesting order
// coverage, term, age, gender, nicotine, with state outermost when set.
func Dimensions(g config.Grid) []models.Dimension {
	terms := make([]string, len(g.TermLengths))
	for i, t := range g.TermLengths {
		terms[i] = TermLabel(t)
	}
	nicotine := make([]string, len(g.Nicotine))
	for i, n := range g.Nicotine {
		nicotine[i] = NicotineLabel(n)
	}

	var dims []models.Dimension
	if len(g.States) > 0 {
		dims = append(dims, models.NewDimension(models.DimState, g.States...))
	}
	return append(dims,
		models.NewDimension(models.DimCoverage, g.CoverageAmounts...),
		models.NewDimension(models.DimTerm, terms...),
		models.IntDimension(models.DimAge, g.AgeValues()...),
		models.NewDimension(models.DimGender, g.Genders...),
		models.NewDimension(models.DimNicotine, nicotine...),
	)
}

// Driver applies combinations to the quoter page. It remembers the last
// combination it applied and only edits the fields that changed.
type Driver struct {
	form    Form
	parser  parser.PremiumParser
	logger  *slog.Logger
	now     func() time.Time
	current models.Combination
	valid   bool
}

func NewDriver(form Form, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		form:   form,
		parser: parser.NewLifeInsureParser(),
		logger: logger.With("component", "lifeinsure"),
		now:    time.Now,
	}
}

func (d *Driver) Prepare(ctx context.Context, resumeToken string) error {
	url := resumeToken
	if url == "" {
		url = QuoteURL
	}

	d.valid = false
	if err := d.form.Open(ctx, url); err != nil {
		return fmt.Errorf("failed to open quoter: %w", err)
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

	if sites.Touches(changed, models.DimState) {
		if err := d.form.SetState(c.Value(models.DimState)); err != nil {
			return err
		}
	}
	if sites.Touches(changed, models.DimCoverage) {
		if err := d.form.SetCoverage(c.Value(models.DimCoverage)); err != nil {
			return err
		}
	}
	if sites.Touches(changed, models.DimTerm) {
		if err := d.form.SetTerm(c.Value(models.DimTerm)); err != nil {
			return err
		}
	}
	if sites.Touches(changed, models.DimAge, models.DimGender, models.DimNicotine) {
		profile, err := sites.ProfileOf(c, d.now())
		if err != nil {
			return err
		}
		if err := d.form.EditProfile(profile); err != nil {
			return err
		}
	}

	d.current = c
	d.valid = true
	d.logger.Debug("applied combination", "combination", c.String(), "changed", changed)
	return nil
}

func (d *Driver) ExtractPremiums(ctx context.Context) ([]string, error) {
	html, err := d.form.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}

	premiums, err := d.parser.ParsePremiums(html)
	if errors.Is(err, parser.ErrNoResultsBanner) {
		return nil, nil
	}
	return premiums, err
}
