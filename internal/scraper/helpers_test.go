package scraper

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/maltedev/life-quote-scraper/internal/models"
)

var errElementNotFound = errors.New("element not found")

// stubPage is a scripted page driver. A combination fails while its attempt
// count is below failUntil, always fails when listed in always, and shows
// no offers when listed in noOffers.
type stubPage struct {
	attempts   map[string]int
	failUntil  map[string]int
	always     map[string]bool
	noOffers   map[string]bool
	panicOn    map[string]bool
	prepareErr error
	prepared   []string
	applied    []string
	current    models.Combination
	token      string
	onApply    func(c models.Combination)
}

func newStubPage() *stubPage {
	return &stubPage{
		attempts:  make(map[string]int),
		failUntil: make(map[string]int),
		always:    make(map[string]bool),
		noOffers:  make(map[string]bool),
		panicOn:   make(map[string]bool),
	}
}

func (s *stubPage) Prepare(ctx context.Context, token string) error {
	s.prepared = append(s.prepared, token)
	return s.prepareErr
}

func (s *stubPage) Apply(ctx context.Context, c models.Combination) error {
	key := c.Key()
	n := s.attempts[key]
	s.attempts[key]++
	s.applied = append(s.applied, key)
	if s.onApply != nil {
		s.onApply(c)
	}
	if s.panicOn[key] {
		panic("stale element reference")
	}
	if s.always[key] || n < s.failUntil[key] {
		return errElementNotFound
	}
	s.current = c
	return nil
}

func (s *stubPage) ExtractPremiums(ctx context.Context) ([]string, error) {
	if s.noOffers[s.current.Key()] {
		return nil, nil
	}
	return []string{"$" + s.current.Value(models.DimAge) + ".00", "$99.99"}, nil
}

type resumablePage struct {
	*stubPage
}

func (r resumablePage) ResumeToken() string {
	return r.token
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func exampleDimensions() []models.Dimension {
	return []models.Dimension{
		models.IntDimension(models.DimAge, 30, 40),
		models.NewDimension(models.DimGender, "Male", "Female"),
		models.NewDimension(models.DimNicotine, "Yes", "No"),
	}
}

func keyOf(age, gender, nicotine string) string {
	return models.NewCombination(
		models.Field{Name: models.DimAge, Value: age},
		models.Field{Name: models.DimGender, Value: gender},
		models.Field{Name: models.DimNicotine, Value: nicotine},
	).Key()
}

// countingObserver tallies callbacks.
type countingObserver struct {
	outcomes map[models.OutcomeKind]int
	rounds   []RoundStats
}

func newCountingObserver() *countingObserver {
	return &countingObserver{outcomes: make(map[models.OutcomeKind]int)}
}

func (c *countingObserver) OnOutcome(_ int, _ models.Combination, o models.Outcome) {
	c.outcomes[o.Kind]++
}

func (c *countingObserver) OnRoundComplete(stats RoundStats) {
	c.rounds = append(c.rounds, stats)
}
