package drewberry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/life-quote-scraper/internal/combo"
	"github.com/maltedev/life-quote-scraper/internal/config"
	"github.com/maltedev/life-quote-scraper/internal/models"
	"github.com/maltedev/life-quote-scraper/internal/sites"
	"github.com/maltedev/life-quote-scraper/internal/storage"
)

type MockForm struct {
	mock.Mock
}

func (m *MockForm) OpenSession(ctx context.Context, url string) error {
	return m.Called(url).Error(0)
}

func (m *MockForm) EditCover(coverage, term string) error {
	return m.Called(coverage, term).Error(0)
}

func (m *MockForm) Content() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *MockForm) URL() string {
	return m.Called().String(0)
}

type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) SubmitProfile(ctx context.Context, p sites.Profile) (string, error) {
	args := m.Called(p)
	return args.String(0), args.Error(1)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testGrid() config.Grid {
	return config.Grid{
		Ages:            []int{30, 40},
		Genders:         []string{"Male"},
		Nicotine:        []bool{true, false},
		CoverageAmounts: []string{"100000", "200000"},
		TermLengths:     []int{10, 20},
	}
}

func newStore(t *testing.T) *storage.SessionStore {
	t.Helper()
	s, err := storage.NewSessionStore(filepath.Join(t.TempDir(), "sessions.json"))
	require.NoError(t, err)
	return s
}

func withCover(profile models.Combination, coverage, term string) models.Combination {
	return models.NewCombination(append(profile.Fields(),
		models.Field{Name: models.DimCoverage, Value: coverage},
		models.Field{Name: models.DimTerm, Value: term},
	)...)
}

func TestDimensions(t *testing.T) {
	g := testGrid()

	profile := ProfileDimensions(g)
	assert.Equal(t, []string{Smoker, NonSmoker}, profile[2].Values)
	assert.Equal(t, 4, combo.Count(profile))

	cover := CoverDimensions(g)
	assert.Equal(t, []string{"10", "20"}, cover[1].Values)
}

func TestBatches_OnePerProfile(t *testing.T) {
	g := testGrid()
	store := newStore(t)
	profiles := combo.Collect(combo.Product(ProfileDimensions(g)))
	for i, p := range profiles[:3] {
		require.NoError(t, store.Put(p, "https://quotes.example/s/"+string(rune('a'+i))))
	}

	batches := Batches(g, store, quietLogger())
	require.Len(t, batches, 4)

	assert.Equal(t, "https://quotes.example/s/a", batches[0].ResumeToken)
	assert.Empty(t, batches[3].ResumeToken)

	combos := combo.Collect(batches[0].Combinations)
	require.Len(t, combos, 4)
	first := combos[0]
	assert.Equal(t, "30", first.Value(models.DimAge))
	assert.Equal(t, Smoker, first.Value(models.DimNicotine))
	assert.Equal(t, "100000", first.Value(models.DimCoverage))
	assert.Equal(t, "10", first.Value(models.DimTerm))
}

func TestDriver_PrepareWithoutSession(t *testing.T) {
	d := NewDriver(new(MockForm), quietLogger())
	assert.ErrorIs(t, d.Prepare(context.Background(), ""), ErrNoSession)
}

func TestDriver_EditsCoverOnlyWhenChanged(t *testing.T) {
	form := new(MockForm)
	form.On("OpenSession", "https://quotes.example/s/a").Return(nil)
	form.On("EditCover", "100000", "10").Return(nil).Once()
	form.On("EditCover", "100000", "20").Return(nil).Once()

	d := NewDriver(form, quietLogger())
	ctx := context.Background()
	require.NoError(t, d.Prepare(ctx, "https://quotes.example/s/a"))
	assert.Equal(t, "https://quotes.example/s/a", d.ResumeToken())

	profile := models.NewCombination(
		models.Field{Name: models.DimAge, Value: "30"},
		models.Field{Name: models.DimGender, Value: "Male"},
		models.Field{Name: models.DimNicotine, Value: Smoker},
	)
	c1 := withCover(profile, "100000", "10")
	c2 := withCover(profile, "100000", "20")

	require.NoError(t, d.Apply(ctx, c1))
	require.NoError(t, d.Apply(ctx, c1))
	require.NoError(t, d.Apply(ctx, c2))

	form.AssertExpectations(t)
	form.AssertNumberOfCalls(t, "EditCover", 2)
}

func TestDriver_ExtractPremiums(t *testing.T) {
	form := new(MockForm)
	form.On("Content").Return(`<span class="QuoteCardContent_Price__a">£7.10</span>`, nil)

	premiums, err := NewDriver(form, quietLogger()).ExtractPremiums(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"£7.10"}, premiums)
}

func TestCollector_CollectsMissingOnly(t *testing.T) {
	g := testGrid()
	store := newStore(t)
	profiles := combo.Collect(combo.Product(ProfileDimensions(g)))
	require.NoError(t, store.Put(profiles[0], "https://quotes.example/s/cached"))

	sub := new(MockSubmitter)
	sub.On("SubmitProfile", mock.MatchedBy(func(p sites.Profile) bool {
		return p.Age == 40 && p.Nicotine == NonSmoker
	})).Return("", errors.New("timeout waiting for submit"))
	sub.On("SubmitProfile", mock.Anything).Return("https://quotes.example/s/new", nil)

	c := NewCollector(sub, store, quietLogger())
	c.now = func() time.Time { return time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC) }

	res, err := c.Collect(context.Background(), profiles)
	require.NoError(t, err)

	assert.Equal(t, CollectResult{Expected: 4, Collected: 2, Failed: 1, Cached: 1}, res)
	sub.AssertNumberOfCalls(t, "SubmitProfile", 3)
	assert.Len(t, c.Missing(profiles), 1)

	s, err := store.Get(profiles[0])
	require.NoError(t, err)
	assert.Equal(t, "https://quotes.example/s/cached", s.URL)
}

func TestCollector_SkipsWhenComplete(t *testing.T) {
	store := newStore(t)
	profiles := combo.Collect(combo.Product(ProfileDimensions(testGrid())))
	for _, p := range profiles {
		require.NoError(t, store.Put(p, "u"))
	}

	sub := new(MockSubmitter)
	res, err := NewCollector(sub, store, quietLogger()).Collect(context.Background(), profiles)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Cached)
	sub.AssertNotCalled(t, "SubmitProfile", mock.Anything)
}

func TestCollector_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	profiles := combo.Collect(combo.Product(ProfileDimensions(testGrid())))
	_, err := NewCollector(new(MockSubmitter), newStore(t), quietLogger()).Collect(ctx, profiles)
	assert.ErrorIs(t, err, context.Canceled)
}
