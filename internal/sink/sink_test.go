package sink

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/life-quote-scraper/internal/database"
	"github.com/maltedev/life-quote-scraper/internal/events"
	"github.com/maltedev/life-quote-scraper/internal/models"
	"github.com/maltedev/life-quote-scraper/internal/scraper"
)

func result(premium string, fields ...models.Field) models.QuoteResult {
	return models.QuoteResult{
		Combination: models.NewCombination(fields...),
		Premium:     premium,
		ScrapedAt:   time.Date(2026, time.April, 2, 10, 0, 0, 0, time.UTC),
	}
}

func usResult(age, premium string) models.QuoteResult {
	return result(premium,
		models.Field{Name: models.DimCoverage, Value: "100000"},
		models.Field{Name: models.DimTerm, Value: "10 Year Term"},
		models.Field{Name: models.DimAge, Value: age},
		models.Field{Name: models.DimGender, Value: "Male"},
		models.Field{Name: models.DimNicotine, Value: "Never Used"},
	)
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSV_Write(t *testing.T) {
	dir := t.TempDir()
	s := NewCSV(filepath.Join(dir, "raw"), "US_quotes.csv")

	require.NoError(t, s.Write(context.Background(), []models.QuoteResult{
		usResult("30", "$21.07"),
		usResult("30", "$1,004.10"),
	}))

	rows := readCSV(t, s.Path())
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Coverage Amount", "Term Length", "Age", "Gender", "Is_Smoker", "Premium"}, rows[0])
	assert.Equal(t, []string{"100000", "10 Year Term", "30", "Male", "Never Used", "$1,004.10"}, rows[2])

	leftovers, err := filepath.Glob(filepath.Join(dir, "raw", "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestCSV_StateColumn(t *testing.T) {
	s := NewCSV(t.TempDir(), "US_quotes.csv")
	r := usResult("40", "$30.00")
	r.Combination = models.NewCombination(append(r.Combination.Fields(), models.Field{Name: models.DimState, Value: "Texas"})...)

	require.NoError(t, s.Write(context.Background(), []models.QuoteResult{r}))

	rows := readCSV(t, s.Path())
	assert.Equal(t, "State", rows[0][5])
	assert.Equal(t, "Texas", rows[1][5])
	assert.Equal(t, "$30.00", rows[1][6])
}

func TestCSV_EmptyWritesHeader(t *testing.T) {
	s := NewCSV(t.TempDir(), "UK_quotes.csv")
	require.NoError(t, s.Write(context.Background(), nil))
	assert.Len(t, readCSV(t, s.Path()), 1)
}

type failingSink struct{ err error }

func (f failingSink) Write(context.Context, []models.QuoteResult) error { return f.err }

type recordingSink struct {
	results []models.QuoteResult
	report  *scraper.Report
}

func (r *recordingSink) Write(_ context.Context, results []models.QuoteResult) error {
	r.results = results
	return nil
}

func (r *recordingSink) WriteReport(_ context.Context, report *scraper.Report) error {
	r.report = report
	return nil
}

func TestMulti(t *testing.T) {
	errA := errors.New("disk full")
	errB := errors.New("db down")
	rec := &recordingSink{}
	results := []models.QuoteResult{usResult("30", "$1.00")}

	err := Multi{failingSink{errA}, rec, failingSink{errB}}.Write(context.Background(), results)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, results, rec.results)

	report := &scraper.Report{Results: results}
	require.NoError(t, WriteReport(context.Background(), Multi{rec}, report))
	assert.Same(t, report, rec.report)
}

type fakeTransactor struct {
	calls int
}

func (f *fakeTransactor) Transaction(ctx context.Context, fn func(pgx.Tx) error) error {
	f.calls++
	return fn(nil)
}

type MockQuotes struct{ mock.Mock }

func (m *MockQuotes) InsertWithTx(ctx context.Context, tx pgx.Tx, quotes []database.Quote) (int64, error) {
	args := m.Called(quotes)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockQuotes) InsertAbandonedWithTx(ctx context.Context, tx pgx.Tx, runID uuid.UUID, failed []models.FailedCombination) error {
	return m.Called(runID, failed).Error(0)
}

type MockRuns struct{ mock.Mock }

func (m *MockRuns) CompleteWithTx(ctx context.Context, tx pgx.Tx, run *database.Run) error {
	return m.Called(run).Error(0)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) PublishRunCompletedWithTx(ctx context.Context, tx pgx.Tx, payload *events.RunCompletedPayload) error {
	return m.Called(payload).Error(0)
}

func TestPostgres_WriteReport(t *testing.T) {
	run := &database.Run{ID: uuid.New(), Site: "lifeinsure"}
	failed := []models.FailedCombination{{Combination: usResult("50", "").Combination, Err: errors.New("timeout"), Round: 10}}
	report := &scraper.Report{
		Results:   []models.QuoteResult{usResult("30", "$21.07"), usResult("40", "$33.10")},
		NoOffers:  []models.Combination{usResult("60", "").Combination},
		Abandoned: failed,
		Expected:  4,
		Rounds:    10,
		Attempts:  14,
	}

	tx := &fakeTransactor{}
	quotes := new(MockQuotes)
	runs := new(MockRuns)
	publisher := new(MockPublisher)

	quotes.On("InsertWithTx", mock.MatchedBy(func(q []database.Quote) bool {
		return len(q) == 2 && q[0].RunID == run.ID && q[1].Age == 40 && *q[1].PremiumAmount == 33.10
	})).Return(int64(2), nil)
	quotes.On("InsertAbandonedWithTx", run.ID, failed).Return(nil)
	runs.On("CompleteWithTx", mock.MatchedBy(func(r *database.Run) bool {
		return r.Expected == 4 && r.Resolved == 3 && r.Quotes == 2 && r.NoOffers == 1 && r.Abandoned == 1
	})).Return(nil)
	publisher.On("PublishRunCompletedWithTx", mock.MatchedBy(func(p *events.RunCompletedPayload) bool {
		return p.RunID == run.ID.String() && p.Site == "lifeinsure" && p.Coverage == 0.75
	})).Return(nil)

	s := NewPostgres(tx, quotes, runs, publisher, run, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, WriteReport(context.Background(), s, report))

	assert.Equal(t, 1, tx.calls)
	quotes.AssertExpectations(t)
	runs.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestPostgres_StopsOnInsertError(t *testing.T) {
	run := &database.Run{ID: uuid.New(), Site: "drewberry"}
	quotes := new(MockQuotes)
	quotes.On("InsertWithTx", mock.Anything).Return(int64(0), errors.New("copy failed"))
	runs := new(MockRuns)
	publisher := new(MockPublisher)

	s := NewPostgres(&fakeTransactor{}, quotes, runs, publisher, run, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := s.Write(context.Background(), []models.QuoteResult{usResult("30", "£7.10")})

	assert.ErrorContains(t, err, "failed to store run: copy failed")
	runs.AssertNotCalled(t, "CompleteWithTx", mock.Anything)
	publisher.AssertNotCalled(t, "PublishRunCompletedWithTx", mock.Anything)
}
