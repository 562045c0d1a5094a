package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/life-quote-scraper/internal/database"
	"github.com/maltedev/life-quote-scraper/internal/jobs"
	"github.com/maltedev/life-quote-scraper/internal/runner"
)

type MockRunService struct {
	mock.Mock
}

func (m *MockRunService) CreateRun(ctx context.Context, site string) (*database.Run, error) {
	args := m.Called(site)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.Run), args.Error(1)
}

func (m *MockRunService) GetRun(ctx context.Context, id uuid.UUID) (*database.Run, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.Run), args.Error(1)
}

func (m *MockRunService) ListRuns(ctx context.Context) ([]*database.Run, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*database.Run), args.Error(1)
}

func (m *MockRunService) RunQuotes(ctx context.Context, id uuid.UUID, limit int) ([]database.Quote, error) {
	args := m.Called(id, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]database.Quote), args.Error(1)
}

type stubStats struct {
	stats database.RelayStats
	err   error
}

func (s stubStats) Stats(context.Context) (database.RelayStats, error) { return s.stats, s.err }

func newServer(runs RunService, stats OutboxStats) http.Handler {
	h := NewHandlers(runs, stats, slog.New(slog.NewTextHandler(io.Discard, nil)))
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "quote_scraper_rounds_total 1")
	})
	return NewRouter(h, metrics, []string{"http://localhost:3000"})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateRun(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(*MockRunService)
		wantStatus int
	}{
		{
			name: "queued",
			body: `{"site":"lifeinsure"}`,
			setup: func(m *MockRunService) {
				m.On("CreateRun", "lifeinsure").Return(&database.Run{ID: uuid.New(), Status: database.RunStatusQueued}, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "invalid body",
			body:       `{`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing site",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unknown site",
			body: `{"site":"nowhere"}`,
			setup: func(m *MockRunService) {
				m.On("CreateRun", "nowhere").Return(nil, fmt.Errorf("%w: %q", runner.ErrUnknownSite, "nowhere"))
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "store failure",
			body: `{"site":"drewberry"}`,
			setup: func(m *MockRunService) {
				m.On("CreateRun", "drewberry").Return(nil, errors.New("connection refused"))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := new(MockRunService)
			if tt.setup != nil {
				tt.setup(runs)
			}
			rec := do(t, newServer(runs, stubStats{}), http.MethodPost, "/api/v1/runs", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			runs.AssertExpectations(t)
		})
	}
}

func TestGetRun(t *testing.T) {
	runs := new(MockRunService)
	id := uuid.New()
	missing := uuid.New()
	runs.On("GetRun", id).Return(&database.Run{ID: id, Site: "drewberry", Status: database.RunStatusCompleted, Quotes: 40}, nil)
	runs.On("GetRun", missing).Return(nil, fmt.Errorf("%w: %s", jobs.ErrRunNotFound, missing))
	srv := newServer(runs, stubStats{})

	rec := do(t, srv, http.MethodGet, "/api/v1/runs/"+id.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got database.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 40, got.Quotes)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/v1/runs/"+missing.String(), "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/v1/runs/not-a-uuid", "").Code)
}

func TestListRuns_EmptyIsArray(t *testing.T) {
	runs := new(MockRunService)
	runs.On("ListRuns").Return([]*database.Run(nil), nil)

	rec := do(t, newServer(runs, stubStats{}), http.MethodGet, "/api/v1/runs", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetRunQuotes(t *testing.T) {
	runs := new(MockRunService)
	id := uuid.New()
	runs.On("RunQuotes", id, defaultQuoteLimit).Return([]database.Quote{{RunID: id, Premium: "$21.07"}}, nil)
	runs.On("RunQuotes", id, maxQuoteLimit).Return([]database.Quote{}, nil)
	srv := newServer(runs, stubStats{})

	rec := do(t, srv, http.MethodGet, "/api/v1/runs/"+id.String()+"/quotes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "$21.07")

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/v1/runs/"+id.String()+"/quotes?limit=999999", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/v1/runs/"+id.String()+"/quotes?limit=-1", "").Code)
	runs.AssertExpectations(t)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		stats      stubStats
		wantStatus int
		wantState  string
	}{
		{"ok", stubStats{stats: database.RelayStats{Pending: 2}}, http.StatusOK, "ok"},
		{"backlog", stubStats{stats: database.RelayStats{Pending: 5000}}, http.StatusOK, "warning"},
		{"dead letters", stubStats{stats: database.RelayStats{DeadLetter: 500}}, http.StatusServiceUnavailable, "error"},
		{"stats unavailable", stubStats{err: errors.New("pool closed")}, http.StatusOK, "warning"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newServer(new(MockRunService), tt.stats), http.MethodGet, "/health", "")
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantState, resp.Status)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, newServer(new(MockRunService), stubStats{}), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "quote_scraper_rounds_total")
}
