package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/maltedev/shop-compare/internal/database"
	"github.com/maltedev/shop-compare/internal/models"
	"github.com/maltedev/shop-compare/internal/operator"
	"github.com/maltedev/shop-compare/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type staticResults struct {
	report *models.RunReport
}

func (s staticResults) Last() *models.RunReport { return s.report }

type MockStats struct {
	mock.Mock
}

func (m *MockStats) Stats(ctx context.Context, site string) (*database.SolveStats, error) {
	args := m.Called(ctx, site)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.SolveStats), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	gate := operator.NewGate(testLogger())
	router := NewRouter(NewHandlers(gate, staticResults{}, nil, nil, testLogger()), "")

	rec, body := serve(t, router, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["challenge_pending"])
}

func TestChallengeAcknowledgement(t *testing.T) {
	gate := operator.NewGate(testLogger())
	router := NewRouter(NewHandlers(gate, staticResults{}, nil, nil, testLogger()), "")

	rec, body := serve(t, router, http.MethodPost, "/api/v1/challenge/ack")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, operator.ErrNothingPending.Error(), body["error"])

	done := make(chan error, 1)
	go func() {
		done <- gate.AwaitAcknowledgement(context.Background(), "Amazon: solve it in the browser")
	}()

	require.Eventually(t, func() bool {
		return gate.Pending().Pending
	}, time.Second, 10*time.Millisecond)

	_, body = serve(t, router, http.MethodGet, "/api/v1/challenge")
	assert.Equal(t, true, body["pending"])
	assert.Equal(t, "Amazon: solve it in the browser", body["message"])

	rec, body = serve(t, router, http.MethodPost, "/api/v1/challenge/ack")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["acknowledged"])

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("acknowledgement did not release the waiting solve")
	}

	_, body = serve(t, router, http.MethodGet, "/api/v1/challenge")
	assert.Equal(t, false, body["pending"])
}

func TestGetResults(t *testing.T) {
	gate := operator.NewGate(testLogger())

	router := NewRouter(NewHandlers(gate, staticResults{}, nil, nil, testLogger()), "")
	rec, _ := serve(t, router, http.MethodGet, "/api/v1/results")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	report := &models.RunReport{
		ID:       "run-1",
		Query:    "iPhone 16",
		Passed:   true,
		Products: []models.Product{{Website: "eBay", Name: "iPhone", Price: 699}},
	}
	router = NewRouter(NewHandlers(gate, staticResults{report: report}, nil, nil, testLogger()), "")
	rec, body := serve(t, router, http.MethodGet, "/api/v1/results")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "run-1", body["id"])
	assert.Len(t, body["products"], 1)
}

func TestGetSolveStats(t *testing.T) {
	gate := operator.NewGate(testLogger())

	t.Run("not configured", func(t *testing.T) {
		router := NewRouter(NewHandlers(gate, staticResults{}, nil, nil, testLogger()), "")
		rec, _ := serve(t, router, http.MethodGet, "/api/v1/solves/Amazon/stats")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("found", func(t *testing.T) {
		stats := new(MockStats)
		stats.On("Stats", mock.Anything, "Amazon").Return(&database.SolveStats{Site: "Amazon", Total: 5, Cleared: 4, AvgAttempts: 1.4}, nil)

		router := NewRouter(NewHandlers(gate, staticResults{}, nil, stats, testLogger()), "")
		rec, body := serve(t, router, http.MethodGet, "/api/v1/solves/Amazon/stats")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(5), body["total"])
		assert.Equal(t, float64(4), body["cleared"])
		stats.AssertExpectations(t)
	})

	t.Run("query error", func(t *testing.T) {
		stats := new(MockStats)
		stats.On("Stats", mock.Anything, "eBay").Return(nil, errors.New("pool closed"))

		router := NewRouter(NewHandlers(gate, staticResults{}, nil, stats, testLogger()), "")
		rec, _ := serve(t, router, http.MethodGet, "/api/v1/solves/eBay/stats")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestReportFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.html"), []byte("<html>ok</html>"), 0o644))

	router := NewRouter(NewHandlers(operator.NewGate(testLogger()), staticResults{}, nil, nil, testLogger()), dir)
	rec, _ := serve(t, router, http.MethodGet, "/reports/report.html")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

type staticRuns []*models.RunReport

func (s staticRuns) List() []*models.RunReport { return s }

func (s staticRuns) Get(id string) (*models.RunReport, bool) {
	for _, r := range s {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}

func (s staticRuns) GetStats() map[string]int {
	return map[string]int{"total": len(s)}
}

func TestListRuns(t *testing.T) {
	gate := operator.NewGate(testLogger())

	router := NewRouter(NewHandlers(gate, staticResults{}, nil, nil, testLogger()), "")
	rec, _ := serve(t, router, http.MethodGet, "/api/v1/runs")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	runs := staticRuns{{ID: "b"}, {ID: "a"}}
	router = NewRouter(NewHandlers(gate, staticResults{}, runs, nil, testLogger()), "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 2)
	assert.Equal(t, "b", body[0]["id"])
}

func TestGetRun(t *testing.T) {
	gate := operator.NewGate(testLogger())

	router := NewRouter(NewHandlers(gate, staticResults{}, nil, nil, testLogger()), "")
	rec, _ := serve(t, router, http.MethodGet, "/api/v1/runs/a")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	store, err := storage.NewRunStore(filepath.Join(t.TempDir(), "runs.json"), 10)
	require.NoError(t, err)
	require.NoError(t, store.Save(&models.RunReport{ID: "a", Query: "iPhone 16", StartedAt: time.Now(), Passed: true}))
	require.NoError(t, store.Save(&models.RunReport{ID: "b", Query: "iPhone 16", StartedAt: time.Now()}))

	router = NewRouter(NewHandlers(gate, staticResults{}, store, nil, testLogger()), "")

	rec, body := serve(t, router, http.MethodGet, "/api/v1/runs/a")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a", body["id"])
	assert.Equal(t, true, body["passed"])

	rec, body = serve(t, router, http.MethodGet, "/api/v1/runs/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "run not found", body["error"])

	rec, body = serve(t, router, http.MethodGet, "/api/v1/runs/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["total"])
	assert.Equal(t, float64(1), body["passed"])
	assert.Equal(t, float64(1), body["failed"])
}
