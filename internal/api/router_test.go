package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sleepdata/cpapinsight/internal/contract"
	"github.com/sleepdata/cpapinsight/internal/sessionstore"
	"github.com/sleepdata/cpapinsight/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testRef = time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC)

func testConfig() *contract.Config {
	return &contract.Config{
		ReferenceDate:          testRef,
		Profile:                "default",
		ResultLimit:            contract.DefaultResultLimit,
		Precision:              contract.DefaultPrecision,
		Output:                 schema.JSONOut,
		ComplianceMinHours:     contract.DefaultComplianceMinHours,
		ComplianceTarget:       contract.DefaultComplianceTarget,
		EffectivenessThreshold: contract.DefaultEffectivenessThreshold,
		WindowDays:             contract.DefaultWindowDays,
		ListenAddr:             contract.DefaultListenAddr,
	}
}

func steadyNights(n int, end time.Time) []schema.SessionRecord {
	records := make([]schema.SessionRecord, 0, n)
	for i := n - 1; i >= 0; i-- {
		records = append(records, schema.SessionRecord{
			Date:          end.AddDate(0, 0, -i),
			DurationHours: 7.5,
			AHI:           2,
			LeakRate:      10,
			Pressure:      10,
			Events:        schema.EventCounts{Central: 1, Obstructive: 5, Hypopnea: 5},
		})
	}
	return records
}

func steadyStore() *sessionstore.MockSessionStore {
	store := &sessionstore.MockSessionStore{}
	store.On("LoadSessions", mock.Anything, mock.Anything, time.Time{}, mock.AnythingOfType("time.Time")).
		Return(steadyNights(60, testRef), nil)
	return store
}

func serve(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func scrape(t *testing.T, router http.Handler) string {
	t.Helper()
	rec := serve(t, router, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestHealthz(t *testing.T) {
	router := NewRouter(testConfig(), &sessionstore.MockSessionStore{}, NewMetrics())
	rec := serve(t, router, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err, "a request ID should be generated")
}

func TestRequestIDIsPropagated(t *testing.T) {
	router := NewRouter(testConfig(), &sessionstore.MockSessionStore{}, NewMetrics())
	id := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, id)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))
}

func TestAnalysisEndpoints(t *testing.T) {
	store := steadyStore()
	router := NewRouter(testConfig(), store, NewMetrics())

	t.Run("report", func(t *testing.T) {
		rec := serve(t, router, "/api/v1/report")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var report schema.Report
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.Equal(t, 60, report.RecordCount)
		assert.Len(t, report.Scores, len(schema.AllScoreTypes))
	})

	t.Run("insights", func(t *testing.T) {
		rec := serve(t, router, "/api/v1/insights?limit=2")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var insights []schema.Insight
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &insights))
		require.NotEmpty(t, insights)
		assert.LessOrEqual(t, len(insights), 2)
		assert.Contains(t, scrape(t, router), `cpapinsight_insights_generated_total{kind="`+string(insights[0].Kind)+`"}`)
	})

	t.Run("compliance window", func(t *testing.T) {
		rec := serve(t, router, "/api/v1/compliance?window=14")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var result schema.ComplianceResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, 14, result.WindowDays)
		assert.True(t, result.MeetsThreshold)
	})

	t.Run("scores", func(t *testing.T) {
		rec := serve(t, router, "/api/v1/scores?ref=2024-03-30")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var scores map[schema.ScoreType]schema.CompositeScore
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scores))
		assert.Len(t, scores, len(schema.AllScoreTypes))
	})

	store.AssertNotCalled(t, "RecordRun", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTrendEndpoints(t *testing.T) {
	store := steadyStore()
	router := NewRouter(testConfig(), store, NewMetrics())

	t.Run("compare", func(t *testing.T) {
		rec := serve(t, router, "/api/v1/compare?base_ref=2024-03-01&window=14")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var result schema.ComparisonResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), result.BaseRef)
		assert.Equal(t, testRef, result.TargetRef)
		assert.Equal(t, 14, result.WindowDays)
		assert.NotEmpty(t, result.Metrics)
	})

	t.Run("timeseries", func(t *testing.T) {
		rec := serve(t, router, "/api/v1/timeseries?interval=1%20week&points=4")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var result schema.TimeseriesResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, 7, result.IntervalDays)
		assert.Len(t, result.Points, 4)
	})

	t.Run("check passes", func(t *testing.T) {
		rec := serve(t, router, "/api/v1/check")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var result schema.CheckResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.True(t, result.Passed)
		assert.Empty(t, result.Violations)
	})

	t.Run("check with strict threshold fails", func(t *testing.T) {
		rec := serve(t, router, "/api/v1/check?effectiveness_threshold=99")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var result schema.CheckResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.False(t, result.Passed)
		assert.NotEmpty(t, result.Violations)
	})

	store.AssertNotCalled(t, "RecordRun", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestClassifyEndpoint(t *testing.T) {
	router := NewRouter(testConfig(), &sessionstore.MockSessionStore{}, NewMetrics())

	tests := []struct {
		name   string
		target string
		status int
		band   schema.Band
	}{
		{"excellent ahi", "/api/v1/classify/ahi/3", http.StatusOK, schema.ExcellentBand},
		{"critical ahi", "/api/v1/classify/ahi/40", http.StatusOK, schema.CriticalBand},
		{"unknown metric", "/api/v1/classify/spo2/95", http.StatusBadRequest, ""},
		{"invalid value", "/api/v1/classify/ahi/lots", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, router, tt.target)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				var body errorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.NotEmpty(t, body.Error)
				return
			}
			var result schema.ClassificationResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
			assert.Equal(t, tt.band, result.Band)
		})
	}
}

func TestQueryValidation(t *testing.T) {
	router := NewRouter(testConfig(), &sessionstore.MockSessionStore{}, NewMetrics())

	tests := []struct {
		name     string
		target   string
		contains string
	}{
		{"bad ref", "/api/v1/report?ref=someday", "invalid ref"},
		{"window zero", "/api/v1/compliance?window=0", "window must be between"},
		{"window not a number", "/api/v1/scores?window=month", "window must be between"},
		{"limit too high", "/api/v1/insights?limit=500", "limit must be between"},
		{"compare without base", "/api/v1/compare", "base_ref is required"},
		{"compare base after target", "/api/v1/compare?base_ref=2024-04-01&target_ref=2024-03-01", "cannot be after target ref"},
		{"timeseries bad interval", "/api/v1/timeseries?interval=often", "invalid interval"},
		{"timeseries zero points", "/api/v1/timeseries?points=0", "points must be between"},
		{"check bad threshold", "/api/v1/check?effectiveness_threshold=150", "effectiveness_threshold must be between"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, router, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}
}

func TestErrorStatuses(t *testing.T) {
	t.Run("no records is not found", func(t *testing.T) {
		store := &sessionstore.MockSessionStore{}
		store.On("LoadSessions", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
		rec := serve(t, NewRouter(testConfig(), store, NewMetrics()), "/api/v1/scores")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("load failure is internal", func(t *testing.T) {
		store := &sessionstore.MockSessionStore{}
		store.On("LoadSessions", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
		rec := serve(t, NewRouter(testConfig(), store, NewMetrics()), "/api/v1/report")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "connection refused")
	})

	t.Run("unknown route", func(t *testing.T) {
		rec := serve(t, NewRouter(testConfig(), &sessionstore.MockSessionStore{}, NewMetrics()), "/api/v2/report")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	router := NewRouter(testConfig(), &sessionstore.MockSessionStore{}, NewMetrics())

	serve(t, router, "/api/v1/classify/ahi/3")
	serve(t, router, "/api/v1/classify/ahi/3")
	serve(t, router, "/api/v1/classify/spo2/3")

	body := scrape(t, router)
	assert.Contains(t, body, `cpapinsight_requests_total{method="GET",route="/api/v1/classify/{metric}/{value}",status="200"} 2`)
	assert.Contains(t, body, `cpapinsight_requests_total{method="GET",route="/api/v1/classify/{metric}/{value}",status="400"} 1`)
	assert.Contains(t, body, "cpapinsight_request_duration_seconds_bucket")
}

func TestNewHandler(t *testing.T) {
	var logs bytes.Buffer
	router := NewRouter(testConfig(), &sessionstore.MockSessionStore{}, NewMetrics())
	router.HandleFunc("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })
	h := NewHandler(router, &logs)

	t.Run("logs requests", func(t *testing.T) {
		rec := serve(t, h, "/healthz")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, logs.String(), "GET /healthz")
	})

	t.Run("recovers from panics", func(t *testing.T) {
		rec := serve(t, h, "/panic")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("answers CORS requests", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Origin", "http://dashboard.local")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, strings.ToLower(rec.Header().Get("Access-Control-Expose-Headers")), strings.ToLower(RequestIDHeader))
	})
}
