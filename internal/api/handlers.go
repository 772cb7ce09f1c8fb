package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sleepdata/cpapinsight/core"
	"github.com/sleepdata/cpapinsight/core/algo"
	"github.com/sleepdata/cpapinsight/internal/contract"
	"github.com/sleepdata/cpapinsight/schema"
)

type server struct {
	baseCfg *contract.Config
	source  contract.SessionSource
	metrics *Metrics
	now     func() time.Time
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

// badRequest marks errors caused by the query rather than the data.
type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps an analysis error onto an HTTP status.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var br badRequest
	switch {
	case errors.As(err, &br), errors.Is(err, algo.ErrUnknownMetric):
		status = http.StatusBadRequest
	case errors.Is(err, contract.ErrNoRecords):
		status = http.StatusNotFound
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// requestConfig applies the profile, ref, window and limit query parameters.
func (s *server) requestConfig(r *http.Request) (*contract.Config, error) {
	cfg := s.baseCfg.Clone()
	q := r.URL.Query()
	if p := q.Get("profile"); p != "" {
		cfg.Profile = p
	}
	if ref := q.Get("ref"); ref != "" {
		parsed, err := contract.ParseReferenceDate(ref, s.now())
		if err != nil {
			return nil, badRequest{fmt.Errorf("invalid ref: %w", err)}
		}
		cfg.ReferenceDate = parsed
	}
	if w := q.Get("window"); w != "" {
		days, err := strconv.Atoi(w)
		if err != nil || days < 1 || days > contract.MaxWindowDays {
			return nil, badRequest{fmt.Errorf("window must be between 1 and %d days (received %q)", contract.MaxWindowDays, w)}
		}
		cfg.WindowDays = days
	}
	if l := q.Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit < 1 || limit > contract.MaxResultLimit {
			return nil, badRequest{fmt.Errorf("limit must be between 1 and %d (received %q)", contract.MaxResultLimit, l)}
		}
		cfg.ResultLimit = limit
	}
	return cfg, nil
}

// analysisContext keeps dashboard reads out of the run history.
func analysisContext(ctx context.Context) context.Context {
	return core.WithSkipRunRecord(core.WithSuppressHeader(ctx))
}

func (s *server) getReport(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.requestConfig(r)
	if err != nil {
		writeError(w, err)
		return
	}
	report, _, err := core.GetReportResults(analysisContext(r.Context()), cfg, s.source)
	if err != nil {
		writeError(w, err)
		return
	}
	s.metrics.countInsights(report.Insights)
	writeJSON(w, http.StatusOK, report)
}

func (s *server) getInsights(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.requestConfig(r)
	if err != nil {
		writeError(w, err)
		return
	}
	insights, _, err := core.GetInsightsResults(analysisContext(r.Context()), cfg, s.source)
	if err != nil {
		writeError(w, err)
		return
	}
	if insights == nil {
		insights = []schema.Insight{}
	}
	s.metrics.countInsights(insights)
	writeJSON(w, http.StatusOK, insights)
}

func (s *server) getCompliance(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.requestConfig(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, _, err := core.GetComplianceResults(analysisContext(r.Context()), cfg, s.source)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) getScores(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.requestConfig(r)
	if err != nil {
		writeError(w, err)
		return
	}
	scores, _, err := core.GetScoresResults(analysisContext(r.Context()), cfg, s.source)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

func (s *server) getClassification(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	value, err := strconv.ParseFloat(vars["value"], 64)
	if err != nil {
		writeError(w, badRequest{fmt.Errorf("invalid value %q: %w", vars["value"], err)})
		return
	}
	result, err := algo.Classify(schema.Metric(vars["metric"]), value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// maxTimeseriesPoints bounds a single timeseries request.
const maxTimeseriesPoints = 366

func (s *server) getComparison(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.requestConfig(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	baseRef := q.Get("base_ref")
	if baseRef == "" {
		writeError(w, badRequest{errors.New("base_ref is required for comparison")})
		return
	}
	if err := contract.RevalidateCompare(cfg, baseRef, q.Get("target_ref"), s.now()); err != nil {
		writeError(w, badRequest{fmt.Errorf("invalid comparison parameters: %w", err)})
		return
	}
	result, _, err := core.GetCompareResults(analysisContext(r.Context()), cfg, s.source)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) getTimeseries(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.requestConfig(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	if interval := q.Get("interval"); interval != "" {
		days, err := contract.ParseIntervalDays(interval)
		if err != nil {
			writeError(w, badRequest{fmt.Errorf("invalid interval: %w", err)})
			return
		}
		cfg.TimeseriesInterval = days
	}
	cfg.TimeseriesPoints = contract.DefaultPoints
	if p := q.Get("points"); p != "" {
		points, err := strconv.Atoi(p)
		if err != nil || points < 1 || points > maxTimeseriesPoints {
			writeError(w, badRequest{fmt.Errorf("points must be between 1 and %d (received %q)", maxTimeseriesPoints, p)})
			return
		}
		cfg.TimeseriesPoints = points
	}
	result, _, err := core.GetTimeseriesResults(analysisContext(r.Context()), cfg, s.source)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// getCheck answers 200 whether or not the gate passes; the body carries the verdict.
func (s *server) getCheck(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.requestConfig(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if t := r.URL.Query().Get("effectiveness_threshold"); t != "" {
		threshold, err := strconv.ParseFloat(t, 64)
		if err != nil || threshold < 0 || threshold > 100 {
			writeError(w, badRequest{fmt.Errorf("effectiveness_threshold must be between 0 and 100 (received %q)", t)})
			return
		}
		cfg.EffectivenessThreshold = threshold
	}
	result, _, err := core.GetCheckResults(analysisContext(r.Context()), cfg, s.source)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
