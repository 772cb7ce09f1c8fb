// Package api serves the therapy analysis over HTTP for dashboard front ends.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sleepdata/cpapinsight/internal/contract"
)

// RequestIDHeader carries the correlation ID of a request.
const RequestIDHeader = "X-Request-ID"

// NewRouter builds the API routes. Every route is instrumented with metrics
// and answers with an X-Request-ID header.
func NewRouter(cfg *contract.Config, source contract.SessionSource, metrics *Metrics) *mux.Router {
	s := &server{baseCfg: cfg, source: source, metrics: metrics, now: time.Now}

	r := mux.NewRouter()
	r.Use(requestIDMiddleware, metrics.middleware)

	r.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/report", s.getReport).Methods(http.MethodGet)
	v1.HandleFunc("/insights", s.getInsights).Methods(http.MethodGet)
	v1.HandleFunc("/compliance", s.getCompliance).Methods(http.MethodGet)
	v1.HandleFunc("/scores", s.getScores).Methods(http.MethodGet)
	v1.HandleFunc("/compare", s.getComparison).Methods(http.MethodGet)
	v1.HandleFunc("/timeseries", s.getTimeseries).Methods(http.MethodGet)
	v1.HandleFunc("/check", s.getCheck).Methods(http.MethodGet)
	v1.HandleFunc("/classify/{metric}/{value}", s.getClassification).Methods(http.MethodGet)
	return r
}

// NewHandler wraps the router with panic recovery, CORS and combined access logs.
func NewHandler(router http.Handler, logOut io.Writer) http.Handler {
	h := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(router)
	h = handlers.CORS(
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", RequestIDHeader}),
		handlers.ExposedHeaders([]string{RequestIDHeader}),
	)(h)
	return handlers.CombinedLoggingHandler(logOut, h)
}

// Serve runs the API on cfg.ListenAddr until ctx is cancelled.
func Serve(ctx context.Context, cfg *contract.Config, source contract.SessionSource, logOut io.Writer) error {
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           NewHandler(NewRouter(cfg, source, NewMetrics()), logOut),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (m *Metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		timer := prometheus.NewTimer(m.RequestDuration.WithLabelValues(route, r.Method))
		defer timer.ObserveDuration()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.RequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
	})
}
