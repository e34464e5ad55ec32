package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"capext/internal/core"
	applog "capext/internal/log"
	"capext/internal/runs"
)

type indexView struct {
	DefaultDate string
	MaxUploadMB int64
	Runs        []core.Run
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.startedAt).String(),
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(health)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.ready == nil:
		checks["run_store"] = "ok"
	default:
		if err := s.ready(ctx); err != nil {
			checks["run_store"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["run_store"] = "ok"
		}
	}

	checks["cache"] = map[string]interface{}{
		"result_entries": s.results.Size(),
		"status":         "ok",
	}
	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(response)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.tracer.GetMetrics()
	uptime := time.Since(s.appMetrics.startedAt)

	w.WriteHeader(http.StatusOK)

	counter := func(name, help string, value int64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s counter\n", name)
		fmt.Fprintf(w, "%s %d\n\n", name, value)
	}
	gauge := func(name, help string, value int64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", name)
		fmt.Fprintf(w, "%s %d\n\n", name, value)
	}

	counter("http_requests_total", "Total number of HTTP requests", traceMetrics.TotalRequests)
	counter("http_requests_failed_total", "HTTP requests answered with a 4xx or 5xx status", traceMetrics.FailedRequests)
	counter("projections_total", "Total number of rosters projected", s.appMetrics.projections.Load())
	counter("result_cache_hits_total", "Downloads served from the result cache", s.appMetrics.cacheHits.Load())
	counter("result_cache_misses_total", "Downloads loaded from the run store", s.appMetrics.cacheMisses.Load())
	counter("rate_limit_hits_total", "Total rate limit hits", s.rateLimiter.Rejected())
	counter("suspicious_requests_total", "Total suspicious requests detected", s.detector.SuspiciousRequests())
	gauge("result_cache_entries", "Current result cache entries", int64(s.results.Size()))
	gauge("active_rate_limit_clients", "Currently tracked rate limit clients", int64(s.rateLimiter.ActiveClients()))
	gauge("uptime_seconds", "Application uptime in seconds", int64(uptime.Seconds()))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	logger := applog.FromContext(r.Context())
	if s.templates == nil {
		logger.ErrorContext(r.Context(), "Templates not loaded", applog.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	recent, err := s.projector.RecentRuns(r.Context(), runs.DefaultListLimit)
	if err != nil {
		logger.ErrorContext(r.Context(), "Run history error", applog.FieldError, err)
	}

	data := indexView{
		DefaultDate: firstOfNextMonth(time.Now()).Format(time.DateOnly),
		MaxUploadMB: s.maxUploadBytes >> 20,
		Runs:        recent,
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", data); err != nil {
		logger.LogError(r.Context(), "Index template execution failed", err, applog.OpRender, nil)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleRuns renders the run history partial.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	logger := applog.FromContext(r.Context())
	if s.templates == nil {
		InternalServerError("Templates not loaded").Write(w)
		return
	}

	recent, err := s.projector.RecentRuns(r.Context(), runs.DefaultListLimit)
	if err != nil {
		logger.ErrorContext(r.Context(), "Run history error", applog.FieldError, err)
		InternalServerError("Could not load the run history.").Write(w)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "runs.html", recent); err != nil {
		logger.LogError(r.Context(), "Runs template execution failed", err, applog.OpRender, nil)
		InternalServerError("Could not render the run history.").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(buf.String()).Write(w)
}

func firstOfNextMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.Local)
}
