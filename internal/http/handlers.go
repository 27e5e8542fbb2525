package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"carteira/internal/sheets"
)

// readyzTimeout bounds the readiness probe's backend check.
const readyzTimeout = 3 * time.Second

// handleHealthz reports process liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReadyz reports whether the server can actually serve pages: the
// backend answers and the templates parsed.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readyzTimeout)
	defer cancel()

	checks := make(map[string]string)
	status := http.StatusOK

	if _, err := s.datasets.Load(ctx, sheets.DatasetOverview); err != nil {
		checks["datasets"] = err.Error()
		status = http.StatusServiceUnavailable
	} else {
		checks["datasets"] = "ok"
	}

	if s.templates.Lookup("dashboard_page") == nil {
		checks["templates"] = "missing"
		status = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	overall := "ready"
	if status != http.StatusOK {
		overall = "unavailable"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": overall,
		"checks": checks,
	})
}

// handleMetrics exposes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	traceMetrics := s.tracer.GetMetrics()
	rateMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	fmt.Fprintf(w, "# HELP carteira_http_requests_total Total HTTP requests served.\n")
	fmt.Fprintf(w, "# TYPE carteira_http_requests_total counter\n")
	fmt.Fprintf(w, "carteira_http_requests_total %d\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP carteira_http_request_duration_avg_microseconds Average request duration.\n")
	fmt.Fprintf(w, "# TYPE carteira_http_request_duration_avg_microseconds gauge\n")
	fmt.Fprintf(w, "carteira_http_request_duration_avg_microseconds %d\n", traceMetrics.AverageResponseTime)

	fmt.Fprintf(w, "# HELP carteira_simulations_total Goal simulations completed.\n")
	fmt.Fprintf(w, "# TYPE carteira_simulations_total counter\n")
	fmt.Fprintf(w, "carteira_simulations_total %d\n", atomic.LoadInt64(&s.simulationsRun))

	fmt.Fprintf(w, "# HELP carteira_chart_cache_hits_total Chart payloads served from cache.\n")
	fmt.Fprintf(w, "# TYPE carteira_chart_cache_hits_total counter\n")
	fmt.Fprintf(w, "carteira_chart_cache_hits_total %d\n", atomic.LoadInt64(&s.chartHits))

	fmt.Fprintf(w, "# HELP carteira_chart_cache_misses_total Chart payloads built from scratch.\n")
	fmt.Fprintf(w, "# TYPE carteira_chart_cache_misses_total counter\n")
	fmt.Fprintf(w, "carteira_chart_cache_misses_total %d\n", atomic.LoadInt64(&s.chartMisses))

	fmt.Fprintf(w, "# HELP carteira_chart_cache_entries Chart payloads currently cached.\n")
	fmt.Fprintf(w, "# TYPE carteira_chart_cache_entries gauge\n")
	fmt.Fprintf(w, "carteira_chart_cache_entries %d\n", s.chartCache.Size())

	fmt.Fprintf(w, "# HELP carteira_dataset_cache_entries Datasets currently cached.\n")
	fmt.Fprintf(w, "# TYPE carteira_dataset_cache_entries gauge\n")
	fmt.Fprintf(w, "carteira_dataset_cache_entries %d\n", s.datasets.Cache().Size())

	fmt.Fprintf(w, "# HELP carteira_rate_limit_denied_total Requests denied by the rate limiter.\n")
	fmt.Fprintf(w, "# TYPE carteira_rate_limit_denied_total counter\n")
	fmt.Fprintf(w, "carteira_rate_limit_denied_total %d\n", rateMetrics.Denied)

	fmt.Fprintf(w, "# HELP carteira_rate_limit_active_clients Clients currently tracked by the rate limiter.\n")
	fmt.Fprintf(w, "# TYPE carteira_rate_limit_active_clients gauge\n")
	fmt.Fprintf(w, "carteira_rate_limit_active_clients %d\n", rateMetrics.ActiveClients)

	fmt.Fprintf(w, "# HELP carteira_suspicious_requests_total Requests flagged by the security detector.\n")
	fmt.Fprintf(w, "# TYPE carteira_suspicious_requests_total counter\n")
	fmt.Fprintf(w, "carteira_suspicious_requests_total %d\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP carteira_uptime_seconds Seconds since the server started.\n")
	fmt.Fprintf(w, "# TYPE carteira_uptime_seconds gauge\n")
	fmt.Fprintf(w, "carteira_uptime_seconds %d\n", int64(time.Since(s.startedAt).Seconds()))
}
