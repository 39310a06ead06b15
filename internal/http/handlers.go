package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"rewards/internal/records"
)

var errTemplatesNotLoaded = errors.New("templates not loaded")

// appMetrics counts domain events for /metrics.
type appMetrics struct {
	uptime          time.Time
	entriesRecorded int64
	tablesReplaced  int64
	resets          int64
	rejected        int64
	writeFailures   int64
}

func newAppMetrics() *appMetrics {
	return &appMetrics{uptime: time.Now()}
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.uptime).Round(time.Second).String(),
	})
}

// handleReady checks templates and the primary backend. An unreadable
// table is reported as degraded but does not fail readiness, since reads
// fall back to an empty table.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: " + errTemplatesNotLoaded.Error()
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	backend := map[string]any{"type": s.opts.Backend}
	if s.opts.Ready != nil {
		if err := s.opts.Ready(ctx); err != nil {
			backend["status"] = fmt.Sprintf("failed: %v", err)
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			backend["status"] = "ok"
		}
	}
	snap := s.entries.Snapshot(ctx)
	backend["table"] = string(snap.Outcome)
	backend["rows"] = len(snap.Table)
	backend["stale_week_starts"] = len(snap.Table.Inconsistent())
	if snap.Outcome == records.Unreadable && status == "ready" {
		status = "degraded"
	}
	checks["backend"] = backend

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in Prometheus text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	tm := s.traceMiddleware.GetMetrics()
	rl := s.rateLimiter.GetMetrics()

	metric := func(name, kind, help string, value int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %d\n", name, help, name, kind, name, value)
	}

	metric("http_requests_total", "counter", "Total number of HTTP requests", tm.TotalRequests)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", tm.ErrorResponses)
	metric("http_response_time_avg_microseconds", "gauge", "Mean response time", tm.AverageResponseTime)
	metric("rate_limit_hits_total", "counter", "Writes rejected by the rate limiter", rl.TotalHits)
	metric("rate_limit_clients", "gauge", "Clients tracked by the rate limiter", rl.ClientCount)
	metric("entries_recorded_total", "counter", "Sessions recorded through the form", atomic.LoadInt64(&s.metrics.entriesRecorded))
	metric("tables_replaced_total", "counter", "Bulk-edit saves", atomic.LoadInt64(&s.metrics.tablesReplaced))
	metric("table_resets_total", "counter", "Reset actions", atomic.LoadInt64(&s.metrics.resets))
	metric("submissions_rejected_total", "counter", "Submissions rejected by validation", atomic.LoadInt64(&s.metrics.rejected))
	metric("write_failures_total", "counter", "Saves that failed in the backend", atomic.LoadInt64(&s.metrics.writeFailures))
	if s.opts.CacheStats != nil {
		cs := s.opts.CacheStats()
		metric("table_cache_hits_total", "counter", "Table cache hits", int64(cs.Hits))
		metric("table_cache_misses_total", "counter", "Table cache misses", int64(cs.Misses))
		metric("table_cache_entries", "gauge", "Tables currently cached", int64(cs.Size))
	}
	metric("uptime_seconds", "gauge", "Seconds since start", int64(time.Since(s.metrics.uptime).Seconds()))
}
