package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

type appMetrics struct {
	started         time.Time
	simulations     atomic.Int64
	savingsCreated  atomic.Int64
	savingsUpdated  atomic.Int64
	savingsDeleted  atomic.Int64
	rateUnavailable atomic.Int64
}

func newAppMetrics() *appMetrics {
	return &appMetrics{started: time.Now()}
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady runs every registered dependency check with a shared deadline.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	s.mu.RLock()
	checks := append([]readinessCheck(nil), s.checks...)
	s.mu.RUnlock()

	status := "ready"
	httpStatus := http.StatusOK
	results := make(map[string]string, len(checks)+1)

	if _, _, err := s.simulator.CurrentRates(ctx); err != nil {
		results["rates"] = fmt.Sprintf("failed: %v", err)
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		results["rates"] = "ok"
	}

	for _, c := range checks {
		if err := c.check(ctx); err != nil {
			results[c.name] = fmt.Sprintf("failed: %v", err)
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
			continue
		}
		results[c.name] = "ok"
	}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    results,
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()

	write := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}

	write("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	write("http_client_errors_total", "counter", "Responses with a 4xx status", traceMetrics.ClientErrors)
	write("http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	write("http_request_duration_avg_microseconds", "gauge", "Average request duration", traceMetrics.AverageResponseTime)
	write("simulations_total", "counter", "Projections served by the simulation endpoints", s.appMetrics.simulations.Load())
	write("savings_created_total", "counter", "Caixinhas created", s.appMetrics.savingsCreated.Load())
	write("savings_updated_total", "counter", "Caixinhas updated", s.appMetrics.savingsUpdated.Load())
	write("savings_deleted_total", "counter", "Caixinhas deleted", s.appMetrics.savingsDeleted.Load())
	write("rates_unavailable_total", "counter", "Requests answered 503 because rates were unavailable", s.appMetrics.rateUnavailable.Load())
	write("rate_limit_rejected_total", "counter", "Requests rejected by the rate limiter", rateLimitMetrics.Rejected)
	write("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	write("suspicious_requests_total", "counter", "Suspicious requests detected", securityMetrics.SuspiciousRequests)

	s.mu.RLock()
	for _, g := range s.gauges {
		write(g.name, "gauge", g.help, g.value())
	}
	s.mu.RUnlock()

	write("uptime_seconds", "gauge", "Application uptime in seconds", fmt.Sprintf("%.0f", time.Since(s.appMetrics.started).Seconds()))
}
