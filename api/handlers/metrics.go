package handlers

import (
	"net/http"

	"github.com/linesmerrill/donation-checkin-api/api"
)

// formatRouteMetrics converts duration fields to milliseconds for JSON serialization
func formatRouteMetrics(routes []api.RouteMetrics) []map[string]interface{} {
	result := make([]map[string]interface{}, len(routes))
	for i, route := range routes {
		result[i] = map[string]interface{}{
			"method":      route.Method,
			"path":        route.Path,
			"count":       route.Count,
			"errorCount":  route.ErrorCount,
			"avgTime":     route.AvgTime.Milliseconds(),
			"minTime":     route.MinTime.Milliseconds(),
			"maxTime":     route.MaxTime.Milliseconds(),
			"lastRequest": route.LastRequest,
		}
	}
	return result
}

// formatTraces converts trace durations to milliseconds
func formatTraces(traces []api.RequestTrace) []map[string]interface{} {
	result := make([]map[string]interface{}, len(traces))
	for i, trace := range traces {
		result[i] = map[string]interface{}{
			"requestId":     trace.RequestID,
			"method":        trace.Method,
			"path":          trace.Path,
			"status":        trace.Status,
			"startTime":     trace.StartTime,
			"totalDuration": trace.TotalDuration.Milliseconds(),
			"error":         trace.Error,
		}
	}
	return result
}

// MetricsHandler serves request and verification outcome counters
type MetricsHandler struct {
	Metrics *api.MetricsCollector
}

// GetMetricsHandler returns the summary, per route metrics and recent traces
func (m MetricsHandler) GetMetricsHandler(w http.ResponseWriter, r *http.Request) {
	metrics := m.Metrics
	if metrics == nil {
		metrics = api.GetMetrics()
	}
	limit := queryInt(r, "limit", 20)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary":      metrics.GetSummary(),
		"routes":       formatRouteMetrics(metrics.GetRouteMetrics()),
		"recentTraces": formatTraces(metrics.GetTraces(limit)),
	})
}
