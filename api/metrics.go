package api

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// RequestTrace tracks timing for a single request
type RequestTrace struct {
	RequestID     string        `json:"requestId"`
	Method        string        `json:"method"`
	Path          string        `json:"path"`
	Status        int           `json:"status"`
	StartTime     time.Time     `json:"startTime"`
	TotalDuration time.Duration `json:"totalDuration"`
	Error         string        `json:"error,omitempty"`
}

// RouteMetrics aggregates metrics for a specific route
type RouteMetrics struct {
	Method      string        `json:"method"`
	Path        string        `json:"path"`
	Count       int64         `json:"count"`
	ErrorCount  int64         `json:"errorCount"`
	TotalTime   time.Duration `json:"totalTime"`
	AvgTime     time.Duration `json:"avgTime"`
	MinTime     time.Duration `json:"minTime"`
	MaxTime     time.Duration `json:"maxTime"`
	LastRequest time.Time     `json:"lastRequest"`
}

// MetricsCollector collects request metrics and verification outcome counters
type MetricsCollector struct {
	mu            sync.RWMutex
	traces        []RequestTrace
	maxTraces     int
	routeMetrics  map[string]*RouteMetrics
	outcomes      map[string]int64
	startedAt     time.Time
	totalRequests int64
	totalErrors   int64
	traceChan     chan RequestTrace
}

var (
	globalMetrics *MetricsCollector
	metricsOnce   sync.Once
)

// NewMetricsCollector returns a collector keeping at most maxTraces recent traces
func NewMetricsCollector(maxTraces int) *MetricsCollector {
	return &MetricsCollector{
		traces:       make([]RequestTrace, 0, maxTraces),
		maxTraces:    maxTraces,
		routeMetrics: make(map[string]*RouteMetrics),
		outcomes:     make(map[string]int64),
		startedAt:    time.Now(),
		traceChan:    make(chan RequestTrace, 1000),
	}
}

// GetMetrics returns the process wide collector, starting its trace processor on first use
func GetMetrics() *MetricsCollector {
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsCollector(1000)
		go globalMetrics.processTraces()
	})
	return globalMetrics
}

// RecordTrace queues a trace without blocking, it is dropped when the queue is full
func (mc *MetricsCollector) RecordTrace(trace RequestTrace) {
	select {
	case mc.traceChan <- trace:
	default:
	}
}

// RecordOutcome counts one verification outcome such as verified or not_found
func (mc *MetricsCollector) RecordOutcome(outcome string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.outcomes[outcome]++
}

func (mc *MetricsCollector) processTraces() {
	for trace := range mc.traceChan {
		mc.processTrace(trace)
	}
}

func (mc *MetricsCollector) processTrace(trace RequestTrace) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if len(mc.traces) >= mc.maxTraces && len(mc.traces) > 0 {
		mc.traces = mc.traces[1:]
	}
	mc.traces = append(mc.traces, trace)

	normalizedPath := normalizeRoutePath(trace.Path)
	routeKey := trace.Method + " " + normalizedPath

	metrics, exists := mc.routeMetrics[routeKey]
	if !exists {
		metrics = &RouteMetrics{
			Method:  trace.Method,
			Path:    normalizedPath,
			MinTime: trace.TotalDuration,
		}
		mc.routeMetrics[routeKey] = metrics
	}

	metrics.Count++
	metrics.TotalTime += trace.TotalDuration
	metrics.AvgTime = metrics.TotalTime / time.Duration(metrics.Count)
	metrics.LastRequest = trace.StartTime

	if trace.TotalDuration < metrics.MinTime {
		metrics.MinTime = trace.TotalDuration
	}
	if trace.TotalDuration > metrics.MaxTime {
		metrics.MaxTime = trace.TotalDuration
	}

	if trace.Status >= 400 {
		metrics.ErrorCount++
		mc.totalErrors++
	}
	mc.totalRequests++
}

// GetTraces returns up to limit of the most recent traces, newest first
func (mc *MetricsCollector) GetTraces(limit int) []RequestTrace {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	var out []RequestTrace
	for i := len(mc.traces) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, mc.traces[i])
	}
	return out
}

// GetRouteMetrics returns a copy of the per route metrics sorted by request count
func (mc *MetricsCollector) GetRouteMetrics() []RouteMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	routes := make([]RouteMetrics, 0, len(mc.routeMetrics))
	for _, m := range mc.routeMetrics {
		routes = append(routes, *m)
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Count == routes[j].Count {
			return routes[i].Method+routes[i].Path < routes[j].Method+routes[j].Path
		}
		return routes[i].Count > routes[j].Count
	})
	return routes
}

// GetSummary returns request totals and verification outcome counts
func (mc *MetricsCollector) GetSummary() map[string]interface{} {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	outcomes := make(map[string]int64, len(mc.outcomes))
	for k, v := range mc.outcomes {
		outcomes[k] = v
	}
	errorRate := 0.0
	if mc.totalRequests > 0 {
		errorRate = float64(mc.totalErrors) / float64(mc.totalRequests)
	}
	return map[string]interface{}{
		"totalRequests": mc.totalRequests,
		"totalErrors":   mc.totalErrors,
		"errorRate":     errorRate,
		"uptime":        time.Since(mc.startedAt).Round(time.Second).String(),
		"outcomes":      outcomes,
	}
}

var (
	objectIDSegment = regexp.MustCompile(`/[0-9a-fA-F]{24}(/|$)`)
	tokenSegment    = regexp.MustCompile(`^(/api/v1/verify)/[^/]+$`)
)

// normalizeRoutePath groups paths by replacing ids and tokens with placeholders
//   - /api/v1/registrations/507f1f77bcf86cd799439011/qr -> /api/v1/registrations/{id}/qr
//   - /api/v1/verify/AB12CD -> /api/v1/verify/{token}
func normalizeRoutePath(path string) string {
	path = objectIDSegment.ReplaceAllString(path, "/{id}$1")
	path = tokenSegment.ReplaceAllString(path, "$1/{token}")
	path = strings.ReplaceAll(path, "//", "/")
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}
