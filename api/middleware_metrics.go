package api

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SlowRequestThreshold is the duration above which a request is logged as slow
const SlowRequestThreshold = time.Second

// MetricsMiddleware tracks request timing and tags every response with a request id
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/api/v1/metrics" || path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		startTime := time.Now()
		requestID := uuid.New().String()
		w.Header().Set("X-Request-ID", requestID)

		wrappedWriter := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(wrappedWriter, r)

		totalDuration := time.Since(startTime)
		trace := RequestTrace{
			RequestID:     requestID,
			Method:        r.Method,
			Path:          path,
			Status:        wrappedWriter.statusCode,
			StartTime:     startTime,
			TotalDuration: totalDuration,
		}
		if wrappedWriter.statusCode >= 400 {
			trace.Error = http.StatusText(wrappedWriter.statusCode)
		}
		GetMetrics().RecordTrace(trace)

		if totalDuration > SlowRequestThreshold {
			zap.S().Warnw("Slow request detected",
				"requestId", requestID,
				"method", r.Method,
				"path", path,
				"duration", totalDuration,
				"status", wrappedWriter.statusCode,
			)
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
// It implements http.Hijacker to support WebSocket upgrades
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker to support WebSocket upgrades
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
}
