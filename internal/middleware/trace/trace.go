package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// ContextKey type for context keys.
type ContextKey string

const (
	// RequestIDKey is the context key for the request ID.
	RequestIDKey ContextKey = "request_id"
)

// RequestLogger receives the request lifecycle events the middleware
// observes. The log package's StructuredLogger satisfies it.
type RequestLogger interface {
	LogHTTPStart(ctx context.Context, r *http.Request, clientIP string)
	LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string)
}

// Middleware tags each request with an ID, logs its lifecycle and keeps
// request counters.
type Middleware struct {
	extractIP   func(*http.Request) string
	logger      RequestLogger
	requests    int64
	totalMicros int64
}

// Metrics reports request counters.
type Metrics struct {
	TotalRequests       int64
	AverageResponseTime int64 // microseconds
}

// NewMiddleware creates a trace middleware. A nil logger logs through
// package slog.
func NewMiddleware(extractIP func(*http.Request) string, logger RequestLogger) *Middleware {
	if logger == nil {
		logger = slogRequestLogger{}
	}
	return &Middleware{
		extractIP: extractIP,
		logger:    logger,
	}
}

// Middleware returns HTTP middleware for request tracing.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		requestID := GenerateRequestID()
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		r = r.WithContext(ctx)

		m.logger.LogHTTPStart(ctx, r, clientIP)
		atomic.AddInt64(&m.requests, 1)

		// Capture the status code for the completion log line.
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		atomic.AddInt64(&m.totalMicros, duration.Microseconds())

		m.logger.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// GenerateRequestID creates a unique request ID for tracing.
func GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Timestamp fallback if random fails.
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// GetRequestID extracts the request ID from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetMetrics returns current metrics. The average is over all requests
// since start.
func (m *Middleware) GetMetrics() Metrics {
	requests := atomic.LoadInt64(&m.requests)
	total := atomic.LoadInt64(&m.totalMicros)

	var avg int64
	if requests > 0 {
		avg = total / requests
	}
	return Metrics{
		TotalRequests:       requests,
		AverageResponseTime: avg,
	}
}

// slogRequestLogger is the fallback lifecycle logger.
type slogRequestLogger struct{}

func (slogRequestLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	slog.InfoContext(ctx, "HTTP request started",
		"request_id", GetRequestID(ctx),
		"method", r.Method,
		"path", r.URL.Path,
		"query", r.URL.RawQuery,
		"client_ip", clientIP,
		"user_agent", r.Header.Get("User-Agent"))
}

func (slogRequestLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	slog.Log(ctx, level, "HTTP request completed",
		"request_id", GetRequestID(ctx),
		"method", r.Method,
		"path", r.URL.Path,
		"status_code", statusCode,
		"duration_ms", durationMs,
		"client_ip", clientIP,
		"success", statusCode < 400)
}
