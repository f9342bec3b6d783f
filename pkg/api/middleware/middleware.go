// Package middleware provides HTTP middleware for the GraphQL server.
package middleware

import (
	"net"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/hotschema/internal/logger"
	"github.com/marmos91/hotschema/internal/telemetry"
)

// LogContext attaches a logger.LogContext carrying the request ID, client
// IP, trace IDs and serving generation, so handler logs can be correlated.
// Must run after chi's RequestID and RealIP.
func LogContext(generation uint64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			lc := logger.NewLogContext(chimw.GetReqID(ctx), clientIP(r.RemoteAddr), generation)
			lc = lc.WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
			next.ServeHTTP(w, r.WithContext(logger.WithContext(ctx, lc)))
		})
	}
}

// RequestLogger logs each request using the internal logger.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (DEBUG level, WARN for 5xx): status, bytes, duration
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		logger.DebugCtx(ctx, "HTTP request started",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			logger.KeyStatus, ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.DurationMs(time.Since(start)),
		}
		if ww.Status() >= http.StatusInternalServerError {
			logger.WarnCtx(ctx, "HTTP request failed", args...)
			return
		}
		logger.DebugCtx(ctx, "HTTP request completed", args...)
	})
}

// MaxBodySize caps request bodies at limit bytes. Reads past the limit
// fail with *http.MaxBytesError.
func MaxBodySize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
