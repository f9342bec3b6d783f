package logger

import (
	"log/slog"
	"time"
)

// Standard field keys for structured logging.
// Use these keys consistently so that log aggregation can follow a single
// schema generation from boot to close.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Lifecycle
	// ========================================================================
	KeyGeneration   = "generation"    // Serving generation number
	KeyGenerationID = "generation_id" // Serving generation UUID
	KeyState        = "state"         // Generation state: booting, live, draining, closed
	KeyStep         = "step"          // Boot or drain step: fetch, build, connect, listen
	KeyRestartKind  = "restart_kind"  // soft or hard

	// ========================================================================
	// Schema Source
	// ========================================================================
	KeySource      = "source"       // Source descriptor (github:owner/repo/path@ref, file:/path)
	KeyDigest      = "digest"       // Short SHA-256 of the artifact content
	KeyBytes       = "bytes"        // Artifact size in bytes
	KeyRetrievedAt = "retrieved_at" // Artifact retrieval timestamp
	KeyInterval    = "interval"     // Poll interval
	KeyPoller      = "poller"       // Poller name

	// ========================================================================
	// Backing Store
	// ========================================================================
	KeyConnectionID = "connection_id" // Connection instance identifier
	KeyURI          = "uri"           // Database URI (credentials stripped)
	KeyDatabase     = "database"      // Database name

	// ========================================================================
	// Serving
	// ========================================================================
	KeyAddr       = "addr"       // Listener address
	KeyRequestID  = "request_id" // HTTP request ID
	KeyOperation  = "operation"  // GraphQL operation name
	KeyClientIP   = "client_ip"  // Client IP address
	KeyStatus     = "status"     // HTTP status code
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
)

// ============================================================================
// Field constructors
// ============================================================================

// Generation returns a slog.Attr for a serving generation number
func Generation(n uint64) slog.Attr {
	return slog.Uint64(KeyGeneration, n)
}

// State returns a slog.Attr for a generation state
func State(s string) slog.Attr {
	return slog.String(KeyState, s)
}

// Step returns a slog.Attr for a lifecycle step
func Step(s string) slog.Attr {
	return slog.String(KeyStep, s)
}

// Source returns a slog.Attr for a schema source descriptor
func Source(s string) slog.Attr {
	return slog.String(KeySource, s)
}

// Digest returns a slog.Attr for an artifact digest, shortened to 12 chars
func Digest(d string) slog.Attr {
	if len(d) > 12 {
		d = d[:12]
	}
	return slog.String(KeyDigest, d)
}

// Interval returns a slog.Attr for a poll interval
func Interval(d time.Duration) slog.Attr {
	return slog.Duration(KeyInterval, d)
}

// ConnectionID returns a slog.Attr for a connection identifier
func ConnectionID(id string) slog.Attr {
	return slog.String(KeyConnectionID, id)
}

// Addr returns a slog.Attr for a listener address
func Addr(a string) slog.Attr {
	return slog.String(KeyAddr, a)
}

// DurationMs returns a slog.Attr for an elapsed duration in milliseconds
func DurationMs(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMs, float64(d.Microseconds())/1000.0)
}

// Err returns a slog.Attr for an error. A nil error yields an empty attr
// which handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
