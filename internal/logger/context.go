package logger

import (
	"context"
	"log/slog"
)

type logContextKey struct{}

// LogContext carries correlation fields for one request or one generation.
// The Ctx logging functions add its non-empty fields to every record.
type LogContext struct {
	TraceID    string
	SpanID     string
	RequestID  string
	Operation  string // GraphQL operation name
	ClientIP   string // without port
	Generation uint64
}

// WithContext returns ctx carrying lc.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey{}, lc)
}

// FromContext returns the LogContext in ctx, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey{}).(*LogContext)
	return lc
}

// NewLogContext returns a LogContext for a request served by generation.
// Generation-scoped work passes empty requestID and clientIP.
func NewLogContext(requestID, clientIP string, generation uint64) *LogContext {
	return &LogContext{RequestID: requestID, ClientIP: clientIP, Generation: generation}
}

// Clone returns a copy, or nil for a nil receiver.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithOperation returns a copy naming the GraphQL operation.
func (lc *LogContext) WithOperation(operation string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.Operation = operation
	}
	return c
}

// WithTrace returns a copy carrying the span in which the request runs.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.TraceID, c.SpanID = traceID, spanID
	}
	return c
}

func (lc *LogContext) attrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, 6)
	for _, f := range []struct{ key, val string }{
		{KeyTraceID, lc.TraceID},
		{KeySpanID, lc.SpanID},
		{KeyRequestID, lc.RequestID},
	} {
		if f.val != "" {
			attrs = append(attrs, slog.String(f.key, f.val))
		}
	}
	if lc.Generation != 0 {
		attrs = append(attrs, Generation(lc.Generation))
	}
	if lc.Operation != "" {
		attrs = append(attrs, slog.String(KeyOperation, lc.Operation))
	}
	if lc.ClientIP != "" {
		attrs = append(attrs, slog.String(KeyClientIP, lc.ClientIP))
	}
	return attrs
}
