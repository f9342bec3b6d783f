package telemetry

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPHandler wraps h so each request gets a server span continuing any
// inbound traceparent. Health probes are not traced.
func HTTPHandler(h http.Handler, operation string) http.Handler {
	return otelhttp.NewHandler(h, operation,
		otelhttp.WithFilter(func(r *http.Request) bool {
			return !isProbe(r.URL.Path)
		}),
		otelhttp.WithSpanNameFormatter(func(op string, r *http.Request) string {
			return op + " " + r.Method + " " + r.URL.Path
		}),
	)
}

// HTTPTransport wraps base (http.DefaultTransport when nil) so outbound
// requests get client spans and propagate the trace context.
func HTTPTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return otelhttp.NewTransport(base,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method + " " + r.URL.Host
		}),
	)
}

func isProbe(path string) bool {
	return path == "/health" || path == "/health/" || path == "/health/ready"
}
