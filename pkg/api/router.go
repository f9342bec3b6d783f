package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/hotschema/internal/telemetry"
	"github.com/marmos91/hotschema/pkg/api/handlers"
	apimw "github.com/marmos91/hotschema/pkg/api/middleware"
	"github.com/marmos91/hotschema/pkg/graph"
)

// RouterConfig holds what one generation's router serves.
type RouterConfig struct {
	Executor   *graph.Executor
	Pinger     handlers.Pinger
	Generation uint64

	MaxBodySize  int64
	QueryTimeout time.Duration

	// Metrics is optional
	Metrics handlers.RequestMetrics
}

// NewRouter creates and configures the chi router with all middleware and routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Log context carrying request ID, client IP and generation
//   - Request logging using the internal logger
//   - Panic recovery to prevent server crashes
//   - Request timeout to prevent hung requests
//   - An OpenTelemetry server span around everything but probes
//
// Routes:
//   - POST /graphql, GET /graphql - GraphQL queries
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe
//   - GET /health/schema - Serving schema
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apimw.LogContext(cfg.Generation))
	r.Use(apimw.RequestLogger)
	r.Use(middleware.Recoverer)
	if cfg.QueryTimeout > 0 {
		r.Use(middleware.Timeout(cfg.QueryTimeout))
	}

	graphqlHandler := handlers.NewGraphQLHandler(cfg.Executor, cfg.Metrics)
	r.Route("/graphql", func(r chi.Router) {
		r.With(apimw.MaxBodySize(cfg.MaxBodySize)).Post("/", graphqlHandler.ServeHTTP)
		r.Get("/", graphqlHandler.ServeHTTP)
	})

	healthHandler := handlers.NewHealthHandler(cfg.Pinger, cfg.Executor.Schema(), cfg.Generation)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
		r.Get("/schema", healthHandler.Schema)
	})

	// Root redirect to the GraphQL endpoint for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/graphql", http.StatusTemporaryRedirect)
	})

	return telemetry.HTTPHandler(r, "hotschema")
}
