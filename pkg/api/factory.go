package api

import (
	"context"
	"fmt"

	"github.com/marmos91/hotschema/pkg/api/handlers"
	"github.com/marmos91/hotschema/pkg/graph"
	"github.com/marmos91/hotschema/pkg/lifecycle"
	"github.com/marmos91/hotschema/pkg/schema"
)

// Factory starts one Server per generation.
type Factory struct {
	config  Config
	metrics handlers.RequestMetrics
}

// NewFactory returns a lifecycle.ServerFactory. metrics may be nil.
func NewFactory(config Config, metrics handlers.RequestMetrics) *Factory {
	config.applyDefaults()
	return &Factory{config: config, metrics: metrics}
}

// Start implements lifecycle.ServerFactory. conn must be able to run
// Cypher (graph.Runner); if it can also Ping, readiness uses it.
func (f *Factory) Start(ctx context.Context, s *schema.Schema, conn lifecycle.Connection) (lifecycle.Listener, error) {
	runner, ok := conn.(graph.Runner)
	if !ok {
		return nil, fmt.Errorf("connection %s (%T) cannot run queries", conn.ID(), conn)
	}
	pinger, _ := conn.(handlers.Pinger)

	generation, _ := lifecycle.GenerationFromContext(ctx)

	executor := graph.NewExecutor(s, runner, graph.Options{
		Introspection: f.config.Introspection,
		DefaultLimit:  f.config.DefaultLimit,
	})

	router := NewRouter(RouterConfig{
		Executor:     executor,
		Pinger:       pinger,
		Generation:   generation,
		MaxBodySize:  f.config.MaxBodySize,
		QueryTimeout: f.config.QueryTimeout,
		Metrics:      f.metrics,
	})

	srv := NewServer(f.config, router)
	if err := srv.Listen(ctx); err != nil {
		return nil, err
	}
	return srv, nil
}
