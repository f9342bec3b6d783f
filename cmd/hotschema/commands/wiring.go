package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/hotschema/pkg/api"
	"github.com/marmos91/hotschema/pkg/config"
	"github.com/marmos91/hotschema/pkg/lifecycle"
	"github.com/marmos91/hotschema/pkg/metrics"
	"github.com/marmos91/hotschema/pkg/schema"
	"github.com/marmos91/hotschema/pkg/source"
	"github.com/marmos91/hotschema/pkg/store/neo4j"
)

// newOrchestrator wires the configured source, schema builder, Neo4j
// connections and GraphQL servers into an orchestrator. Metrics are
// attached when the registry has been initialized.
func newOrchestrator(cfg *config.Config) (*lifecycle.Orchestrator, error) {
	fetcher, err := source.New(cfg.SourceOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create schema source: %w", err)
	}

	deps := lifecycle.Deps{
		Fetcher:     fetcher,
		Builder:     schema.NewSDLBuilder(),
		Connections: neo4jConnections(neo4j.NewFactory(cfg.Neo4jConfig())),
		Servers:     api.NewFactory(cfg.APIConfig(), metrics.NewRequestMetrics()),
		Metrics:     metrics.NewLifecycleMetrics(),
	}

	return lifecycle.New(deps, lifecycle.Options{
		PollInterval:    cfg.Poll.Interval,
		ShutdownTimeout: cfg.ShutdownTimeout,
	})
}

// neo4jConnections adapts the Neo4j factory, whose Open returns a
// concrete *neo4j.Connection, to lifecycle.ConnectionFactory.
func neo4jConnections(f *neo4j.Factory) lifecycle.ConnectionFactory {
	return lifecycle.ConnectionFactoryFunc(func(ctx context.Context) (lifecycle.Connection, error) {
		conn, err := f.Open(ctx)
		if err != nil {
			return nil, err
		}
		return conn, nil
	})
}
