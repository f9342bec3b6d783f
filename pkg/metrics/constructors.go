package metrics

import (
	"github.com/marmos91/hotschema/pkg/api/handlers"
	"github.com/marmos91/hotschema/pkg/lifecycle"
)

// NewLifecycleMetrics creates Prometheus-backed lifecycle and poll metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called) or no
// implementation is linked in. Callers pass the nil on to the orchestrator,
// which then records nothing.
//
// Example usage:
//
//	metrics.InitRegistry()
//	orch, err := lifecycle.New(lifecycle.Deps{..., Metrics: metrics.NewLifecycleMetrics()}, opts)
func NewLifecycleMetrics() lifecycle.Metrics {
	if !IsEnabled() || newLifecycleMetrics == nil {
		return nil
	}
	return newLifecycleMetrics()
}

// NewRequestMetrics creates Prometheus-backed GraphQL request metrics, or
// nil when metrics are disabled.
func NewRequestMetrics() handlers.RequestMetrics {
	if !IsEnabled() || newRequestMetrics == nil {
		return nil
	}
	return newRequestMetrics()
}

// Implemented in pkg/metrics/prometheus. This indirection avoids import
// cycles while keeping the API clean.
var (
	newLifecycleMetrics func() lifecycle.Metrics
	newRequestMetrics   func() handlers.RequestMetrics
)

// RegisterLifecycleMetricsConstructor registers the Prometheus lifecycle
// metrics constructor. Called by pkg/metrics/prometheus during package
// initialization.
func RegisterLifecycleMetricsConstructor(constructor func() lifecycle.Metrics) {
	newLifecycleMetrics = constructor
}

// RegisterRequestMetricsConstructor registers the Prometheus GraphQL
// request metrics constructor.
func RegisterRequestMetricsConstructor(constructor func() handlers.RequestMetrics) {
	newRequestMetrics = constructor
}
