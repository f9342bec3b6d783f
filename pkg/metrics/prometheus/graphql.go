package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/hotschema/pkg/api/handlers"
	"github.com/marmos91/hotschema/pkg/metrics"
)

func init() {
	metrics.RegisterRequestMetricsConstructor(func() handlers.RequestMetrics {
		return NewGraphQLMetrics(metrics.GetRegistry())
	})
}

// GraphQLMetrics records GraphQL requests. Safe on a nil receiver.
type GraphQLMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewGraphQLMetrics creates and registers request metrics with reg.
func NewGraphQLMetrics(reg prometheus.Registerer) *GraphQLMetrics {
	m := &GraphQLMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotschema",
			Subsystem: "graphql",
			Name:      "requests_total",
			Help:      "GraphQL requests by outcome",
		}, []string{"outcome"}), // success, error, invalid
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hotschema",
			Subsystem: "graphql",
			Name:      "request_duration_milliseconds",
			Help:      "GraphQL request duration in milliseconds",
			Buckets: []float64{
				1,  // validation failures
				5,  // single node lookups
				10,
				25,
				50,
				100,
				250,
				500, // deep relationship traversals
				1000,
				5000,
			},
		}, []string{"outcome"}),
	}

	if reg != nil {
		m.Requests = registerOrReuse(reg, m.Requests).(*prometheus.CounterVec)
		m.Duration = registerOrReuse(reg, m.Duration).(*prometheus.HistogramVec)
	}
	return m
}

// ObserveGraphQLRequest implements handlers.RequestMetrics.
func (m *GraphQLMetrics) ObserveGraphQLRequest(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(outcome).Inc()
	m.Duration.WithLabelValues(outcome).Observe(float64(d.Microseconds()) / 1000)
}
