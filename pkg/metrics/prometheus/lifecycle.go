package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/hotschema/pkg/drift"
	"github.com/marmos91/hotschema/pkg/lifecycle"
	"github.com/marmos91/hotschema/pkg/metrics"
)

func init() {
	metrics.RegisterLifecycleMetricsConstructor(func() lifecycle.Metrics {
		return NewLifecycleMetrics(metrics.GetRegistry())
	})
}

// LifecycleMetrics records poll ticks and generation lifecycle events.
// All methods are safe on a nil receiver.
type LifecycleMetrics struct {
	PollTicks      *prometheus.CounterVec
	Drifts         prometheus.Counter
	Restarts       *prometheus.CounterVec
	BootDuration   *prometheus.HistogramVec
	BootFailures   *prometheus.CounterVec
	LiveGeneration prometheus.Gauge
}

// NewLifecycleMetrics creates and registers lifecycle metrics with reg.
// If reg is nil, metrics are created but not registered.
func NewLifecycleMetrics(reg prometheus.Registerer) *LifecycleMetrics {
	m := &LifecycleMetrics{
		PollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotschema",
			Subsystem: "poll",
			Name:      "ticks_total",
			Help:      "Schema poll ticks by result",
		}, []string{"result"}), // baseline, unchanged, drift, error, discarded
		Drifts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hotschema",
			Subsystem: "poll",
			Name:      "drifts_total",
			Help:      "Schema changes detected",
		}),
		Restarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotschema",
			Subsystem: "lifecycle",
			Name:      "restarts_total",
			Help:      "Restarts by kind and outcome",
		}, []string{"kind", "outcome"}),
		BootDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hotschema",
			Subsystem: "lifecycle",
			Name:      "boot_duration_seconds",
			Help:      "Time to boot a generation, from fetch to listening",
			Buckets: []float64{
				0.05, // cached artifact, local store
				0.1,
				0.25,
				0.5,
				1,
				2.5,
				5,
				10, // slow GitHub or store
				30,
			},
		}, []string{"result"}), // success, failure
		BootFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotschema",
			Subsystem: "lifecycle",
			Name:      "boot_failures_total",
			Help:      "Failed generation boots by step",
		}, []string{"step"}),
		LiveGeneration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hotschema",
			Subsystem: "lifecycle",
			Name:      "live_generation",
			Help:      "Number of the live generation, 0 when none",
		}),
	}

	if reg != nil {
		m.PollTicks = registerOrReuse(reg, m.PollTicks).(*prometheus.CounterVec)
		m.Drifts = registerOrReuse(reg, m.Drifts).(prometheus.Counter)
		m.Restarts = registerOrReuse(reg, m.Restarts).(*prometheus.CounterVec)
		m.BootDuration = registerOrReuse(reg, m.BootDuration).(*prometheus.HistogramVec)
		m.BootFailures = registerOrReuse(reg, m.BootFailures).(*prometheus.CounterVec)
		m.LiveGeneration = registerOrReuse(reg, m.LiveGeneration).(prometheus.Gauge)
	}

	return m
}

// ObserveTick implements drift.Metrics.
func (m *LifecycleMetrics) ObserveTick(result drift.TickResult) {
	if m == nil {
		return
	}
	m.PollTicks.WithLabelValues(string(result)).Inc()
	if result == drift.TickDrift {
		m.Drifts.Inc()
	}
}

// ObserveBoot implements lifecycle.Metrics.
func (m *LifecycleMetrics) ObserveBoot(d time.Duration, step string) {
	if m == nil {
		return
	}
	if step == "" {
		m.BootDuration.WithLabelValues("success").Observe(d.Seconds())
		return
	}
	m.BootDuration.WithLabelValues("failure").Observe(d.Seconds())
	m.BootFailures.WithLabelValues(step).Inc()
}

// ObserveRestart implements lifecycle.Metrics.
func (m *LifecycleMetrics) ObserveRestart(kind, outcome string) {
	if m == nil {
		return
	}
	m.Restarts.WithLabelValues(kind, outcome).Inc()
}

// SetLiveGeneration implements lifecycle.Metrics.
func (m *LifecycleMetrics) SetLiveGeneration(id uint64) {
	if m == nil {
		return
	}
	m.LiveGeneration.Set(float64(id))
}
