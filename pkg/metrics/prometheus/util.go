// Package prometheus implements the hotschema metric interfaces with
// prometheus/client_golang. Importing it links the implementations into
// the constructors of package metrics.
package prometheus

import "github.com/prometheus/client_golang/prometheus"

// registerOrReuse registers c with reg. If an identical collector is
// already registered (a second orchestrator in the same process, tests),
// the existing one is returned instead.
func registerOrReuse(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}
