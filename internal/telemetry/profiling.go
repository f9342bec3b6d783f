package telemetry

import (
	"fmt"
	"maps"
	"runtime"
	"sort"
	"sync/atomic"

	"github.com/grafana/pyroscope-go"
)

// ProfilingConfig configures continuous profiling pushed to Pyroscope.
type ProfilingConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string

	// Endpoint is the Pyroscope server URL, e.g. http://localhost:4040
	Endpoint string

	// ProfileTypes are names from ProfileTypeNames
	ProfileTypes []string

	// Tags are static labels added to every profile, next to version
	Tags map[string]string
}

// profile rate used when mutex or block profiles are requested
const contentionRate = 5

var profileTypes = map[string]pyroscope.ProfileType{
	"cpu":            pyroscope.ProfileCPU,
	"alloc_objects":  pyroscope.ProfileAllocObjects,
	"alloc_space":    pyroscope.ProfileAllocSpace,
	"inuse_objects":  pyroscope.ProfileInuseObjects,
	"inuse_space":    pyroscope.ProfileInuseSpace,
	"goroutines":     pyroscope.ProfileGoroutines,
	"mutex_count":    pyroscope.ProfileMutexCount,
	"mutex_duration": pyroscope.ProfileMutexDuration,
	"block_count":    pyroscope.ProfileBlockCount,
	"block_duration": pyroscope.ProfileBlockDuration,
}

var profiling atomic.Bool

// ProfileTypeNames lists the accepted profile type names, sorted.
func ProfileTypeNames() []string {
	names := make([]string, 0, len(profileTypes))
	for name := range profileTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InitProfiling starts the Pyroscope agent and returns its stop function.
func InitProfiling(cfg ProfilingConfig) (stop func() error, err error) {
	if !cfg.Enabled {
		profiling.Store(false)
		return func() error { return nil }, nil
	}

	types, err := resolveProfileTypes(cfg.ProfileTypes)
	if err != nil {
		return nil, err
	}

	tags := map[string]string{"version": cfg.ServiceVersion}
	maps.Copy(tags, cfg.Tags)

	p, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ServiceName,
		ServerAddress:   cfg.Endpoint,
		Tags:            tags,
		ProfileTypes:    types,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Pyroscope profiler: %w", err)
	}
	profiling.Store(true)

	return func() error {
		profiling.Store(false)
		return p.Stop()
	}, nil
}

// IsProfilingEnabled reports whether the profiler is running.
func IsProfilingEnabled() bool {
	return profiling.Load()
}

// resolveProfileTypes maps names to Pyroscope types and turns on the
// runtime sampling that mutex and block profiles need.
func resolveProfileTypes(names []string) ([]pyroscope.ProfileType, error) {
	types := make([]pyroscope.ProfileType, 0, len(names))
	for _, name := range names {
		pt, ok := profileTypes[name]
		if !ok {
			return nil, fmt.Errorf("invalid profile type %q", name)
		}
		switch pt {
		case pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration:
			runtime.SetMutexProfileFraction(contentionRate)
		case pyroscope.ProfileBlockCount, pyroscope.ProfileBlockDuration:
			runtime.SetBlockProfileRate(contentionRate)
		}
		types = append(types, pt)
	}
	return types, nil
}
