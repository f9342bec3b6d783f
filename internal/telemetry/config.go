package telemetry

// Config configures OTLP trace export.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string

	// Endpoint is the OTLP gRPC collector address, host:port
	Endpoint string

	// Insecure disables TLS to the collector
	Insecure bool

	// SampleRate applies to root spans only; child spans follow their parent
	SampleRate float64
}

// DefaultConfig returns tracing disabled, pointed at a local collector.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "hotschema",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}
