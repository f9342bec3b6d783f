package config

import (
	"strings"
	"time"

)

// Default values shared with the CLI and tests.
const (
	DefaultPollInterval   = 5 * time.Minute
	DefaultServerPort     = 4000
	DefaultGitHubAPIURL   = "https://api.github.com"
	DefaultDatabaseURI    = "bolt://localhost:7687"
	DefaultDefaultLimit   = 100
	DefaultMetricsPort    = 9090
	DefaultRequestTimeout = 30 * time.Second
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyMetricsDefaults(&cfg.Metrics)
	applySourceDefaults(&cfg.Source)
	applyPollDefaults(&cfg.Poll)
	applyDatabaseDefaults(&cfg.Database)
	applyServerDefaults(&cfg.Server)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// Port defaults only when metrics are enabled.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
}

func applySourceDefaults(cfg *SourceConfig) {
	if cfg.Type == "" {
		cfg.Type = SourceGitHub
	}
	cfg.Type = strings.ToLower(cfg.Type)

	if cfg.GitHub.APIURL == "" {
		cfg.GitHub.APIURL = DefaultGitHubAPIURL
	}
	cfg.GitHub.APIURL = strings.TrimRight(cfg.GitHub.APIURL, "/")
	cfg.GitHub.Path = strings.TrimPrefix(cfg.GitHub.Path, "/")

	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
}

func applyPollDefaults(cfg *PollConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = DefaultPollInterval
	}
}

func applyDatabaseDefaults(cfg *DatabaseConfig) {
	if cfg.URI == "" {
		cfg.URI = DefaultDatabaseURI
	}
	if cfg.Username == "" {
		cfg.Username = "neo4j"
	}
	if cfg.MaxConnectionPoolSize == 0 {
		cfg.MaxConnectionPoolSize = 50
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultServerPort
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 120 * time.Second
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 30 * time.Second
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = MiB
	}
	if cfg.DefaultLimit == 0 {
		cfg.DefaultLimit = DefaultDefaultLimit
	}
}

// GetDefaultConfig returns a Config with all defaults applied and a local
// file source, which validates without any GitHub settings.
//
// Useful for sample configuration files and tests.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Source: SourceConfig{
			Type: SourceFile,
			File: FileSourceConfig{Path: "schema.graphql"},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
