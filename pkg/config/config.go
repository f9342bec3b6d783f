package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config represents the hotschema configuration.
//
// It captures the static settings of a hotschema process:
//   - Logging, tracing, profiling and metrics
//   - Where the GraphQL type definitions are fetched from
//   - How often the source is polled for drift
//   - The Neo4j database every generation connects to
//   - The GraphQL HTTP server
//
// Configuration sources (in order of precedence):
//  1. Environment variables (HOTSCHEMA_*, then the legacy flat names)
//  2. .env file in the working directory
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// ShutdownTimeout bounds the hard stop drain on SIGINT/SIGTERM
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Source selects where the GraphQL type definitions come from
	Source SourceConfig `mapstructure:"source" yaml:"source"`

	// Poll configures the drift poller
	Poll PollConfig `mapstructure:"poll" yaml:"poll"`

	// Database configures the Neo4j connection opened by every generation
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// Server configures the GraphQL HTTP server
	Server ServerConfig `mapstructure:"server" yaml:"server"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use a non-TLS connection
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server URL
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	ProfileTypes []string `mapstructure:"profile_types" validate:"dive,oneof=cpu alloc_objects alloc_space inuse_objects inuse_space goroutines mutex_count mutex_duration block_count block_duration" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// Source types.
const (
	SourceGitHub = "github"
	SourceFile   = "file"
)

// SourceConfig selects and configures the schema source.
type SourceConfig struct {
	// Type is the source kind: github or file
	// Default: github
	Type string `mapstructure:"type" validate:"required,oneof=github file" yaml:"type"`

	// GitHub configures the GitHub contents API source
	GitHub GitHubSourceConfig `mapstructure:"github" yaml:"github"`

	// File configures the local file source
	File FileSourceConfig `mapstructure:"file" yaml:"file"`

	// RequestTimeout bounds a single fetch
	// Default: 30s
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gte=0" yaml:"request_timeout"`
}

// GitHubSourceConfig locates the type definitions file in a GitHub repository.
type GitHubSourceConfig struct {
	Owner string `mapstructure:"owner" yaml:"owner"`
	Repo  string `mapstructure:"repo" yaml:"repo"`
	Path  string `mapstructure:"path" yaml:"path"`

	// Ref is a branch, tag or commit. Empty uses the repository default branch.
	Ref string `mapstructure:"ref" yaml:"ref,omitempty"`

	// Token is a GitHub access token. Empty makes unauthenticated requests.
	Token string `mapstructure:"token" yaml:"token,omitempty"`

	// APIURL is the GitHub API base URL
	// Default: https://api.github.com
	APIURL string `mapstructure:"api_url" validate:"omitempty,url" yaml:"api_url"`
}

// FileSourceConfig points at a local type definitions file.
type FileSourceConfig struct {
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}

// PollConfig configures drift detection.
type PollConfig struct {
	// Interval between source fetches
	// Default: 5m, minimum 1s
	Interval time.Duration `mapstructure:"interval" validate:"required,gte=1s" yaml:"interval"`
}

// DatabaseConfig configures the Neo4j connection.
type DatabaseConfig struct {
	// URI is the Bolt URI (bolt://, neo4j://, neo4j+s://)
	URI string `mapstructure:"uri" validate:"required" yaml:"uri"`

	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	// Database selects a named database. Empty uses the server default.
	Database string `mapstructure:"database" yaml:"database,omitempty"`

	// MaxConnectionPoolSize caps driver connections per generation
	// Default: 50
	MaxConnectionPoolSize int `mapstructure:"max_connection_pool_size" validate:"gte=0" yaml:"max_connection_pool_size"`

	// ConnectTimeout bounds connection establishment and verification
	// Default: 10s
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"gte=0" yaml:"connect_timeout"`
}

// ServerConfig configures the GraphQL HTTP server.
type ServerConfig struct {
	// Port is the HTTP port
	// Default: 4000
	Port int `mapstructure:"port" validate:"required,min=1,max=65535" yaml:"port"`

	// Production disables introspection unless Introspection is set explicitly
	Production bool `mapstructure:"production" yaml:"production"`

	// Introspection overrides the production default when set
	Introspection *bool `mapstructure:"introspection" yaml:"introspection,omitempty"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"gte=0" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gte=0" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" validate:"gte=0" yaml:"idle_timeout"`

	// QueryTimeout bounds a single GraphQL request
	// Default: 30s
	QueryTimeout time.Duration `mapstructure:"query_timeout" validate:"gte=0" yaml:"query_timeout"`

	// MaxBodySize caps request bodies
	// Default: 1MiB
	MaxBodySize ByteSize `mapstructure:"max_body_size" yaml:"max_body_size"`

	// DefaultLimit caps list fields queried without an explicit limit
	// Default: 100
	DefaultLimit int `mapstructure:"default_limit" validate:"gte=0" yaml:"default_limit"`
}

// IntrospectionEnabled resolves the effective introspection setting.
func (s ServerConfig) IntrospectionEnabled() bool {
	if s.Introspection != nil {
		return *s.Introspection
	}
	return !s.Production
}

// Load reads configuration from defaults, the config file, a .env file
// in the working directory and the environment, in increasing priority.
// An empty configPath looks for config.yaml under ConfigDir; a missing
// file there is fine since hotschema can run from the environment alone.
// The result has defaults applied and is validated.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(dotEnvFile); err != nil {
		return nil, err
	}

	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}

	cfg := new(Config)
	hooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(cfg, viper.DecodeHook(hooks)); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// newViper binds the environment and reads the config file, if any.
func newViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if configPath == "" {
		v.AddConfigPath(ConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	} else {
		v.SetConfigFile(configPath)
	}

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil, errors.As(err, &notFound), errors.Is(err, fs.ErrNotExist):
		return v, nil
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
}

// MustLoad is Load for the CLI: an explicit path must exist, and errors
// carry a hint on how to fix them.
func MustLoad(configPath string) (*Config, error) {
	switch {
	case configPath == "" && DefaultConfigExists():
		configPath = GetDefaultConfigPath()
	case configPath != "":
		if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Create it with:\n  hotschema init --config %s", configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w\n\n"+
			"Set the required values in the config file or environment, e.g.:\n"+
			"  NEO_URI=bolt://localhost:7687 GITHUB_REPO_OWNER=acme GITHUB_REPO_NAME=api \\\n"+
			"  GITHUB_TARGET_FILE_PATH=schema.graphql hotschema start", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as YAML, replacing any existing file.
func SaveConfig(cfg *Config, path string) error {
	return WriteConfig(path, cfg, true)
}

// ConfigDir is $XDG_CONFIG_HOME/hotschema, else ~/.config/hotschema, else
// the working directory.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "hotschema")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "hotschema")
	}
	return "."
}

// GetDefaultConfigPath returns ConfigDir/config.yaml.
func GetDefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether GetDefaultConfigPath exists.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
