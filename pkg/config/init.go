package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const fileHeader = `# hotschema configuration file
#
# Every key can be overridden with HOTSCHEMA_<SECTION>_<KEY>, e.g.
# HOTSCHEMA_POLL_INTERVAL=1m. The legacy names NEO_URI, NEO_USER,
# NEO_PASS, PORT, PRODUCTION, GITHUB_REPO_OWNER, GITHUB_REPO_NAME,
# GITHUB_TARGET_FILE_PATH and GITHUB_ACCESS_TOKEN are also honored.`

var sectionComments = map[string]string{
	"logging":          "# Log level (DEBUG, INFO, WARN, ERROR), format (text, json) and output",
	"telemetry":        "# OpenTelemetry tracing and Pyroscope profiling (opt-in)",
	"metrics":          "# Prometheus metrics endpoint (opt-in)",
	"shutdown_timeout": "# Upper bound for draining on SIGINT/SIGTERM",
	"source":           "# Where the GraphQL type definitions are fetched from (github or file)",
	"poll":             "# How often the source is checked for drift (minimum 1s)",
	"database":         "# Neo4j connection opened by every serving generation",
	"server":           "# GraphQL HTTP server. Introspection defaults to !production",
}

// SampleConfig returns the configuration written by 'hotschema init'.
func SampleConfig() *Config {
	cfg := &Config{
		Source: SourceConfig{
			Type: SourceGitHub,
			GitHub: GitHubSourceConfig{
				Owner: "your-org",
				Repo:  "your-repo",
				Path:  "schema.graphql",
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// InitConfig writes a sample configuration to the default location and
// returns its path.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration to path.
func InitConfigToPath(path string, force bool) error {
	return WriteConfig(path, SampleConfig(), force)
}

// WriteConfig renders cfg as commented YAML and writes it to path.
// An existing file is only replaced when force is set.
func WriteConfig(path string, cfg *Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	data, err := RenderConfig(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// RenderConfig encodes cfg as YAML with a file header and one comment per
// top-level section.
func RenderConfig(cfg *Config) ([]byte, error) {
	var root yaml.Node
	if err := root.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i]
		if comment, ok := sectionComments[key.Value]; ok {
			key.HeadComment = comment
		}
	}

	doc := &yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: fileHeader,
		Content:     []*yaml.Node{&root},
	}

	var sb strings.Builder
	enc := yaml.NewEncoder(&sb)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return []byte(sb.String()), nil
}
