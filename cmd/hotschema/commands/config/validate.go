package config

import (
	"fmt"

	"github.com/marmos91/hotschema/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the hotschema configuration.

Checks for syntax errors, missing required fields, and invalid values,
after applying environment overrides.

Examples:
  # Validate default config
  hotschema config validate

  # Validate specific config file
  hotschema config validate --config /etc/hotschema/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)

	cfg, err := config.MustLoad(path)
	if err != nil {
		return err
	}

	displayPath := path
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if warnings := warningsFor(cfg); len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(out, "  Schema source:   %s\n", describeSource(cfg))
	_, _ = fmt.Fprintf(out, "  Poll interval:   %s\n", cfg.Poll.Interval)
	_, _ = fmt.Fprintf(out, "  Database:        %s\n", cfg.Database.URI)
	_, _ = fmt.Fprintf(out, "  GraphQL port:    %d\n", cfg.Server.Port)
	_, _ = fmt.Fprintf(out, "  Introspection:   %t\n", cfg.Server.IntrospectionEnabled())
	_, _ = fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)

	return nil
}

func warningsFor(cfg *config.Config) []string {
	var warnings []string
	if cfg.Source.Type == config.SourceGitHub && cfg.Source.GitHub.Token == "" {
		warnings = append(warnings, "GitHub token not configured - private repositories will fail and requests are rate limited")
	}
	if cfg.Database.Username != "" && cfg.Database.Password == "" {
		warnings = append(warnings, "Neo4j username set without a password")
	}
	if cfg.Server.Production && cfg.Server.IntrospectionEnabled() {
		warnings = append(warnings, "Introspection is enabled in production mode")
	}
	return warnings
}

func describeSource(cfg *config.Config) string {
	if cfg.Source.Type == config.SourceFile {
		return "file " + cfg.Source.File.Path
	}
	gh := cfg.Source.GitHub
	s := fmt.Sprintf("github %s/%s/%s", gh.Owner, gh.Repo, gh.Path)
	if gh.Ref != "" {
		s += "@" + gh.Ref
	}
	return s
}
