package config

import (
	"github.com/marmos91/hotschema/internal/cli/output"
	"github.com/marmos91/hotschema/pkg/config"
	"github.com/spf13/cobra"
)

var (
	showOutput  string
	showSecrets bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display effective configuration",
	Long: `Display the effective hotschema configuration: the file, environment
overrides and defaults merged. Secrets are redacted unless --show-secrets
is given.

Examples:
  # Show default config as YAML
  hotschema config show

  # Show as JSON
  hotschema config show --output json`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
	showCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print tokens and passwords")
}

const redacted = "********"

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(configPath(cmd))
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	if !showSecrets {
		redact(cfg)
	}

	if format == output.FormatJSON {
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	}
	return output.PrintYAML(cmd.OutOrStdout(), cfg)
}

func redact(cfg *config.Config) {
	if cfg.Source.GitHub.Token != "" {
		cfg.Source.GitHub.Token = redacted
	}
	if cfg.Database.Password != "" {
		cfg.Database.Password = redacted
	}
}
