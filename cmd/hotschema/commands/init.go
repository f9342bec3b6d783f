package commands

import (
	"fmt"
	"os"

	"github.com/marmos91/hotschema/internal/cli/prompt"
	"github.com/marmos91/hotschema/pkg/config"
	"github.com/marmos91/hotschema/pkg/drift"
	"github.com/spf13/cobra"
)

var (
	initForce       bool
	initInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a configuration file",
	Long: `Initialize a hotschema configuration file.

By default a sample file is written to $XDG_CONFIG_HOME/hotschema/config.yaml.
Use --config to specify a custom path and --interactive to be asked for
the schema source, database and server settings.

Examples:
  # Write the sample configuration
  hotschema init

  # Answer a few questions instead
  hotschema init --interactive

  # Force overwrite existing config
  hotschema init --config /etc/hotschema/config.yaml --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Prompt for settings")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg := config.SampleConfig()
	force := initForce

	if initInteractive {
		if _, err := os.Stat(configPath); err == nil && !force {
			overwrite, err := prompt.Confirm(fmt.Sprintf("%s exists. Overwrite", configPath), false)
			if err != nil {
				return err
			}
			if !overwrite {
				return prompt.ErrAborted
			}
			force = true
		}

		if err := askConfig(cfg); err != nil {
			if prompt.IsAborted(err) {
				return prompt.ErrAborted
			}
			return err
		}
		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("invalid settings: %w", err)
		}
	}

	if err := config.WriteConfig(configPath, cfg, force); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	if !initInteractive {
		_, _ = fmt.Fprintln(out, "  1. Set source.github.owner, repo and path to your type definitions")
		_, _ = fmt.Fprintln(out, "  2. Point database.uri at your Neo4j instance")
	}
	_, _ = fmt.Fprintln(out, "  - Check the schema source with: hotschema schema check")
	_, _ = fmt.Fprintf(out, "  - Start the server with: hotschema start --config %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nSecrets can stay out of the file:")
	_, _ = fmt.Fprintln(out, "  export GITHUB_ACCESS_TOKEN=... NEO_PASS=...")
	return nil
}

// askConfig fills cfg from interactive answers, using its current values
// as defaults.
func askConfig(cfg *config.Config) error {
	kind, err := prompt.Choose("Schema source", []prompt.Option{
		{Label: "GitHub repository", Value: config.SourceGitHub, Description: "Fetched through the GitHub contents API and polled for drift"},
		{Label: "Local file", Value: config.SourceFile, Description: "Read from disk on every poll"},
	})
	if err != nil {
		return err
	}
	cfg.Source.Type = kind

	if kind == config.SourceGitHub {
		gh := &cfg.Source.GitHub
		if gh.Owner, err = prompt.Required("Repository owner", gh.Owner); err != nil {
			return err
		}
		if gh.Repo, err = prompt.Required("Repository name", gh.Repo); err != nil {
			return err
		}
		if gh.Path, err = prompt.Required("Type definitions path", gh.Path); err != nil {
			return err
		}
		if gh.Ref, err = prompt.Text("Branch, tag or commit (empty for default branch)", gh.Ref); err != nil {
			return err
		}
		if gh.Token, err = prompt.Secret("Access token (empty to use GITHUB_ACCESS_TOKEN)"); err != nil {
			return err
		}
	} else {
		if cfg.Source.File.Path, err = prompt.Required("Type definitions file", "schema.graphql"); err != nil {
			return err
		}
	}

	if cfg.Poll.Interval, err = prompt.Duration("Poll interval", cfg.Poll.Interval, drift.MinInterval); err != nil {
		return err
	}

	db := &cfg.Database
	if db.URI, err = prompt.URL("Neo4j URI", db.URI, "bolt", "bolt+s", "bolt+ssc", "neo4j", "neo4j+s", "neo4j+ssc"); err != nil {
		return err
	}
	if db.Username, err = prompt.Text("Neo4j username", "neo4j"); err != nil {
		return err
	}
	if db.Password, err = prompt.Secret("Neo4j password (empty to use NEO_PASS)"); err != nil {
		return err
	}

	if cfg.Server.Port, err = prompt.Port("GraphQL port", cfg.Server.Port); err != nil {
		return err
	}
	if cfg.Server.Production, err = prompt.Confirm("Production mode (disables introspection)", false); err != nil {
		return err
	}
	return nil
}
