// Package commands implements the hotschema CLI.
package commands

import (
	"github.com/marmos91/hotschema/cmd/hotschema/commands/config"
	"github.com/marmos91/hotschema/cmd/hotschema/commands/schema"
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "hotschema",
	Short: "hotschema - GraphQL over Neo4j with hot schema reload",
	Long: `hotschema serves a GraphQL API backed by Neo4j. Its type definitions
are fetched from a GitHub repository (or a local file) and polled for
drift; when they change, a fresh server generation is booted against a
fresh database connection and replaces the running one.

Use "hotschema [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/hotschema/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(config.Cmd)
	rootCmd.AddCommand(schema.Cmd)
	rootCmd.AddCommand(completionCmd)

	// Hide the default completion command (we provide our own)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}

// ExitError makes the process exit non-zero. Silent errors have already
// been reported through the logger.
type ExitError struct {
	Err    error
	Silent bool
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }
