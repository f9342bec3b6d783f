// Package schema implements the schema subcommands, which exercise the
// configured source and builder without starting a server.
package schema

import (
	"context"
	"fmt"

	"github.com/marmos91/hotschema/pkg/config"
	"github.com/marmos91/hotschema/pkg/schema"
	"github.com/marmos91/hotschema/pkg/source"
	"github.com/spf13/cobra"
)

var fileOverride string

// Cmd is the schema subcommand.
var Cmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect the GraphQL type definitions",
	Long: `Fetch, check and inspect the type definitions hotschema would serve.

Subcommands:
  fetch    Print the type definitions from the configured source
  check    Fetch and build the schema, reporting errors
  inspect  List the types of the built schema`,
}

func init() {
	Cmd.PersistentFlags().StringVar(&fileOverride, "file", "", "Read type definitions from this file instead of the configured source")

	Cmd.AddCommand(fetchCmd)
	Cmd.AddCommand(checkCmd)
	Cmd.AddCommand(inspectCmd)
}

// newFetcher returns the fetcher for --file, or the configured source.
func newFetcher(cmd *cobra.Command) (source.Fetcher, error) {
	if fileOverride != "" {
		return source.NewFileFetcher(fileOverride)
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return nil, err
	}

	opts := cfg.SourceOptions()
	if opts.Timeout == 0 {
		opts.Timeout = config.DefaultRequestTimeout
	}
	return source.New(opts)
}

// fetch retrieves the current artifact.
func fetch(cmd *cobra.Command) (*source.Artifact, error) {
	fetcher, err := newFetcher(cmd)
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	artifact, err := fetcher.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", fetcher.Describe(), err)
	}
	return artifact, nil
}

// build fetches and builds the schema.
func build(cmd *cobra.Command) (*schema.Schema, error) {
	artifact, err := fetch(cmd)
	if err != nil {
		return nil, err
	}
	return schema.NewSDLBuilder().Build(artifact)
}
