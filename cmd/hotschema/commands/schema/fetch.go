package schema

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var fetchOutput string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Print the type definitions from the configured source",
	Long: `Fetch the type definitions once and print them.

The source, digest and size are written to stderr so stdout can be
redirected to a file.

Examples:
  # Print the type definitions
  hotschema schema fetch

  # Save them
  hotschema schema fetch --output schema.graphql`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "Write to this file instead of stdout")
}

func runFetch(cmd *cobra.Command, args []string) error {
	artifact, err := fetch(cmd)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "# %s (%d bytes, sha256:%s)\n", artifact.Source, artifact.Size(), artifact.Digest)

	if fetchOutput != "" {
		if err := os.WriteFile(fetchOutput, []byte(artifact.Content), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", fetchOutput, err)
		}
		return nil
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), artifact.Content)
	return err
}
