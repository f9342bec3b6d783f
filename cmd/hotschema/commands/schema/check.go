package schema

import (
	"errors"
	"fmt"

	"github.com/marmos91/hotschema/pkg/schema"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Fetch and build the schema, reporting errors",
	Long: `Fetch the type definitions and build the schema exactly as a booting
generation would. Exits non-zero and lists every error if the build fails.

Examples:
  # Check the configured source
  hotschema schema check

  # Check a local file before pushing it
  hotschema schema check --file schema.graphql`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	s, err := build(cmd)
	if err != nil {
		var buildErr *schema.BuildError
		if errors.As(err, &buildErr) {
			out := cmd.ErrOrStderr()
			_, _ = fmt.Fprintf(out, "%s: %d error(s)\n", buildErr.Source, len(buildErr.Errors))
			for _, e := range buildErr.Errors {
				_, _ = fmt.Fprintf(out, "  - %s\n", e.Error())
			}
			return fmt.Errorf("schema check failed")
		}
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Source:  %s\n", s.Artifact.Source)
	_, _ = fmt.Fprintf(out, "Digest:  %s\n", s.Artifact.Digest)
	_, _ = fmt.Fprintf(out, "Types:   %d\n", len(s.NodeTypes()))
	_, _ = fmt.Fprintln(out, "Schema:  OK")
	return nil
}
