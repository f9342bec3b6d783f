package schema

import (
	"strconv"
	"strings"

	"github.com/marmos91/hotschema/internal/cli/output"
	"github.com/marmos91/hotschema/pkg/schema"
	"github.com/spf13/cobra"
)

var inspectOutput string

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List the types of the built schema",
	Long: `Build the schema and list its types with field counts and the
relationship fields that map onto the graph.

Examples:
  # Table output
  hotschema schema inspect

  # JSON output
  hotschema schema inspect --output json`,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// typeList renders schema.TypeInfo as a table.
type typeList []schema.TypeInfo

// Headers implements output.TableRenderer.
func (l typeList) Headers() []string {
	return []string{"Type", "Kind", "Fields", "Relationships"}
}

// Rows implements output.TableRenderer.
func (l typeList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, t := range l {
		rels := "-"
		if len(t.Relationships) > 0 {
			rels = strings.Join(t.Relationships, ", ")
		}
		rows = append(rows, []string{t.Name, strings.ToLower(t.Kind), strconv.Itoa(t.Fields), rels})
	}
	return rows
}

func runInspect(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(inspectOutput)
	if err != nil {
		return err
	}

	s, err := build(cmd)
	if err != nil {
		return err
	}

	return output.NewPrinter(cmd.OutOrStdout(), format, false).Print(typeList(s.Inspect()))
}
