package config

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/marmos91/hotschema/pkg/config"
	"github.com/spf13/cobra"
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open configuration in editor",
	Long: `Open the configuration file in your default editor, then validate it.

Uses the EDITOR environment variable, then VISUAL, falling back to 'vi'.

Examples:
  # Edit default config
  hotschema config edit

  # Edit specific config file
  hotschema config edit --config /etc/hotschema/config.yaml`,
	RunE: runConfigEdit,
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("configuration file not found: %s\n\n"+
			"Create it first with:\n"+
			"  hotschema init --config %s",
			path, path)
	}

	editorCmd := exec.Command(editor(), path)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("failed to run editor: %w", err)
	}

	if _, err := config.Load(path); err != nil {
		return fmt.Errorf("%s was saved but is not valid: %w", path, err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
	return nil
}

func editor() string {
	for _, env := range []string{"EDITOR", "VISUAL"} {
		if e := os.Getenv(env); e != "" {
			return e
		}
	}
	return "vi"
}
