package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	stopPidFile string
	stopForce   bool
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running hotschema server",
	Long: `Stop a hotschema server started with 'hotschema start'.

By default sends an interrupt, which drains every generation before the
process exits. Use --force to kill the process immediately.

Examples:
  # Stop server (uses default PID file)
  hotschema stop

  # Stop server using custom PID file
  hotschema stop --pid-file /var/run/hotschema.pid

  # Force stop
  hotschema stop --force`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().StringVar(&stopPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/hotschema/hotschema.pid)")
	stopCmd.Flags().BoolVarP(&stopForce, "force", "f", false, "Kill the process instead of draining")
}

func runStop(cmd *cobra.Command, args []string) error {
	pidPath := stopPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	pid, err := readPidFile(pidPath)
	if err != nil {
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	out := cmd.OutOrStdout()
	if stopForce {
		_, _ = fmt.Fprintf(out, "Killing process %d...\n", pid)
		err = process.Kill()
	} else {
		_, _ = fmt.Fprintf(out, "Interrupting process %d...\n", pid)
		err = process.Signal(os.Interrupt)
	}

	if errors.Is(err, os.ErrProcessDone) {
		_, _ = fmt.Fprintln(out, "Server already stopped")
		_ = os.Remove(pidPath)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to signal process %d: %w", pid, err)
	}

	if stopForce {
		_, _ = fmt.Fprintln(out, "Server terminated")
	} else {
		_, _ = fmt.Fprintln(out, "Shutdown signal sent. Server will drain and stop.")
	}
	return nil
}
