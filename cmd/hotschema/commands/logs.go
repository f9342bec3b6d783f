package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/marmos91/hotschema/pkg/config"
	"github.com/spf13/cobra"
)

var (
	logsFollow     bool
	logsLines      int
	logsSince      string
	logsGeneration uint64
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Tail server logs",
	Long: `Display and optionally follow the hotschema server logs.

Reads the file named by logging.output. Servers logging to stdout or
stderr have no file to read.

Examples:
  # Show last 100 lines (default)
  hotschema logs

  # Follow logs in real-time
  hotschema logs -f

  # Only lines of generation 3
  hotschema logs --generation 3

  # Show logs since a specific time
  hotschema logs --since "2026-01-15T10:00:00Z"`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 100, "Number of lines to show")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since timestamp (RFC3339 format)")
	logsCmd.Flags().Uint64Var(&logsGeneration, "generation", 0, "Only show lines logged for this generation")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	logOutput := cfg.Logging.Output
	if logOutput == "stdout" || logOutput == "stderr" {
		return fmt.Errorf("server is configured to log to %s, not a file\nSet 'logging.output' to a file path to use this command", logOutput)
	}
	if _, err := os.Stat(logOutput); os.IsNotExist(err) {
		return fmt.Errorf("log file not found: %s\nThe server may not have started yet or is logging elsewhere", logOutput)
	}

	filter := logFilter{generation: logsGeneration}
	if logsSince != "" {
		filter.since, err = time.Parse(time.RFC3339, logsSince)
		if err != nil {
			return fmt.Errorf("invalid --since format (use RFC3339): %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if err := showLogs(out, logOutput, logsLines, filter); err != nil {
		return err
	}
	if !logsFollow {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Following %s (Ctrl+C to stop)...\n", logOutput)
	return followLogs(ctx, out, logOutput, filter)
}

// logFilter selects log lines. Lines without a parsable timestamp or
// generation are kept when only the other criterion applies.
type logFilter struct {
	since      time.Time
	generation uint64
}

func (f logFilter) keep(line string) bool {
	ts, gen := parseLogLine(line)
	if !f.since.IsZero() && !ts.IsZero() && ts.Before(f.since) {
		return false
	}
	if f.generation != 0 && gen != f.generation {
		return false
	}
	return true
}

// showLogs writes the last n matching lines of path.
func showLogs(w io.Writer, path string, n int, filter logFilter) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	lines, err := tailLines(file, n, filter)
	if err != nil {
		return fmt.Errorf("error reading log file: %w", err)
	}
	for _, line := range lines {
		_, _ = fmt.Fprintln(w, line)
	}
	return nil
}

// tailLines keeps a ring of the last n matching lines of r.
func tailLines(r io.Reader, n int, filter logFilter) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !filter.keep(line) {
			continue
		}
		if len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, line)
	}
	return ring, scanner.Err()
}

// followLogs prints lines appended to path until ctx is done.
func followLogs(ctx context.Context, w io.Writer, path string, filter logFilter) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch log file: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end of log file: %w", err)
	}
	reader := bufio.NewReader(file)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) {
				continue
			}
			for {
				line, err := reader.ReadString('\n')
				if err != nil {
					break
				}
				if filter.keep(strings.TrimRight(line, "\n")) {
					_, _ = fmt.Fprint(w, line)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// textTimeLayout matches the timestamp of the text log handler.
const textTimeLayout = "2006-01-02 15:04:05"

// parseLogLine extracts the timestamp and generation from a text or JSON
// log line. Missing values are zero.
func parseLogLine(line string) (time.Time, uint64) {
	if strings.HasPrefix(line, "{") {
		var rec struct {
			Time       time.Time   `json:"time"`
			Generation json.Number `json:"generation"`
		}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return time.Time{}, 0
		}
		gen, _ := strconv.ParseUint(rec.Generation.String(), 10, 64)
		return rec.Time, gen
	}

	var ts time.Time
	if len(line) > len(textTimeLayout)+1 && line[0] == '[' {
		ts, _ = time.ParseInLocation(textTimeLayout, line[1:len(textTimeLayout)+1], time.Local)
	}

	var gen uint64
	if idx := strings.Index(line, " generation="); idx >= 0 {
		rest := line[idx+len(" generation="):]
		if end := strings.IndexByte(rest, ' '); end >= 0 {
			rest = rest[:end]
		}
		gen, _ = strconv.ParseUint(rest, 10, 64)
	}
	return ts, gen
}
