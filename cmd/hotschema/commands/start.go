package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/marmos91/hotschema/internal/logger"
	"github.com/marmos91/hotschema/internal/telemetry"
	"github.com/marmos91/hotschema/pkg/config"
	"github.com/marmos91/hotschema/pkg/lifecycle"
	"github.com/marmos91/hotschema/pkg/metrics"
	"github.com/spf13/cobra"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/hotschema/pkg/metrics/prometheus"
)

var pidFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the GraphQL server",
	Long: `Start hotschema in the foreground.

The first generation is booted from the configured schema source and
database; startup fails if any boot step fails. The source is then
polled for drift and every change boots a replacement generation.

SIGINT and SIGTERM stop every generation and exit, cancelling a boot
still in flight. The exit code is non-zero if draining reported an error.
SIGHUP boots a replacement generation without waiting for drift.

Examples:
  # Start with the default config file
  hotschema start

  # Start with a custom config file
  hotschema start --config /etc/hotschema/config.yaml

  # Start from the environment alone
  NEO_URI=bolt://localhost:7687 GITHUB_REPO_OWNER=acme GITHUB_REPO_NAME=api \
  GITHUB_TARGET_FILE_PATH=schema.graphql hotschema start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/hotschema/hotschema.pid)")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "hotschema",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "hotschema",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.Err(err))
		}
	}()

	fmt.Println("hotschema - GraphQL over Neo4j with hot schema reload")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}

	if cfg.Metrics.Enabled {
		if err := startMetrics(ctx, cfg.Metrics.Port); err != nil {
			return err
		}
	} else {
		logger.Info("Metrics collection disabled")
	}

	orch, err := newOrchestrator(cfg)
	if err != nil {
		return err
	}

	pidPath := pidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}
	if err := writePidFile(pidPath); err != nil {
		return err
	}
	defer func() { _ = os.Remove(pidPath) }()

	// Subscribe before booting so a signal during boot cancels it.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	runCtx, shutdown := context.WithCancel(ctx)
	defer shutdown()
	go supervise(orch, sigChan, shutdown)

	logger.Info("Booting first generation. Press Ctrl+C to stop, send SIGHUP to reload.")

	if err := orch.Run(runCtx); err != nil {
		var bootErr *lifecycle.BootError
		if !errors.As(err, &bootErr) {
			logger.Error("Shutdown completed with errors", logger.Err(err))
			return &ExitError{Err: fmt.Errorf("shutdown: %w", err), Silent: true}
		}
		if runCtx.Err() != nil {
			logger.Info("Boot interrupted, nothing left running", logger.Err(err))
			return nil
		}
		logger.Error("Initial boot failed", logger.Err(err))
		return &ExitError{Err: fmt.Errorf("failed to start: %w", err), Silent: true}
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// supervisedOrchestrator is the part of the orchestrator supervise drives.
type supervisedOrchestrator interface {
	Restart(ctx context.Context) error
	Generations() []lifecycle.Snapshot
	RestartErrors() <-chan error
	Done() <-chan struct{}
}

// supervise turns SIGINT and SIGTERM into shutdown and SIGHUP into a
// soft restart, and reports failed restarts, until orch is done.
func supervise(orch supervisedOrchestrator, signals <-chan os.Signal, shutdown context.CancelFunc) {
	for {
		select {
		case <-orch.Done():
			return

		case sig := <-signals:
			if sig == syscall.SIGHUP {
				go reload(orch)
				continue
			}
			logger.Info("Shutdown signal received, stopping all generations", "signal", sig.String())
			shutdown()

		case err := <-orch.RestartErrors():
			logger.Warn("Schema change not applied, previous generation keeps serving",
				"generations", describeGenerations(orch.Generations()), logger.Err(err))
		}
	}
}

// reload forces a soft restart. Boot failures arrive on RestartErrors.
func reload(orch supervisedOrchestrator) {
	logger.Info("Reload requested")

	err := orch.Restart(context.Background())
	var bootErr *lifecycle.BootError
	switch {
	case err == nil:
		logger.Info("Reload complete", "generations", describeGenerations(orch.Generations()))
	case errors.As(err, &bootErr):
		// supervise logs it from RestartErrors
	default:
		logger.Info("Reload ignored", logger.Err(err))
	}
}

// describeGenerations renders snapshots as "1:draining,2:live".
func describeGenerations(gens []lifecycle.Snapshot) string {
	parts := make([]string, 0, len(gens))
	for _, g := range gens {
		parts = append(parts, fmt.Sprintf("%d:%s", g.ID, g.State))
	}
	return strings.Join(parts, ",")
}

// startMetrics initializes the Prometheus registry and serves it until
// ctx is cancelled.
func startMetrics(ctx context.Context, port int) error {
	metrics.InitRegistry()

	srv, err := metrics.NewServer(port)
	if err != nil {
		return fmt.Errorf("failed to create metrics server: %w", err)
	}

	go func() {
		if err := srv.Start(ctx); err != nil {
			logger.Error("Metrics server error", logger.Err(err))
		}
	}()

	logger.Info("Metrics enabled", "port", port)
	return nil
}
