package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/marmos91/hotschema/internal/cli/health"
	"github.com/marmos91/hotschema/internal/cli/output"
	"github.com/marmos91/hotschema/internal/cli/timeutil"
	"github.com/spf13/cobra"
)

var (
	statusOutput string
	statusURL    string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what a running server is serving",
	Long: `Query the health endpoints of a running hotschema server and show the
live generation, its schema source and digest, and store readiness.

Examples:
  # Check the local server on the default port
  hotschema status

  # Check another instance
  hotschema status --url http://graphql.internal:4000

  # Output as JSON
  hotschema status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusURL, "url", "http://localhost:4000", "Base URL of the server")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// ServerStatus is the combined schema and readiness report.
type ServerStatus struct {
	URL          string    `json:"url" yaml:"url"`
	Ready        bool      `json:"ready" yaml:"ready"`
	Generation   uint64    `json:"generation" yaml:"generation"`
	Source       string    `json:"source,omitempty" yaml:"source,omitempty"`
	Digest       string    `json:"digest,omitempty" yaml:"digest,omitempty"`
	Types        int       `json:"types" yaml:"types"`
	RetrievedAt  time.Time `json:"retrieved_at,omitempty" yaml:"retrieved_at,omitempty"`
	StoreLatency string    `json:"store_latency,omitempty" yaml:"store_latency,omitempty"`
	Error        string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Headers implements output.TableRenderer.
func (s ServerStatus) Headers() []string {
	return []string{"Field", "Value"}
}

// Rows implements output.TableRenderer.
func (s ServerStatus) Rows() [][]string {
	ready := "yes"
	if !s.Ready {
		ready = "no"
	}
	rows := [][]string{
		{"URL", s.URL},
		{"Ready", ready},
		{"Generation", strconv.FormatUint(s.Generation, 10)},
		{"Source", s.Source},
		{"Digest", s.Digest},
		{"Types", strconv.Itoa(s.Types)},
		{"Retrieved", timeutil.FormatAge(s.RetrievedAt, time.Now())},
	}
	if s.StoreLatency != "" {
		rows = append(rows, []string{"Store latency", s.StoreLatency})
	}
	if s.Error != "" {
		rows = append(rows, []string{"Error", s.Error})
	}
	return rows
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*health.DefaultTimeout)
	defer cancel()

	status, err := fetchStatus(ctx, health.NewClient(statusURL))
	if err != nil {
		return fmt.Errorf("server at %s is not reachable: %w", statusURL, err)
	}
	status.URL = statusURL

	return output.NewPrinter(cmd.OutOrStdout(), format, false).Print(status)
}

func fetchStatus(ctx context.Context, client *health.Client) (ServerStatus, error) {
	var status ServerStatus

	ready, err := client.Ready(ctx)
	if err != nil {
		return status, err
	}
	status.Ready = ready.Ready
	status.Generation = ready.Generation
	status.StoreLatency = ready.StoreLatency
	status.Error = ready.Error

	info, err := client.Schema(ctx)
	if err != nil {
		// Readiness already reported why; keep what we have.
		if status.Error == "" {
			status.Error = err.Error()
		}
		return status, nil
	}
	status.Generation = info.Generation
	status.Source = info.Source
	status.Digest = info.Digest
	status.Types = info.Types
	status.RetrievedAt = info.RetrievedAt
	return status, nil
}
