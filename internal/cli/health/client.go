// Package health queries the health endpoints of a running hotschema
// instance.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/marmos91/hotschema/pkg/api/handlers"
)

// DefaultTimeout bounds each health request.
const DefaultTimeout = 5 * time.Second

// Client reads /health endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the instance at baseURL
// (e.g. http://localhost:8080).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
}

// envelope mirrors handlers.Response with the payload left raw.
type envelope struct {
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Readiness is the decoded /health/ready payload.
type Readiness struct {
	Ready        bool   `json:"ready" yaml:"ready"`
	Generation   uint64 `json:"generation" yaml:"generation"`
	StoreLatency string `json:"store_latency,omitempty" yaml:"store_latency,omitempty"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Schema returns what the live generation is serving.
func (c *Client) Schema(ctx context.Context) (*handlers.SchemaInfo, error) {
	env, status, err := c.get(ctx, "/health/schema")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("schema unavailable: %s", describe(env, status))
	}

	var info handlers.SchemaInfo
	if err := json.Unmarshal(env.Data, &info); err != nil {
		return nil, fmt.Errorf("decode schema info: %w", err)
	}
	return &info, nil
}

// Ready reports readiness. A 503 is a result, not an error.
func (c *Client) Ready(ctx context.Context) (*Readiness, error) {
	env, status, err := c.get(ctx, "/health/ready")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusServiceUnavailable {
		return nil, fmt.Errorf("readiness check: %s", describe(env, status))
	}

	r := &Readiness{Ready: status == http.StatusOK, Error: env.Error}
	if len(env.Data) > 0 {
		var data struct {
			Generation   uint64 `json:"generation"`
			StoreLatency string `json:"store_latency"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("decode readiness: %w", err)
		}
		r.Generation = data.Generation
		r.StoreLatency = data.StoreLatency
	}
	return r, nil
}

func (c *Client) get(ctx context.Context, path string) (*envelope, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode %s (HTTP %d): %w", path, resp.StatusCode, err)
	}
	return &env, resp.StatusCode, nil
}

func describe(env *envelope, status int) string {
	if env.Error != "" {
		return fmt.Sprintf("HTTP %d: %s", status, env.Error)
	}
	return fmt.Sprintf("HTTP %d", status)
}
