package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/marmos91/hotschema/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
)

const (
	// DefaultGitHubAPIURL is the public GitHub REST endpoint.
	DefaultGitHubAPIURL = "https://api.github.com"

	githubRawMediaType = "application/vnd.github.raw"
	githubAPIVersion   = "2022-11-28"

	// maxArtifactSize caps how much of a response body is read.
	maxArtifactSize = 16 << 20
)

// GitHubConfig locates a file in a GitHub repository.
type GitHubConfig struct {
	Owner string
	Repo  string
	Path  string

	// Ref is a branch, tag or commit SHA. Empty means the default branch.
	Ref string

	// Token authenticates requests when set.
	Token string

	// APIURL overrides the API base URL (GitHub Enterprise, tests).
	APIURL string

	// Timeout bounds one fetch including reading the body. Zero means none.
	Timeout time.Duration

	// HTTPClient is the base client. Nil uses http.DefaultTransport.
	HTTPClient *http.Client
}

// GitHubFetcher reads a file through the GitHub contents API.
type GitHubFetcher struct {
	cfg      GitHubConfig
	client   *http.Client
	endpoint string
	describe string
	now      func() time.Time
}

// NewGitHubFetcher validates cfg and builds a fetcher.
func NewGitHubFetcher(cfg GitHubConfig) (*GitHubFetcher, error) {
	if cfg.Owner == "" || cfg.Repo == "" || cfg.Path == "" {
		return nil, fmt.Errorf("github source requires owner, repo and path")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultGitHubAPIURL
	}
	cfg.Path = strings.TrimPrefix(cfg.Path, "/")

	base, err := url.Parse(strings.TrimRight(cfg.APIURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid github api url %q: %w", cfg.APIURL, err)
	}

	segments := strings.Split(cfg.Path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		base.String(), url.PathEscape(cfg.Owner), url.PathEscape(cfg.Repo), strings.Join(segments, "/"))
	if cfg.Ref != "" {
		endpoint += "?ref=" + url.QueryEscape(cfg.Ref)
	}

	describe := fmt.Sprintf("github:%s/%s/%s", cfg.Owner, cfg.Repo, cfg.Path)
	if cfg.Ref != "" {
		describe += "@" + cfg.Ref
	}

	return &GitHubFetcher{
		cfg:      cfg,
		client:   newGitHubClient(cfg),
		endpoint: endpoint,
		describe: describe,
		now:      time.Now,
	}, nil
}

// newGitHubClient traces the base transport and, when a token is
// configured, adds an oauth2 transport on top.
func newGitHubClient(cfg GitHubConfig) *http.Client {
	base := &http.Client{}
	if cfg.HTTPClient != nil {
		*base = *cfg.HTTPClient
	}
	base.Transport = telemetry.HTTPTransport(base.Transport)

	client := base
	if cfg.Token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
	}
	client.Timeout = cfg.Timeout
	return client
}

// Describe implements Fetcher.
func (f *GitHubFetcher) Describe() string {
	return f.describe
}

// Fetch implements Fetcher.
func (f *GitHubFetcher) Fetch(ctx context.Context) (*Artifact, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanFetch,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.Source(f.describe)))
	defer span.End()

	artifact, err := f.fetch(ctx)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	span.SetAttributes(telemetry.Digest(artifact.Digest), telemetry.Bytes(artifact.Size()))
	return artifact, nil
}

func (f *GitHubFetcher) fetch(ctx context.Context) (*Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return nil, NewFetchError(f.describe, 0, fmt.Errorf("%w: %v", ErrInvalidContent, err))
	}
	req.Header.Set("Accept", githubRawMediaType)
	req.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	req.Header.Set("User-Agent", "hotschema")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, NewFetchError(f.describe, 0, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactSize+1))
	if err != nil {
		return nil, NewFetchError(f.describe, resp.StatusCode, fmt.Errorf("%w: reading body: %v", ErrUnavailable, err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, NewFetchError(f.describe, resp.StatusCode, statusError(resp, body))
	}
	if len(body) > maxArtifactSize {
		return nil, NewFetchError(f.describe, resp.StatusCode, fmt.Errorf("%w: larger than %d bytes", ErrInvalidContent, maxArtifactSize))
	}

	// A directory path answers with a JSON array even with the raw media type.
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") && looksLikeListing(body) {
		return nil, NewFetchError(f.describe, resp.StatusCode, fmt.Errorf("%w: %s is a directory", ErrInvalidContent, f.cfg.Path))
	}

	return NewArtifact(string(body), f.describe, f.now()), nil
}

// statusError builds the wrapped sentinel for a non-200 answer, keeping
// GitHub's message when the body carries one.
func statusError(resp *http.Response, body []byte) error {
	class := classifyStatus(resp.StatusCode)
	if resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0" {
		class = ErrRateLimited
	}

	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		return fmt.Errorf("%w: %s", class, payload.Message)
	}
	return class
}

func looksLikeListing(body []byte) bool {
	var entries []json.RawMessage
	return json.Unmarshal(body, &entries) == nil
}
