// Package neo4j opens per-generation connections to the Neo4j database that
// backs the GraphQL API.
package neo4j

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/hotschema/internal/logger"
	"github.com/marmos91/hotschema/internal/telemetry"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrClosed is returned by Run and Ping after Close.
var ErrClosed = errors.New("connection closed")

// Config holds the connection parameters.
type Config struct {
	URI      string
	Username string
	Password string

	// Database selects a database on multi-database servers. Empty uses
	// the server default.
	Database string

	// MaxConnectionPoolSize bounds the driver pool. Zero keeps the driver
	// default.
	MaxConnectionPoolSize int

	// ConnectTimeout bounds the connectivity check on Open.
	ConnectTimeout time.Duration

	// QueryTimeout bounds each Run. Zero means none.
	QueryTimeout time.Duration
}

// ConnectionError reports a failure to open or close a connection. URI
// never carries credentials.
type ConnectionError struct {
	URI string
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("neo4j %s %s: %v", e.Op, e.URI, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// redactURI strips user info from uri.
func redactURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "<invalid uri>"
	}
	u.User = nil
	return u.String()
}

type driverFunc func(target string, auth neo4j.AuthToken, configurers ...func(*neo4j.Config)) (neo4j.DriverWithContext, error)

func newDriver(target string, auth neo4j.AuthToken, configurers ...func(*neo4j.Config)) (neo4j.DriverWithContext, error) {
	return neo4j.NewDriverWithContext(target, auth, configurers...)
}

// Factory opens a fresh Connection per call. Connections never share a
// driver.
type Factory struct {
	cfg       Config
	newDriver driverFunc
}

// NewFactory returns a factory for cfg.
func NewFactory(cfg Config) *Factory {
	return &Factory{cfg: cfg, newDriver: newDriver}
}

// Open creates a driver and verifies the server is reachable.
func (f *Factory) Open(ctx context.Context) (*Connection, error) {
	uri := redactURI(f.cfg.URI)
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanConnect,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String(telemetry.AttrDBSystem, "neo4j")))
	defer span.End()

	auth := neo4j.NoAuth()
	if f.cfg.Username != "" {
		auth = neo4j.BasicAuth(f.cfg.Username, f.cfg.Password, "")
	}

	drv, err := f.newDriver(f.cfg.URI, auth, func(c *neo4j.Config) {
		if f.cfg.MaxConnectionPoolSize > 0 {
			c.MaxConnectionPoolSize = f.cfg.MaxConnectionPoolSize
		}
		if f.cfg.ConnectTimeout > 0 {
			c.SocketConnectTimeout = f.cfg.ConnectTimeout
			c.ConnectionAcquisitionTimeout = f.cfg.ConnectTimeout
		}
	})
	if err != nil {
		err = &ConnectionError{URI: uri, Op: "open", Err: err}
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	verifyCtx := ctx
	if f.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		verifyCtx, cancel = context.WithTimeout(ctx, f.cfg.ConnectTimeout)
		defer cancel()
	}
	if err := drv.VerifyConnectivity(verifyCtx); err != nil {
		_ = drv.Close(context.WithoutCancel(ctx))
		err = &ConnectionError{URI: uri, Op: "open", Err: err}
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	conn := &Connection{
		id:     uuid.NewString(),
		uri:    uri,
		cfg:    f.cfg,
		driver: drv,
	}
	span.SetAttributes(telemetry.ConnectionID(conn.id))
	logger.InfoCtx(ctx, "Graph database connection opened",
		logger.ConnectionID(conn.id), logger.KeyURI, uri, logger.KeyDatabase, f.cfg.Database)
	return conn, nil
}

// Connection is one driver instance owned by a single generation.
type Connection struct {
	id     string
	uri    string
	cfg    Config
	driver neo4j.DriverWithContext

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// ID uniquely identifies the connection.
func (c *Connection) ID() string {
	return c.id
}

// URI returns the server URI without credentials.
func (c *Connection) URI() string {
	return c.uri
}

// Ping checks the server is reachable.
func (c *Connection) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.driver.VerifyConnectivity(ctx)
}

// Run executes a read statement and returns each record as a column map.
func (c *Connection) Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	ctx, span := telemetry.StartCypherSpan(ctx, cypher, telemetry.ConnectionID(c.id))
	defer span.End()

	if c.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.QueryTimeout)
		defer cancel()
	}

	opts := []neo4j.ExecuteQueryConfigurationOption{neo4j.ExecuteQueryWithReadersRouting()}
	if c.cfg.Database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(c.cfg.Database))
	}

	result, err := neo4j.ExecuteQuery(ctx, c.driver, cypher, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, fmt.Errorf("run cypher: %w", err)
	}

	rows := make([]map[string]any, 0, len(result.Records))
	for _, record := range result.Records {
		row := make(map[string]any, len(record.Keys))
		for i, key := range record.Keys {
			row[key] = normalize(record.Values[i])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Close releases the driver. It is idempotent; later calls return the
// first result.
func (c *Connection) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if err := c.driver.Close(ctx); err != nil {
			c.closeErr = &ConnectionError{URI: c.uri, Op: "close", Err: err}
			return
		}
		logger.Info("Graph database connection closed", logger.ConnectionID(c.id))
	})
	return c.closeErr
}

// normalize unwraps driver graph types into plain maps so callers never
// depend on the driver.
func normalize(v any) any {
	switch x := v.(type) {
	case neo4j.Node:
		props := make(map[string]any, len(x.Props))
		for k, p := range x.Props {
			props[k] = normalize(p)
		}
		return props
	case neo4j.Relationship:
		props := make(map[string]any, len(x.Props))
		for k, p := range x.Props {
			props[k] = normalize(p)
		}
		return props
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, p := range x {
			out[k] = normalize(p)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, p := range x {
			out[i] = normalize(p)
		}
		return out
	}
	return v
}
