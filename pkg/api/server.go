package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/marmos91/hotschema/internal/logger"
)

// Server is the HTTP server of one generation.
//
// Endpoints:
//   - POST/GET /graphql: GraphQL queries
//   - GET /health: Liveness probe
//   - GET /health/ready: Readiness probe (pings the connection)
//   - GET /health/schema: Serving generation and schema source
//
// Listen binds synchronously so a bind failure is reported to the caller,
// then serves in the background until Stop.
type Server struct {
	server   *http.Server
	config   Config
	listener net.Listener

	served   chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// NewServer creates a server for handler. Call Listen to start serving.
//
// Defaults are applied here so the server works when created directly
// (e.g., in tests).
func NewServer(config Config, handler http.Handler) *Server {
	config.applyDefaults()

	return &Server{
		server: &http.Server{
			Addr:         config.addr(),
			Handler:      handler,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		config: config,
		served: make(chan struct{}),
	}
}

// Listen binds the configured address and starts serving in a goroutine.
// ctx bounds the bind only.
func (s *Server) Listen(ctx context.Context) error {
	ln, err := listen(ctx, s.server.Addr, s.config.ReusePort)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	go func() {
		defer close(s.served)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("GraphQL server failed", logger.Addr(s.Addr()), logger.Err(err))
		}
	}()

	logger.InfoCtx(ctx, "GraphQL server listening", logger.Addr(s.Addr()))
	logger.DebugCtx(ctx, "Endpoints available",
		"graphql", fmt.Sprintf("http://%s/graphql", s.Addr()),
		"health", fmt.Sprintf("http://%s/health", s.Addr()),
	)
	return nil
}

// Stop stops accepting connections and waits for in-flight requests to
// finish, or for ctx to expire.
//
// Stop is safe to call multiple times and before Listen.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		logger.Debug("GraphQL server shutdown initiated", logger.Addr(s.Addr()))

		if err := s.server.Shutdown(ctx); err != nil {
			s.stopErr = fmt.Errorf("GraphQL server shutdown: %w", err)
			logger.Error("GraphQL server shutdown error", logger.Addr(s.Addr()), logger.Err(err))
			return
		}
		if s.listener != nil {
			<-s.served
		}
		logger.Info("GraphQL server stopped gracefully", logger.Addr(s.Addr()))
	})
	return s.stopErr
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}
