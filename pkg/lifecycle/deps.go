package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/hotschema/pkg/drift"
	"github.com/marmos91/hotschema/pkg/schema"
	"github.com/marmos91/hotschema/pkg/source"
)

var (
	// ErrStopped is returned once a hard stop has begun.
	ErrStopped = errors.New("orchestrator stopped")

	// ErrNotStarted is returned by Restart before Start succeeded.
	ErrNotStarted = errors.New("orchestrator not started")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("orchestrator already started")

	// ErrRestartInProgress is returned by Restart while another restart
	// is in flight.
	ErrRestartInProgress = errors.New("restart already in progress")

	// ErrConnectionReused is returned when the connection factory hands
	// out a connection another generation already owned.
	ErrConnectionReused = errors.New("connection reused across generations")
)

// BootError wraps the failure of one boot step.
type BootError struct {
	Generation uint64
	Step       string
	Err        error
}

func (e *BootError) Error() string {
	return fmt.Sprintf("boot generation %d: %s: %v", e.Generation, e.Step, e.Err)
}

func (e *BootError) Unwrap() error {
	return e.Err
}

// Connection is a backing store connection owned by one generation.
type Connection interface {
	// ID uniquely identifies the connection instance.
	ID() string

	// Close releases the connection. It must be idempotent.
	Close(ctx context.Context) error
}

// ConnectionFactory opens a new connection per call.
type ConnectionFactory interface {
	Open(ctx context.Context) (Connection, error)
}

// ConnectionFactoryFunc adapts a function to ConnectionFactory.
type ConnectionFactoryFunc func(ctx context.Context) (Connection, error)

// Open implements ConnectionFactory.
func (f ConnectionFactoryFunc) Open(ctx context.Context) (Connection, error) {
	return f(ctx)
}

// Listener is a bound serving instance.
type Listener interface {
	// Stop stops accepting work and returns once in-flight requests have
	// finished or ctx expires. It must be idempotent.
	Stop(ctx context.Context) error

	// Addr is the bound address.
	Addr() string
}

// ServerFactory binds a serving instance for a schema and connection.
// Start must return only once the listener is bound, so a bind failure is
// a boot failure. ctx bounds the bind, not the server's lifetime.
type ServerFactory interface {
	Start(ctx context.Context, s *schema.Schema, conn Connection) (Listener, error)
}

// Metrics receives lifecycle and poll observations. Optional.
type Metrics interface {
	drift.Metrics

	// ObserveBoot records a boot attempt; step is empty on success.
	ObserveBoot(d time.Duration, step string)

	// ObserveRestart records a restart with its kind (soft, hard) and
	// outcome (success, failure, coalesced).
	ObserveRestart(kind, outcome string)

	// SetLiveGeneration records the live generation, 0 for none.
	SetLiveGeneration(id uint64)
}

// Deps are the collaborators a generation is booted from.
type Deps struct {
	Fetcher     source.Fetcher
	Builder     schema.Builder
	Connections ConnectionFactory
	Servers     ServerFactory
	Metrics     Metrics
}

func (d Deps) validate() error {
	var errs []error
	if d.Fetcher == nil {
		errs = append(errs, errors.New("missing fetcher"))
	}
	if d.Builder == nil {
		errs = append(errs, errors.New("missing schema builder"))
	}
	if d.Connections == nil {
		errs = append(errs, errors.New("missing connection factory"))
	}
	if d.Servers == nil {
		errs = append(errs, errors.New("missing server factory"))
	}
	return errors.Join(errs...)
}

// DefaultShutdownTimeout bounds Run's hard stop and background drains.
const DefaultShutdownTimeout = 30 * time.Second

// Options tune the orchestrator.
type Options struct {
	// PollInterval is the drift poll interval, at least drift.MinInterval.
	PollInterval time.Duration

	// ShutdownTimeout bounds the drain of a replaced generation and the
	// hard stop issued by Run.
	ShutdownTimeout time.Duration
}

// Restart kinds and outcomes reported to Metrics.
const (
	RestartSoft = "soft"
	RestartHard = "hard"

	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCoalesced = "coalesced"
)

// poller is the part of drift.Poller the orchestrator drives.
type poller interface {
	Stop()
	Active() bool
}

func startDriftPoller(ctx context.Context, cfg drift.Config) (poller, error) {
	p, err := drift.Start(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}
