package lifecycle

import (
	"context"
	"time"

	"github.com/marmos91/hotschema/pkg/schema"
	"github.com/marmos91/hotschema/pkg/source"
)

// State is the lifecycle state of a generation.
type State int

const (
	StateBooting State = iota
	StateLive
	StateDraining
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateBooting:
		return "booting"
	case StateLive:
		return "live"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Boot steps, in order.
const (
	StepFetch   = "fetch"
	StepBuild   = "build"
	StepConnect = "connect"
	StepListen  = "listen"
)

// Generation is the orchestrator's record of one serving stack. All
// fields are guarded by the orchestrator lock; other packages only see
// Snapshots.
type Generation struct {
	ID   uint64
	UUID string

	state    State
	artifact *source.Artifact
	schema   *schema.Schema
	conn     Connection
	listener Listener
	poller   poller

	startedAt time.Time
	liveAt    time.Time
	closedAt  time.Time
}

// Snapshot is a read-only copy of a generation's state.
type Snapshot struct {
	ID           uint64         `json:"generation"`
	UUID         string         `json:"generation_id"`
	State        State          `json:"state"`
	Source       string         `json:"source,omitempty"`
	Digest       string         `json:"digest,omitempty"`
	RetrievedAt  time.Time      `json:"retrieved_at,omitempty"`
	ConnectionID string         `json:"connection_id,omitempty"`
	Addr         string         `json:"addr,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	LiveAt       time.Time      `json:"live_at,omitempty"`
	ClosedAt     time.Time      `json:"closed_at,omitempty"`
	Schema       *schema.Schema `json:"-"`
}

func (g *Generation) snapshot() Snapshot {
	s := Snapshot{
		ID:        g.ID,
		UUID:      g.UUID,
		State:     g.state,
		Schema:    g.schema,
		StartedAt: g.startedAt,
		LiveAt:    g.liveAt,
		ClosedAt:  g.closedAt,
	}
	if g.artifact != nil {
		s.Source = g.artifact.Source
		s.Digest = g.artifact.Digest
		s.RetrievedAt = g.artifact.RetrievedAt
	}
	if g.conn != nil {
		s.ConnectionID = g.conn.ID()
	}
	if g.listener != nil {
		s.Addr = g.listener.Addr()
	}
	return s
}

type generationKey struct{}

// WithGeneration tags ctx with the generation being booted. The
// orchestrator passes such a context to ServerFactory.Start.
func WithGeneration(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, generationKey{}, id)
}

// GenerationFromContext returns the generation set by WithGeneration.
func GenerationFromContext(ctx context.Context) (uint64, bool) {
	id, ok := ctx.Value(generationKey{}).(uint64)
	return id, ok
}
