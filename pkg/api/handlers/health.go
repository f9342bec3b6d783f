package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/marmos91/hotschema/pkg/schema"
)

// Pinger checks the backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// readinessTimeout bounds the store ping of a readiness probe.
const readinessTimeout = 5 * time.Second

// HealthHandler handles health check endpoints for one generation.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: Is the server process running?
//   - Readiness probe: Can this generation reach its store?
//   - Schema: Which generation and schema source is serving
type HealthHandler struct {
	pinger     Pinger
	schema     *schema.Schema
	generation uint64
}

// NewHealthHandler creates a new health handler.
//
// pinger may be nil, in which case readiness only reports the schema.
func NewHealthHandler(pinger Pinger, s *schema.Schema, generation uint64) *HealthHandler {
	return &HealthHandler{pinger: pinger, schema: s, generation: generation}
}

// Liveness handles GET /health - simple liveness probe.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"service":    "hotschema",
		"generation": h.generation,
	}))
}

// Readiness handles GET /health/ready - readiness probe.
//
// Returns 503 Service Unavailable when no schema is loaded or the store
// ping fails.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.schema == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("schema not loaded"))
		return
	}

	data := map[string]any{"generation": h.generation}
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		start := time.Now()
		err := h.pinger.Ping(ctx)
		data["store_latency"] = time.Since(start).String()
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, unhealthyResponseWithData(err.Error(), data))
			return
		}
	}

	writeJSON(w, http.StatusOK, healthyResponse(data))
}

// SchemaInfo describes the schema a generation serves.
type SchemaInfo struct {
	Generation  uint64    `json:"generation"`
	Source      string    `json:"source"`
	Digest      string    `json:"digest"`
	Bytes       int       `json:"bytes"`
	RetrievedAt time.Time `json:"retrieved_at"`
	BuiltAt     time.Time `json:"built_at"`
	Types       int       `json:"types"`
}

// Schema handles GET /health/schema.
func (h *HealthHandler) Schema(w http.ResponseWriter, r *http.Request) {
	if h.schema == nil || h.schema.Artifact == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("schema not loaded"))
		return
	}

	a := h.schema.Artifact
	info := SchemaInfo{
		Generation:  h.generation,
		Source:      a.Source,
		Digest:      a.Digest,
		Bytes:       a.Size(),
		RetrievedAt: a.RetrievedAt,
		BuiltAt:     h.schema.BuiltAt,
	}
	if h.schema.AST != nil {
		info.Types = len(h.schema.NodeTypes())
	}
	writeJSON(w, http.StatusOK, healthyResponse(info))
}
