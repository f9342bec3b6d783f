package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/marmos91/hotschema/internal/logger"
)

// Response represents a standard health response wrapper.
//
// Health responses follow this structure for consistency:
//   - Status indicates the overall result ("healthy", "unhealthy")
//   - Timestamp provides response time for debugging and caching
//   - Data contains the response payload (optional)
//   - Error contains error details when Status indicates failure (optional)
type Response struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already out; all we can do is log.
		logger.Warn("Failed to encode response", logger.Err(err))
	}
}

func healthyResponse(data any) Response {
	return Response{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

func unhealthyResponse(errMsg string) Response {
	return Response{
		Status:    "unhealthy",
		Timestamp: time.Now().UTC(),
		Error:     errMsg,
	}
}

func unhealthyResponseWithData(errMsg string, data any) Response {
	r := unhealthyResponse(errMsg)
	r.Data = data
	return r
}
