package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/marmos91/hotschema/internal/logger"
	"github.com/marmos91/hotschema/pkg/graph"
)

// Request outcomes reported to RequestMetrics.
const (
	OutcomeSuccess = "success"

	// OutcomeError means the query ran but some fields failed
	OutcomeError = "error"

	// OutcomeInvalid means the request was rejected before execution
	OutcomeInvalid = "invalid"
)

// RequestMetrics receives one observation per GraphQL request. Optional.
type RequestMetrics interface {
	ObserveGraphQLRequest(outcome string, d time.Duration)
}

// GraphQLHandler serves GraphQL over HTTP for one executor.
type GraphQLHandler struct {
	executor *graph.Executor
	metrics  RequestMetrics
}

// NewGraphQLHandler creates a handler. metrics may be nil.
func NewGraphQLHandler(executor *graph.Executor, metrics RequestMetrics) *GraphQLHandler {
	return &GraphQLHandler{executor: executor, metrics: metrics}
}

// ServeHTTP handles GET /graphql?query=... and POST /graphql with a JSON
// or application/graphql body.
//
// Requests rejected before execution (malformed body, parse or validation
// errors) get 400; executed queries get 200 even when fields failed.
func (h *GraphQLHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	req, status, err := decodeRequest(r)
	if err != nil {
		logger.DebugCtx(ctx, "Invalid GraphQL request", logger.Err(err))
		h.observe(OutcomeInvalid, start)
		if status == http.StatusMethodNotAllowed {
			w.Header().Set("Allow", allowedMethods)
		}
		writeJSON(w, status, &graph.Response{Errors: gqlerror.List{gqlerror.Errorf("%s", err)}})
		return
	}

	if lc := logger.FromContext(ctx); lc != nil && req.OperationName != "" {
		ctx = logger.WithContext(ctx, lc.WithOperation(req.OperationName))
	}
	logger.DebugCtx(ctx, "GraphQL request", "query", req.Query)

	resp := h.executor.Execute(ctx, req)

	status = http.StatusOK
	outcome := OutcomeSuccess
	switch {
	case resp.Data == nil && len(resp.Errors) > 0:
		status = http.StatusBadRequest
		outcome = OutcomeInvalid
		logger.DebugCtx(ctx, "GraphQL request rejected", logger.Err(resp.Errors))
	case len(resp.Errors) > 0:
		outcome = OutcomeError
		logger.WarnCtx(ctx, "GraphQL request completed with errors", logger.Err(resp.Errors))
	}

	h.observe(outcome, start)
	writeJSON(w, status, resp)
}

func (h *GraphQLHandler) observe(outcome string, start time.Time) {
	if h.metrics != nil {
		h.metrics.ObserveGraphQLRequest(outcome, time.Since(start))
	}
}

const allowedMethods = "GET, POST"

// decodeRequest reads a GraphQL request and the status to use if it is
// malformed.
func decodeRequest(r *http.Request) (graph.Request, int, error) {
	var req graph.Request

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req.Query = q.Get("query")
		req.OperationName = q.Get("operationName")
		if raw := q.Get("variables"); raw != "" {
			if err := decodeJSON([]byte(raw), &req.Variables); err != nil {
				return req, http.StatusBadRequest, fmt.Errorf("variables must be a JSON object: %w", err)
			}
		}
		return req, 0, nil

	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return req, http.StatusRequestEntityTooLarge,
					fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
			}
			return req, http.StatusBadRequest, fmt.Errorf("read request body: %w", err)
		}

		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "application/graphql" {
			req.Query = string(body)
			return req, 0, nil
		}
		if err := decodeJSON(body, &req); err != nil {
			return req, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err)
		}
		return req, 0, nil

	default:
		return req, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method)
	}
}

// decodeJSON keeps numbers as json.Number so Int variables stay exact.
// data must hold exactly one JSON value.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}
