package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on hotschema spans.
const (
	AttrGeneration   = "hotschema.generation"
	AttrGenerationID = "hotschema.generation_id"
	AttrStep         = "hotschema.step"
	AttrRestartKind  = "hotschema.restart_kind"

	AttrSource = "schema.source"
	AttrDigest = "schema.digest"
	AttrBytes  = "schema.bytes"

	AttrConnectionID = "db.connection_id"
	AttrDBSystem     = "db.system"
	AttrDBStatement  = "db.statement"

	AttrOperationName = "graphql.operation.name"
	AttrOperationType = "graphql.operation.type"
)

// Span names.
const (
	SpanBoot    = "lifecycle.boot"
	SpanDrain   = "lifecycle.drain"
	SpanRestart = "lifecycle.restart"

	SpanFetch   = "schema.fetch"
	SpanConnect = "db.connect"

	SpanGraphQLRequest = "graphql.request"
	SpanCypherQuery    = "db.cypher"
)

// Generation returns an attribute for a serving generation number
func Generation(n uint64) attribute.KeyValue {
	return attribute.Int64(AttrGeneration, int64(n))
}

// GenerationID returns an attribute for a serving generation UUID
func GenerationID(id string) attribute.KeyValue {
	return attribute.String(AttrGenerationID, id)
}

// Step returns an attribute for a lifecycle step name
func Step(step string) attribute.KeyValue {
	return attribute.String(AttrStep, step)
}

// RestartKind returns an attribute for the restart discipline (soft, hard)
func RestartKind(kind string) attribute.KeyValue {
	return attribute.String(AttrRestartKind, kind)
}

// Source returns an attribute for a schema source descriptor
func Source(source string) attribute.KeyValue {
	return attribute.String(AttrSource, source)
}

// Digest returns an attribute for an artifact digest
func Digest(digest string) attribute.KeyValue {
	return attribute.String(AttrDigest, digest)
}

// Bytes returns an attribute for an artifact size
func Bytes(n int) attribute.KeyValue {
	return attribute.Int(AttrBytes, n)
}

// ConnectionID returns an attribute for a database connection identifier
func ConnectionID(id string) attribute.KeyValue {
	return attribute.String(AttrConnectionID, id)
}

// OperationName returns an attribute for a GraphQL operation name
func OperationName(name string) attribute.KeyValue {
	return attribute.String(AttrOperationName, name)
}

// OperationType returns an attribute for a GraphQL operation type
func OperationType(op string) attribute.KeyValue {
	return attribute.String(AttrOperationType, op)
}

// StartLifecycleSpan starts a span for a generation lifecycle step.
func StartLifecycleSpan(ctx context.Context, name string, generation uint64, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{Generation(generation)}, attrs...)
	return StartSpan(ctx, name, trace.WithAttributes(allAttrs...))
}

// StartCypherSpan starts a client span for a Cypher statement.
func StartCypherSpan(ctx context.Context, statement string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{
		attribute.String(AttrDBSystem, "neo4j"),
		attribute.String(AttrDBStatement, statement),
	}, attrs...)
	return StartSpan(ctx, SpanCypherQuery,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(allAttrs...),
	)
}
