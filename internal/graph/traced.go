package graph

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/caseflow/caseflow/internal/types"
)

// Span names emitted by the traced client.
const (
	SpanGraphConnect = "caseflow.graph.connect"
	SpanGraphClose   = "caseflow.graph.close"
	SpanGraphSession = "caseflow.graph.session"
	SpanGraphRun     = "caseflow.graph.run"
	SpanGraphTx      = "caseflow.graph.tx"
)

// TracedClient wraps a Client with OpenTelemetry tracing.
// Every operation gets a span carrying the db.system attribute and, for
// query execution, the parameterized statement text. Parameter values are
// never attached to spans.
//
// Thread-safety: safe for concurrent access (delegates to inner client).
type TracedClient struct {
	inner  Client
	tracer trace.Tracer
}

// NewTracedClient wraps inner with tracing using the given tracer.
func NewTracedClient(inner Client, tracer trace.Tracer) *TracedClient {
	return &TracedClient{
		inner:  inner,
		tracer: tracer,
	}
}

// Connect traces the connection handshake.
func (c *TracedClient) Connect(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, SpanGraphConnect)
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "neo4j"))

	return finishSpan(span, c.inner.Connect(ctx))
}

// Close traces teardown.
func (c *TracedClient) Close(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, SpanGraphClose)
	defer span.End()

	return finishSpan(span, c.inner.Close(ctx))
}

// Health delegates without tracing; health probes are too chatty for spans.
func (c *TracedClient) Health(ctx context.Context) types.HealthStatus {
	return c.inner.Health(ctx)
}

// Session traces the pool checkout and returns a traced session.
func (c *TracedClient) Session(ctx context.Context, mode AccessMode) (Session, error) {
	ctx, span := c.tracer.Start(ctx, SpanGraphSession)
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "neo4j"),
		attribute.String("caseflow.graph.access_mode", mode.String()),
	)

	sess, err := c.inner.Session(ctx, mode)
	if err != nil {
		return nil, finishSpan(span, err)
	}
	span.SetStatus(codes.Ok, "")
	return &tracedSession{inner: sess, tracer: c.tracer}, nil
}

type tracedSession struct {
	inner  Session
	tracer trace.Tracer
}

func (s *tracedSession) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	ctx, span := s.tracer.Start(ctx, SpanGraphRun)
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "neo4j"),
		attribute.String("db.statement", cypher),
	)

	result, err := s.inner.Run(ctx, cypher, params)
	if err != nil {
		return Result{}, finishSpan(span, err)
	}
	span.SetAttributes(attribute.Int("caseflow.graph.records", len(result.Records)))
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (s *tracedSession) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.inner.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &tracedTx{inner: tx, tracer: s.tracer}, nil
}

func (s *tracedSession) Close(ctx context.Context) error {
	return s.inner.Close(ctx)
}

type tracedTx struct {
	inner  Tx
	tracer trace.Tracer
}

func (t *tracedTx) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	ctx, span := t.tracer.Start(ctx, SpanGraphRun)
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "neo4j"),
		attribute.String("db.statement", cypher),
	)

	result, err := t.inner.Run(ctx, cypher, params)
	if err != nil {
		return Result{}, finishSpan(span, err)
	}
	span.SetAttributes(attribute.Int("caseflow.graph.records", len(result.Records)))
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (t *tracedTx) Commit(ctx context.Context) error {
	ctx, span := t.tracer.Start(ctx, SpanGraphTx)
	defer span.End()
	span.SetAttributes(attribute.String("caseflow.graph.tx_outcome", "commit"))

	return finishSpan(span, t.inner.Commit(ctx))
}

func (t *tracedTx) Rollback(ctx context.Context) error {
	ctx, span := t.tracer.Start(ctx, SpanGraphTx)
	defer span.End()
	span.SetAttributes(attribute.String("caseflow.graph.tx_outcome", "rollback"))

	return finishSpan(span, t.inner.Rollback(ctx))
}

// finishSpan records err on the span and sets its status.
func finishSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
