package graphql

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracerName identifies spans emitted by this package.
const tracerName = "github.com/iabdelkareem/graphql-go-client/graphql"

// startRequestSpan opens the top-level span for one logical Fetch/Request/
// RequestStream call. It is the OpenTelemetry-idiomatic replacement for the
// teacher's httptrace.ClientTrace connection/DNS/TLS narration: same
// concern (observe the lifecycle of one call), ecosystem-standard
// mechanism.
func (c *Client) startRequestSpan(ctx context.Context, op string, correlationID string) (context.Context, trace.Span) {
	tracer := c.tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return tracer.Start(ctx, "graphql."+op,
		trace.WithAttributes(
			attribute.String("graphql.correlation_id", correlationID),
		),
	)
}

// startAttemptSpan opens a child span for one retry attempt.
func (c *Client) startAttemptSpan(ctx context.Context, attempt int) (context.Context, trace.Span) {
	tracer := c.tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return tracer.Start(ctx, "graphql.attempt",
		trace.WithAttributes(attribute.Int("graphql.attempt", attempt)),
	)
}

// startPartSpan opens a child span for one processed batch of multipart
// parts; index counts batches, not individual parts.
func (c *Client) startPartSpan(ctx context.Context, index int) (context.Context, trace.Span) {
	tracer := c.tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return tracer.Start(ctx, "graphql.part",
		trace.WithAttributes(attribute.Int("graphql.part_index", index)),
	)
}
