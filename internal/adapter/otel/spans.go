package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "switchboard"

// StartSendSpan starts a span for a message send.
func StartSendSpan(ctx context.Context, from, to, kind string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "send",
		trace.WithAttributes(
			attribute.String("message.from", from),
			attribute.String("message.to", to),
			attribute.String("message.kind", kind),
		),
	)
}

// StartDispatchSpan starts a span for a JSON-RPC dispatch.
func StartDispatchSpan(ctx context.Context, method, fromAgent string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "dispatch",
		trace.WithAttributes(
			attribute.String("rpc.method", method),
			attribute.String("rpc.from_agent", fromAgent),
		),
	)
}

// StartDelegateSpan starts a span for a task delegation.
func StartDelegateSpan(ctx context.Context, taskID, from, to string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "delegate",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("task.from", from),
			attribute.String("task.to", to),
		),
	)
}
