package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"conductor/internal/agent/ports"
)

const (
	traceScope    = "conductor.orchestrator"
	traceSpanTask = "conductor.task.run"
)

func startTaskSpan(ctx context.Context, taskID, role string) (context.Context, trace.Span) {
	return otel.Tracer(traceScope).Start(ctx, traceSpanTask, trace.WithAttributes(
		attribute.String("conductor.task_id", taskID),
		attribute.String("conductor.role", role),
	))
}

func endTaskSpan(span trace.Span, result *ports.AgentResult) {
	if result == nil || !result.Success {
		reason := "task failed"
		if result != nil && result.Error != "" {
			reason = result.Error
		}
		span.SetStatus(codes.Error, reason)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
