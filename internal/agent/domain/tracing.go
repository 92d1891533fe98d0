package domain

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	traceScopeLoop = "conductor.loop"

	traceSpanLLMGenerate = "conductor.llm.generate"
	traceSpanToolExecute = "conductor.tool.execute"

	traceAttrTaskID    = "conductor.task_id"
	traceAttrRole      = "conductor.role"
	traceAttrIteration = "conductor.iteration"
	traceAttrStatus    = "conductor.status"
	traceAttrToolName  = "conductor.tool_name"
	traceAttrModel     = "conductor.llm.model"
)

func startLoopSpan(ctx context.Context, spanName, taskID, role string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	spanAttrs := make([]attribute.KeyValue, 0, len(attrs)+2)
	if taskID != "" {
		spanAttrs = append(spanAttrs, attribute.String(traceAttrTaskID, taskID))
	}
	if role != "" {
		spanAttrs = append(spanAttrs, attribute.String(traceAttrRole, role))
	}
	spanAttrs = append(spanAttrs, attrs...)

	return otel.Tracer(traceScopeLoop).Start(ctx, spanName, trace.WithAttributes(spanAttrs...))
}

func markSpanResult(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(traceAttrStatus, "error"))
		return
	}
	span.SetStatus(codes.Ok, "")
	span.SetAttributes(attribute.String(traceAttrStatus, "success"))
}
