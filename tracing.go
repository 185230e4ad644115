package wpool

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ifnotnil/wpool/v2"

func (p *Pool) startSpan(ctx context.Context, w *worker, r runnable) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "wpool.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("wpool.task_id", r.ID().String()),
			attribute.String("wpool.worker", w.name),
		),
	)
}

func endSpan(span trace.Span, err error) {
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case isCancelled(err):
		span.SetAttributes(attribute.Bool("wpool.cancelled", true))
		span.SetStatus(codes.Error, "cancelled")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func isCancelled(err error) bool { return errors.Is(err, ErrCancelled) }
