package middleware

import (
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	schedule "github.com/YJBallestero/schedule"
)

// tracerName is the instrumentation scope name for schedule tracing.
const tracerName = "github.com/YJBallestero/schedule"

// Tracing returns middleware that wraps each event run in an OpenTelemetry
// span. Without a globally configured TracerProvider the noop tracer makes
// this a pass-through.
//
// Span attributes: schedule.event, schedule.mutex_name, schedule.skipped.
// On error the span status is codes.Error with the error message.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer,
// for injecting a specific TracerProvider in tests.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx *schedule.Context, job schedule.Job, next Handler) (any, error) {
		spanCtx, span := tracer.Start(ctx.Context, "schedule.event.run",
			trace.WithAttributes(
				attribute.String("schedule.event", job.Summary()),
				attribute.String("schedule.mutex_name", job.MutexName()),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		// Thread the span context through to predicates and callbacks.
		inner := *ctx
		inner.Context = spanCtx
		result, err := next(&inner)

		switch {
		case errors.Is(err, schedule.ErrEventSkipped):
			span.SetAttributes(attribute.Bool("schedule.skipped", true))
			span.SetStatus(codes.Ok, "")
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		default:
			span.SetStatus(codes.Ok, "")
		}

		return result, err
	}
}
