package middleware

import (
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	schedule "github.com/YJBallestero/schedule"
)

// meterName is the instrumentation scope name for schedule metrics.
const meterName = "github.com/YJBallestero/schedule"

// Metrics returns middleware that records per-event run metrics using the
// global OTel MeterProvider. Without a configured provider the instruments
// are noops and the middleware is a pass-through.
//
// Instruments:
//   - schedule.event.duration (Float64Histogram): run time in seconds,
//     with attributes: event, status ("ok", "error", "skipped")
//   - schedule.event.runs (Int64Counter): total runs, same attributes
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter,
// for injecting a specific MeterProvider in tests.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Instruments are created once; on error the OTel API guarantees a
	// noop fallback.
	duration, dErr := meter.Float64Histogram(
		"schedule.event.duration",
		metric.WithDescription("Duration of event runs in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr

	runs, rErr := meter.Int64Counter(
		"schedule.event.runs",
		metric.WithDescription("Total number of event runs"),
		metric.WithUnit("{run}"),
	)
	_ = rErr

	return func(ctx *schedule.Context, job schedule.Job, next Handler) (any, error) {
		start := time.Now()
		result, err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		switch {
		case errors.Is(err, schedule.ErrEventSkipped):
			status = "skipped"
		case err != nil:
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("event", job.Summary()),
			attribute.String("status", status),
		)
		duration.Record(ctx, elapsed, attrs)
		runs.Add(ctx, 1, attrs)

		return result, err
	}
}
