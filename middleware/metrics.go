package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/graphgate/graphgate/job"
)

// meterName is the instrumentation scope name for compute-core metrics.
const meterName = "github.com/graphgate/graphgate"

// Metrics returns middleware that records per-job execution metrics
// using the global OTel MeterProvider. If no MeterProvider is
// configured, noop instruments are used and this middleware becomes a
// pass-through.
//
// Instruments:
//   - graphgate.compute_jobs.duration (Float64Histogram): execution
//     time in seconds, excluding queue wait, with attributes:
//     job_kind, status ("ok" or "error")
//   - graphgate.compute_jobs.active_jobs (Int64UpDownCounter): jobs
//     currently executing, by job_kind
//   - graphgate.compute_jobs.deadline_exceeded (Int64Counter): jobs
//     that ran past their deadline under measure mode, by job_kind
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Create instruments once at middleware construction time.
	// OTel instruments are safe for concurrent use. On error, the API
	// returns noop instruments so the middleware degrades gracefully.
	duration, dErr := meter.Float64Histogram(
		"graphgate.compute_jobs.duration",
		metric.WithDescription("Duration of compute job execution in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	active, aErr := meter.Int64UpDownCounter(
		"graphgate.compute_jobs.active_jobs",
		metric.WithDescription("Number of compute jobs in progress"),
		metric.WithUnit("{job}"),
	)
	_ = aErr // noop fallback guaranteed by OTel API contract

	exceeded, eErr := meter.Int64Counter(
		"graphgate.compute_jobs.deadline_exceeded",
		metric.WithDescription("Compute jobs that ran past their deadline under measure mode"),
		metric.WithUnit("{job}"),
	)
	_ = eErr // noop fallback guaranteed by OTel API contract

	return func(ctx context.Context, j *job.Job, next Handler) (any, error) {
		kindAttr := metric.WithAttributes(
			attribute.String("job_kind", string(j.Kind)),
		)
		active.Add(ctx, 1, kindAttr)

		start := time.Now()
		val, err := next(ctx)
		elapsed := time.Since(start).Seconds()

		active.Add(ctx, -1, kindAttr)

		if j.Token != nil && j.Token.Exceeded() {
			exceeded.Add(ctx, 1, kindAttr)
		}

		status := "ok"
		if err != nil {
			status = "error"
		}
		duration.Record(ctx, elapsed, metric.WithAttributes(
			attribute.String("job_kind", string(j.Kind)),
			attribute.String("status", status),
		))

		return val, err
	}
}
