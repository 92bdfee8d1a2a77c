// Package middleware provides composable middleware for compute job
// execution.
//
// A [Middleware] is a function that wraps a job payload. Middleware are
// composed into a chain using [Chain] and applied around each payload
// run on a worker. They are applied right-to-left: the first middleware
// in the slice is the outermost wrapper.
//
//	// logging → recover → payload
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] — logs job kind, id, duration, and outcome at each execution
//   - [Recover] — catches payload panics and converts them to errors so a
//     worker goroutine never dies
//   - [Tracing] — wraps execution in an OpenTelemetry span
//   - [Metrics] — records per-kind execution duration and outcome counters
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware
