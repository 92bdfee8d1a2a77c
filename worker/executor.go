// Package worker provides the compute execution engine — an Executor
// that runs a job payload through middleware and maps the result to an
// outcome, and a Pool of long-lived goroutines pulling from the ageing
// priority queue.
package worker

import (
	"context"
	"log/slog"

	"github.com/graphgate/graphgate/cancellation"
	"github.com/graphgate/graphgate/job"
	"github.com/graphgate/graphgate/middleware"
)

// Executor runs a single job through the middleware chain and the
// payload, then classifies the result. It never retries: a job lives
// exactly once and its outcome is the caller's to act on.
type Executor struct {
	mw     middleware.Middleware
	logger *slog.Logger
}

// NewExecutor creates an Executor with the given middleware chain.
func NewExecutor(logger *slog.Logger, mws ...middleware.Middleware) *Executor {
	return &Executor{
		mw:     middleware.Chain(mws...),
		logger: logger,
	}
}

// Execute runs a job and returns its classified result. The payload is
// fully owned by the calling worker; no job state is shared between
// workers.
//
// Outcome mapping:
//   - payload returned a value              → executed_ok
//   - payload failed (incl. recovered panic) → executed_error
//   - token reported cancellation/deadline  → abandoned
//   - job already cancelled before starting → abandoned (not executed)
func (e *Executor) Execute(ctx context.Context, j *job.Job) job.Result {
	// The requester disconnected while the job sat in the queue:
	// skip the work entirely.
	if j.Token.Cancelled() {
		return job.Result{Outcome: job.OutcomeAbandoned, Err: cancellation.ErrCancelled}
	}

	terminal := func(ctx context.Context) (any, error) {
		if j.Payload == nil {
			return nil, nil
		}
		return j.Payload(ctx, j.Token)
	}

	val, err := e.mw(ctx, j, terminal)

	switch {
	case err == nil:
		return job.Result{Value: val, Outcome: job.OutcomeExecutedOK}
	case cancellation.IsCancellation(err):
		return job.Result{Outcome: job.OutcomeAbandoned, Err: err}
	default:
		return job.Result{Outcome: job.OutcomeExecutedError, Err: err}
	}
}
