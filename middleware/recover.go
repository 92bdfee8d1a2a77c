package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/graphgate/graphgate/job"
)

// Recover returns middleware that recovers from panics in the payload.
// Panics are converted to errors and logged with a stack trace, so a
// misbehaving payload never takes down its worker goroutine.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (val any, retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("compute job panicked",
					slog.String("job_kind", string(j.Kind)),
					slog.String("job_id", j.ID.String()),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				val = nil
				retErr = fmt.Errorf("panic in %s job: %v", j.Kind, r)
			}
		}()
		return next(ctx)
	}
}
