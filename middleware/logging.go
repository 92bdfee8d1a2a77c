package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/graphgate/graphgate/job"
)

// Logging returns middleware that logs job start and completion.
// Start is logged at Debug: under load the scheduler runs thousands of
// jobs per second and an Info line per job would drown the log.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (any, error) {
		logger.Debug("compute job started",
			slog.String("job_kind", string(j.Kind)),
			slog.String("job_id", j.ID.String()),
			slog.String("priority", j.Priority.String()),
		)

		start := time.Now()
		val, err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Debug("compute job failed",
				slog.String("job_kind", string(j.Kind)),
				slog.String("job_id", j.ID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Debug("compute job completed",
				slog.String("job_kind", string(j.Kind)),
				slog.String("job_id", j.ID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return val, err
	}
}
