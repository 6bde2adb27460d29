package middleware

import (
	"errors"
	"log/slog"
	"time"

	schedule "github.com/YJBallestero/schedule"
)

// Logging returns middleware that logs event start and completion. Skipped
// events log at debug level rather than as failures; contention is the
// overlap gate doing its job.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx *schedule.Context, job schedule.Job, next Handler) (any, error) {
		logger.Info("event started",
			slog.String("event", job.Summary()),
		)

		start := time.Now()
		result, err := next(ctx)
		elapsed := time.Since(start)

		switch {
		case errors.Is(err, schedule.ErrEventSkipped):
			logger.Debug("event skipped, mutex held",
				slog.String("event", job.Summary()),
			)
		case err != nil:
			logger.Error("event failed",
				slog.String("event", job.Summary()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		default:
			logger.Info("event completed",
				slog.String("event", job.Summary()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return result, err
	}
}
