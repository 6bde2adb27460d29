package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	schedule "github.com/YJBallestero/schedule"
)

// Recover returns middleware that recovers from panics in callback events
// and predicates. Panics are converted to errors and logged with a stack
// trace so one misbehaving event cannot take down the worker.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx *schedule.Context, job schedule.Job, next Handler) (result any, retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("event panicked",
					slog.String("event", job.Summary()),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				retErr = fmt.Errorf("panic in event %s: %v", job.Summary(), r)
			}
		}()
		return next(ctx)
	}
}
