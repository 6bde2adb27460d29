// Package middleware provides composable middleware for scheduled event
// runs. Middleware wraps Run calls synchronously at the host layer with
// cross-cutting concerns such as logging, panic recovery, metrics, and
// tracing, without touching the core run protocol: a skipped event still
// surfaces ErrEventSkipped, and callback errors still propagate.
package middleware

import (
	schedule "github.com/YJBallestero/schedule"
)

// Handler is the terminal function that executes the event.
type Handler func(ctx *schedule.Context) (any, error)

// Middleware wraps a Handler with cross-cutting logic. It receives the run
// context, the event being executed, and the next handler. Middleware MUST
// call next to continue the chain unless it is short-circuiting.
type Middleware func(ctx *schedule.Context, job schedule.Job, next Handler) (any, error)

// Chain composes multiple middleware into one. Middleware apply
// right-to-left: the first in the list is the outermost wrapper.
//
// Example: Chain(logging, recover) logs around the recovery wrapper.
func Chain(mws ...Middleware) Middleware {
	return func(ctx *schedule.Context, job schedule.Job, next Handler) (any, error) {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx *schedule.Context) (any, error) {
				return mw(ctx, job, prev)
			}
		}
		return h(ctx)
	}
}
