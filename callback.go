package schedule

import (
	"fmt"
	"strings"

	"github.com/YJBallestero/schedule/lock"
)

// Callable is the normalized form of an in-process callback: it receives
// the run context and the parameters bound at registration.
type Callable func(ctx *Context, params ...any) (any, error)

// CallResolver maps a string callback identifier to a Callable. Hosts that
// register callbacks by name install one with WithCallResolver.
type CallResolver func(name string) (Callable, bool)

// CallbackEvent is an event whose action is an in-process callback instead
// of an external command. It shares the due-time, filter, and overlap
// machinery with Event but always executes synchronously: there is no
// process to detach.
type CallbackEvent struct {
	Event

	invoke   Callable
	name     string // set when the callback was a string identifier
	params   []any
	resolver CallResolver
}

func newCallbackEvent(s *Scheduler, callback any, params []any) (*CallbackEvent, error) {
	e := &CallbackEvent{
		Event:    *newEvent(s, ""),
		params:   params,
		resolver: s.resolver,
	}

	switch fn := callback.(type) {
	case Callable:
		e.invoke = fn
	case func(ctx *Context, params ...any) (any, error):
		e.invoke = fn
	case func(ctx *Context) (any, error):
		e.invoke = func(ctx *Context, _ ...any) (any, error) { return fn(ctx) }
	case func(ctx *Context) error:
		e.invoke = func(ctx *Context, _ ...any) (any, error) { return nil, fn(ctx) }
	case string:
		e.name = fn
		e.description = fn
	default:
		return nil, fmt.Errorf("%w: got %T", ErrNotInvocable, callback)
	}
	return e, nil
}

// Run invokes the callback with its bound parameters and the run context,
// then the after-callbacks in order, then emits after-run. The first return
// value is the callback's own result.
func (e *CallbackEvent) Run(ctx *Context) (any, error) {
	// Resolve string identifiers before touching the overlap gate; a
	// resolution failure must not leave the mutex held.
	invoke := e.invoke
	if invoke == nil {
		resolved, ok := e.resolve()
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrCallableUnresolved, e.name)
		}
		invoke = resolved
	}

	e.emitter.BeforeRun(ctx, e)
	if e.preventOverlap {
		ok, err := e.mutex.Acquire(ctx, e.MutexName())
		if err != nil {
			return nil, fmt.Errorf("schedule: acquire %q: %w", e.MutexName(), err)
		}
		if !ok {
			return nil, ErrEventSkipped
		}
	}

	result, runErr := invoke(ctx, e.params...)

	// Callbacks run even when the callback itself failed, so the overlap
	// release always happens.
	if err := e.runCallbacks(ctx); err != nil {
		return result, err
	}
	e.emitter.AfterRun(ctx, e)
	return result, runErr
}

func (e *CallbackEvent) resolve() (Callable, bool) {
	if e.resolver == nil {
		return nil, false
	}
	return e.resolver(e.name)
}

// WithoutOverlapping prevents concurrent runs of this callback event. A
// callback has no command line to hash, so the mutex name comes from the
// description alone; requesting overlap prevention without one fails with
// ErrDescriptionRequired rather than silently sharing a degenerate name.
func (e *CallbackEvent) WithoutOverlapping() (*CallbackEvent, error) {
	if strings.TrimSpace(e.description) == "" {
		return e, ErrDescriptionRequired
	}
	if e.preventOverlap {
		return e, nil
	}
	e.preventOverlap = true
	e.Then(func(ctx *Context) error {
		return e.mutex.Release(ctx, e.MutexName())
	})
	return e, nil
}

// OnOneServer is WithoutOverlapping for multi-host deployments.
func (e *CallbackEvent) OnOneServer() (*CallbackEvent, error) {
	if !lock.CrossHost(e.mutex) {
		return e, ErrSingleServerLock
	}
	return e.WithoutOverlapping()
}

// MutexName derives the overlap lock name from the description.
func (e *CallbackEvent) MutexName() string {
	return mutexName(e.description)
}

// Named sets the event description. It shadows the embedded Named so the
// chain keeps its *CallbackEvent type.
func (e *CallbackEvent) Named(description string) *CallbackEvent {
	e.description = description
	return e
}
