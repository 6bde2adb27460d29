package schedule

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/YJBallestero/schedule/expr"
	"github.com/YJBallestero/schedule/lock"
)

// Predicate decides whether an event may run this pass.
type Predicate func(ctx *Context) bool

// Callback is invoked after an event's action completes, in registration
// order. A callback error propagates to Run's caller and stops later
// callbacks.
type Callback func(ctx *Context) error

// Job is one schedulable unit owned by a Scheduler: a command Event or a
// CallbackEvent.
type Job interface {
	// IsDue reports whether the job should run at the context instant.
	IsDue(ctx *Context) (bool, error)

	// Run executes the job. It returns ErrEventSkipped when overlap
	// prevention found the mutex held elsewhere. For callback events the
	// first return value is the callback's result; command events return
	// nil.
	Run(ctx *Context) (any, error)

	// MutexName is the stable overlap-prevention lock name. The same
	// logical job derives the same name on every host.
	MutexName() string

	// Summary identifies the job in logs and mail subjects.
	Summary() string
}

// Event is a schedulable external command with a fluent configuration
// surface. Builder methods mutate and return the same event, so a
// registration reads as one chain:
//
//	s.Exec("certbot renew").Daily().WithoutOverlapping()
//
// Events are created through Scheduler factory methods, which inject the
// shared lock backend, process runner, and emitter.
type Event struct {
	mutex   lock.Backend
	runner  ProcessRunner
	emitter Emitter

	command     string
	expression  expr.Expression
	location    *time.Location
	user        string
	description string

	filters []Predicate
	rejects []Predicate

	output       string
	appendOutput bool
	omitErrors   bool

	preventOverlap bool
	after          []Callback
}

func newEvent(s *Scheduler, command string) *Event {
	return &Event{
		mutex:      s.mutex,
		runner:     s.runner,
		emitter:    s.emitter,
		command:    command,
		expression: expr.Wildcard(),
		location:   s.location,
	}
}

// Expression returns the event's current trigger expression.
func (e *Event) Expression() expr.Expression { return e.expression }

// Summary returns the description if one was set, else the command line.
func (e *Event) Summary() string {
	if e.description != "" {
		return e.description
	}
	return e.command
}

// Named sets the event description, used in logs, mail subjects, and
// callback mutex names.
func (e *Event) Named(description string) *Event {
	e.description = description
	return e
}

// As runs the command as the given system user via sudo.
func (e *Event) As(user string) *Event {
	e.user = user
	return e
}

// When registers a filter predicate; the event runs only if it returns true.
func (e *Event) When(p Predicate) *Event {
	e.filters = append(e.filters, p)
	return e
}

// Skip registers a reject predicate; the event is skipped if it returns true.
func (e *Event) Skip(p Predicate) *Event {
	e.rejects = append(e.rejects, p)
	return e
}

// Then registers an after-callback. Registering any callback forces the
// foreground execution path: the run blocks on the command so the callback
// has a completed execution to react to.
func (e *Event) Then(cb Callback) *Event {
	e.after = append(e.after, cb)
	return e
}

// IsDue reports whether the event should run at the context instant: the
// trigger expression matches in the event's timezone and every filter and
// reject predicate passes.
func (e *Event) IsDue(ctx *Context) (bool, error) {
	due, err := e.expressionPasses(ctx)
	if err != nil || !due {
		return false, err
	}
	return e.filtersPass(ctx), nil
}

func (e *Event) expressionPasses(ctx *Context) (bool, error) {
	now := ctx.Now
	if e.location != nil {
		now = now.In(e.location)
	}
	return e.expression.IsDue(now)
}

func (e *Event) filtersPass(ctx *Context) bool {
	for _, f := range e.filters {
		if !f(ctx) {
			return false
		}
	}
	for _, r := range e.rejects {
		if r(ctx) {
			return false
		}
	}
	return true
}

// Run executes the event. With after-callbacks registered it runs in the
// foreground: block on the command, run callbacks in order, emit after-run.
// Without callbacks it launches the command detached and emits after-run
// immediately; nothing supervises the process afterwards.
//
// The command's own exit status is returned untranslated; a callback error
// replaces it and stops later callbacks.
func (e *Event) Run(ctx *Context) (any, error) {
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

	if len(e.after) > 0 {
		return nil, e.runForeground(ctx)
	}
	return nil, e.runBackground(ctx)
}

func (e *Event) runForeground(ctx *Context) error {
	command := strings.TrimRight(e.BuildCommand(), "& ")
	cmdErr := e.runner.Run(ctx, command, ctx.WorkingDir)

	// Callbacks run even when the command failed: the overlap release and
	// output handling must not depend on the exit status.
	if err := e.runCallbacks(ctx); err != nil {
		return err
	}
	e.emitter.AfterRun(ctx, e)
	return cmdErr
}

func (e *Event) runBackground(ctx *Context) error {
	if err := e.runner.Start(ctx, e.BuildCommand(), ctx.WorkingDir); err != nil {
		return fmt.Errorf("schedule: start %q: %w", e.Summary(), err)
	}
	e.emitter.AfterRun(ctx, e)
	return nil
}

func (e *Event) runCallbacks(ctx *Context) error {
	for _, cb := range e.after {
		if err := cb(ctx); err != nil {
			return err
		}
	}
	return nil
}

// BuildCommand composes the full shell command line: output redirection,
// optional stderr merge, the background marker, and an optional sudo user
// prefix. Foreground execution trims the trailing marker before running.
func (e *Event) BuildCommand() string {
	output := e.output
	if output == "" {
		output = os.DevNull
	}
	redirect := " > "
	if e.appendOutput {
		redirect = " >> "
	}

	command := e.command + redirect + output
	if !e.omitErrors {
		command += " 2>&1"
	}
	command += " &"

	if e.user != "" {
		command = "sudo -u " + e.user + " " + command
	}
	return command
}

// WithoutOverlapping prevents concurrent runs of this event across every
// process sharing the lock backend. Acquisition is optimistic: a contended
// run is skipped, never queued. Calling it again has no further effect.
func (e *Event) WithoutOverlapping() *Event {
	if e.preventOverlap {
		return e
	}
	e.preventOverlap = true
	return e.Then(func(ctx *Context) error {
		return e.mutex.Release(ctx, e.MutexName())
	})
}

// OnOneServer is WithoutOverlapping for multi-host deployments. It fails
// with ErrSingleServerLock when the injected backend cannot exclude across
// hosts: a file lock on each machine would happily run the event
// everywhere.
func (e *Event) OnOneServer() (*Event, error) {
	if !lock.CrossHost(e.mutex) {
		return e, ErrSingleServerLock
	}
	return e.WithoutOverlapping(), nil
}

// MutexName derives the overlap lock name from the event's identity.
func (e *Event) MutexName() string {
	return mutexName(e.expression.String() + e.command)
}

// SendOutputTo redirects command output to path, overwriting it each run.
func (e *Event) SendOutputTo(path string) *Event {
	e.output = path
	e.appendOutput = false
	return e
}

// AppendOutputTo redirects command output to path, appending across runs.
func (e *Event) AppendOutputTo(path string) *Event {
	e.output = path
	e.appendOutput = true
	return e
}

// SuppressErrors drops stderr instead of merging it into the output target.
func (e *Event) SuppressErrors() *Event {
	e.omitErrors = true
	return e
}

// EmailOutputTo mails the captured output to the given addresses after each
// run, skipping empty output. It fails with ErrOutputNotCaptured unless
// SendOutputTo or AppendOutputTo pointed the output at a real file first;
// there is nothing to read back from the null device.
func (e *Event) EmailOutputTo(addrs ...string) (*Event, error) {
	if e.output == "" || e.output == os.DevNull {
		return e, ErrOutputNotCaptured
	}
	return e.Then(func(ctx *Context) error {
		return e.emailOutput(ctx, addrs)
	}), nil
}

func (e *Event) emailOutput(ctx *Context, addrs []string) error {
	raw, err := os.ReadFile(e.output)
	if err != nil {
		return fmt.Errorf("schedule: read output %q: %w", e.output, err)
	}
	body := strings.TrimSpace(string(raw))
	if body == "" {
		return nil
	}
	return ctx.Mailer.Compose().
		To(addrs...).
		Subject(e.emailSubject()).
		Body(body).
		Send(ctx)
}

func (e *Event) emailSubject() string {
	if e.description != "" {
		return fmt.Sprintf("Scheduled Job Output (%s)", e.description)
	}
	return "Scheduled Job Output"
}

// ThenPing issues a best-effort GET to url after each run. The response and
// any transport error are ignored beyond a debug log line.
func (e *Event) ThenPing(url string) *Event {
	return e.Then(func(ctx *Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			ctx.Logger.Debug("ping request build failed", "url", url, "error", err)
			return nil
		}
		resp, err := ctx.HTTP.Do(req)
		if err != nil {
			ctx.Logger.Debug("ping failed", "url", url, "error", err)
			return nil
		}
		return resp.Body.Close()
	})
}

// mutexName hashes an identity string into a stable lock name. The hash is
// what makes cross-process exclusion work: every host derives the same name
// from the same logical job.
func mutexName(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return "schedule-" + hex.EncodeToString(sum[:])
}
