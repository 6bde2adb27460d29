package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/YJBallestero/schedule/lock"
	"github.com/YJBallestero/schedule/lock/file"
	"github.com/YJBallestero/schedule/mail"
)

// Scheduler owns the registered events and computes the due subset for one
// evaluation instant. Events are created only through its factory methods,
// live for the process lifetime, and all share the scheduler's lock
// backend, runner, and emitter.
//
// Registration and DueEvents are safe to call concurrently, and Run on
// distinct events may be dispatched from independent goroutines.
type Scheduler struct {
	mu     sync.Mutex
	events []Job

	mutex      lock.Backend
	runner     ProcessRunner
	emitter    Emitter
	logger     *slog.Logger
	mailer     mail.Mailer
	http       *http.Client
	workingDir string
	clock      func() time.Time
	location   *time.Location
	resolver   CallResolver
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMutex sets the lock backend shared by every event. The default is a
// file backend under the OS temp directory, which excludes overlapping runs
// on one host only.
func WithMutex(b lock.Backend) Option {
	return func(s *Scheduler) { s.mutex = b }
}

// WithRunner sets the process launcher for command events.
func WithRunner(r ProcessRunner) Option {
	return func(s *Scheduler) { s.runner = r }
}

// WithEmitter sets the lifecycle signal receiver.
func WithEmitter(e Emitter) Option {
	return func(s *Scheduler) { s.emitter = e }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithMailer sets the mailer used by EmailOutputTo callbacks.
func WithMailer(m mail.Mailer) Option {
	return func(s *Scheduler) { s.mailer = m }
}

// WithHTTPClient sets the client used by ThenPing callbacks.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Scheduler) { s.http = c }
}

// WithWorkingDir sets the directory commands run in.
func WithWorkingDir(dir string) Option {
	return func(s *Scheduler) { s.workingDir = dir }
}

// WithClock overrides the time source for scheduling passes. Tests use it
// to pin the evaluation instant.
func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithTimezone sets the default timezone applied to newly created events.
// Individual events may still override it with Timezone.
func WithTimezone(loc *time.Location) Option {
	return func(s *Scheduler) { s.location = loc }
}

// WithCallResolver installs the resolver for string callback identifiers.
func WithCallResolver(r CallResolver) Option {
	return func(s *Scheduler) { s.resolver = r }
}

// New creates a Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		mutex:      file.New(filepath.Join(os.TempDir(), "schedule-locks")),
		runner:     ShellRunner{},
		emitter:    NopEmitter{},
		logger:     slog.Default(),
		mailer:     mail.Discard,
		http:       &http.Client{Timeout: 30 * time.Second},
		workingDir: ".",
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Exec creates and registers a command event for the given shell command
// line. The returned event is ready for fluent configuration.
func (s *Scheduler) Exec(commandLine string) *Event {
	e := newEvent(s, commandLine)
	s.register(e)
	return e
}

// Command creates and registers a command event from a binary name and its
// arguments, joined into one command line.
func (s *Scheduler) Command(name string, args ...string) *Event {
	parts := append([]string{name}, args...)
	return s.Exec(strings.Join(parts, " "))
}

// Call creates and registers a callback event. The callback must be a
// string identifier (resolved through WithCallResolver at run time) or an
// invocable: Callable, func(*Context) (any, error), or func(*Context)
// error. Anything else fails with ErrNotInvocable.
func (s *Scheduler) Call(callback any, params ...any) (*CallbackEvent, error) {
	e, err := newCallbackEvent(s, callback, params)
	if err != nil {
		return nil, err
	}
	s.register(e)
	return e, nil
}

// Events returns the registered events in registration order.
func (s *Scheduler) Events() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, len(s.events))
	copy(out, s.events)
	return out
}

// DueEvents returns the events due at the context instant, preserving
// registration order. A malformed trigger expression aborts the pass with
// its parse error.
func (s *Scheduler) DueEvents(ctx *Context) ([]Job, error) {
	var due []Job
	for _, e := range s.Events() {
		ok, err := e.IsDue(ctx)
		if err != nil {
			return nil, fmt.Errorf("schedule: event %q: %w", e.Summary(), err)
		}
		if ok {
			due = append(due, e)
		}
	}
	return due, nil
}

// NewContext builds the run context for one scheduling pass: the clock
// instant plus the scheduler's injected collaborators.
func (s *Scheduler) NewContext(parent context.Context) *Context {
	return &Context{
		Context:    parent,
		Now:        s.clock(),
		WorkingDir: s.workingDir,
		Mailer:     s.mailer,
		HTTP:       s.http,
		Logger:     s.logger,
	}
}

func (s *Scheduler) register(e Job) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}
