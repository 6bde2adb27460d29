// Package bus provides an in-process pub/sub feed of event run lifecycle
// signals. A Bus plugs into a Scheduler as its Emitter and fans every
// signal out to subscribers over buffered channels. Slow subscribers drop
// signals rather than stall event runs.
package bus

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	schedule "github.com/YJBallestero/schedule"
)

// Compile-time interface check.
var _ schedule.Emitter = (*Bus)(nil)

// Kind classifies a run signal.
type Kind string

const (
	// RunStarted fires when a run attempt begins, before overlap gating.
	// A contended run emits RunStarted and then no RunFinished.
	RunStarted Kind = "run.started"
	// RunFinished fires when a foreground run and its callbacks finished,
	// or right after a background launch.
	RunFinished Kind = "run.finished"
)

// RunEvent is one lifecycle signal.
type RunEvent struct {
	Kind      Kind
	Event     string
	MutexName string
	At        time.Time
}

// DefaultBufferSize is the default per-subscriber signal buffer.
const DefaultBufferSize = 64

// Bus fans run signals out to subscribers.
type Bus struct {
	logger     *slog.Logger
	bufferSize int

	mu     sync.Mutex
	subs   map[int]chan RunEvent
	nextID int

	published atomic.Int64
	dropped   atomic.Int64
}

// Option configures a Bus.
type Option func(*Bus)

// WithBufferSize sets the per-subscriber signal buffer size.
func WithBufferSize(size int) Option {
	return func(b *Bus) { b.bufferSize = size }
}

// New creates a Bus.
func New(logger *slog.Logger, opts ...Option) *Bus {
	b := &Bus{
		logger:     logger,
		bufferSize: DefaultBufferSize,
		subs:       make(map[int]chan RunEvent),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a new subscriber. The returned cancel function
// removes the subscription and closes the channel; it is safe to call
// more than once.
func (b *Bus) Subscribe() (<-chan RunEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan RunEvent, b.bufferSize)
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// BeforeRun implements schedule.Emitter.
func (b *Bus) BeforeRun(ctx *schedule.Context, job schedule.Job) {
	b.publish(RunEvent{
		Kind:      RunStarted,
		Event:     job.Summary(),
		MutexName: job.MutexName(),
		At:        ctx.Now,
	})
}

// AfterRun implements schedule.Emitter.
func (b *Bus) AfterRun(ctx *schedule.Context, job schedule.Job) {
	b.publish(RunEvent{
		Kind:      RunFinished,
		Event:     job.Summary(),
		MutexName: job.MutexName(),
		At:        ctx.Now,
	})
}

func (b *Bus) publish(evt RunEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.published.Add(1)
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			b.dropped.Add(1)
			b.logger.Debug("run signal dropped, subscriber buffer full",
				slog.String("event", evt.Event),
				slog.String("kind", string(evt.Kind)),
			)
		}
	}
}

// Stats reports how many signals were published and how many were dropped
// on full subscriber buffers.
func (b *Bus) Stats() (published, dropped int64) {
	return b.published.Load(), b.dropped.Load()
}
