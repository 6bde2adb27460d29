package bus_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	schedule "github.com/YJBallestero/schedule"
	"github.com/YJBallestero/schedule/bus"
)

type stubJob struct {
	summary string
	mutex   string
}

func (j *stubJob) IsDue(*schedule.Context) (bool, error) { return true, nil }
func (j *stubJob) Run(*schedule.Context) (any, error)    { return nil, nil }
func (j *stubJob) MutexName() string                     { return j.mutex }
func (j *stubJob) Summary() string                       { return j.summary }

func testContext(now time.Time) *schedule.Context {
	return &schedule.Context{Context: context.Background(), Now: now}
}

func newTestBus(opts ...bus.Option) *bus.Bus {
	return bus.New(slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

func TestSubscriberReceivesLifecycleSignals(t *testing.T) {
	b := newTestBus()
	ch, cancel := b.Subscribe()
	defer cancel()

	now := time.Date(2026, time.March, 5, 9, 30, 0, 0, time.UTC)
	job := &stubJob{summary: "df -h", mutex: "schedule-abc"}
	b.BeforeRun(testContext(now), job)
	b.AfterRun(testContext(now), job)

	started := <-ch
	if started.Kind != bus.RunStarted || started.Event != "df -h" || started.MutexName != "schedule-abc" {
		t.Errorf("unexpected first signal: %+v", started)
	}
	if !started.At.Equal(now) {
		t.Errorf("At = %v, want %v", started.At, now)
	}

	finished := <-ch
	if finished.Kind != bus.RunFinished {
		t.Errorf("second signal kind = %q, want %q", finished.Kind, bus.RunFinished)
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := newTestBus(bus.WithBufferSize(1))
	_, cancel := b.Subscribe()
	defer cancel()

	job := &stubJob{summary: "job", mutex: "schedule-x"}
	ctx := testContext(time.Now())
	b.BeforeRun(ctx, job)
	b.BeforeRun(ctx, job)
	b.BeforeRun(ctx, job)

	published, dropped := b.Stats()
	if published != 3 {
		t.Errorf("published = %d, want 3", published)
	}
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
}

func TestCancelClosesChannelAndStopsDelivery(t *testing.T) {
	b := newTestBus()
	ch, cancel := b.Subscribe()
	cancel()
	cancel() // safe to call twice

	if _, open := <-ch; open {
		t.Error("channel still open after cancel")
	}

	b.BeforeRun(testContext(time.Now()), &stubJob{summary: "job"})
	if published, _ := b.Stats(); published != 1 {
		t.Errorf("published = %d, want 1", published)
	}
}

func TestBusActsAsSchedulerEmitter(t *testing.T) {
	b := newTestBus()
	ch, cancel := b.Subscribe()
	defer cancel()

	s := schedule.New(
		schedule.WithEmitter(b),
		schedule.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	ev, err := s.Call(func(ctx *schedule.Context) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ev.Run(s.NewContext(context.Background())); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := (<-ch).Kind; got != bus.RunStarted {
		t.Errorf("first signal = %q, want %q", got, bus.RunStarted)
	}
	if got := (<-ch).Kind; got != bus.RunFinished {
		t.Errorf("second signal = %q, want %q", got, bus.RunFinished)
	}
}
