package schedule_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	schedule "github.com/YJBallestero/schedule"
	"github.com/YJBallestero/schedule/lock/memory"
	"github.com/YJBallestero/schedule/mail"
)

// spyRunner records Run/Start invocations instead of launching processes.
type spyRunner struct {
	mu      sync.Mutex
	ran     []string
	started []string
	err     error
}

func (r *spyRunner) Run(_ context.Context, command, _ string) error {
	r.mu.Lock()
	r.ran = append(r.ran, command)
	r.mu.Unlock()
	return r.err
}

func (r *spyRunner) Start(_ context.Context, command, _ string) error {
	r.mu.Lock()
	r.started = append(r.started, command)
	r.mu.Unlock()
	return r.err
}

// recordingMailer captures composed messages.
type recordingMailer struct {
	mu   sync.Mutex
	sent []recordedMessage
}

type recordedMessage struct {
	To      []string
	Subject string
	Body    string
}

func (m *recordingMailer) Compose() mail.Message {
	return &recordingMessage{mailer: m}
}

type recordingMessage struct {
	mailer *recordingMailer
	msg    recordedMessage
}

func (r *recordingMessage) To(addrs ...string) mail.Message {
	r.msg.To = append(r.msg.To, addrs...)
	return r
}

func (r *recordingMessage) Subject(s string) mail.Message { r.msg.Subject = s; return r }
func (r *recordingMessage) Body(s string) mail.Message    { r.msg.Body = s; return r }

func (r *recordingMessage) Send(context.Context) error {
	r.mailer.mu.Lock()
	r.mailer.sent = append(r.mailer.sent, r.msg)
	r.mailer.mu.Unlock()
	return nil
}

// at pins the scheduler clock to a fixed instant.
func at(t time.Time) schedule.Option {
	return schedule.WithClock(func() time.Time { return t })
}

func newTestScheduler(opts ...schedule.Option) (*schedule.Scheduler, *spyRunner) {
	runner := &spyRunner{}
	base := []schedule.Option{
		schedule.WithRunner(runner),
		schedule.WithMutex(memory.New()),
	}
	return schedule.New(append(base, opts...)...), runner
}

func TestFrequencyHelpers(t *testing.T) {
	tests := []struct {
		name  string
		setup func(e *schedule.Event) *schedule.Event
		want  string
	}{
		{"default", func(e *schedule.Event) *schedule.Event { return e }, "* * * * * *"},
		{"every minute", (*schedule.Event).EveryMinute, "* * * * * *"},
		{"every five minutes", func(e *schedule.Event) *schedule.Event { return e.EveryMinutes(5) }, "* */5 * * * *"},
		{"hourly", (*schedule.Event).Hourly, "* 0 * * * *"},
		{"daily", (*schedule.Event).Daily, "* 0 0 * * *"},
		{"daily at", func(e *schedule.Event) *schedule.Event { return e.DailyAt("13:30") }, "* 30 13 * * *"},
		{"daily at bare hour", func(e *schedule.Event) *schedule.Event { return e.DailyAt("13") }, "* 0 13 * * *"},
		{"twice daily", func(e *schedule.Event) *schedule.Event { return e.TwiceDaily(1, 13) }, "* 0 1,13 * * *"},
		{"weekly", (*schedule.Event).Weekly, "* 0 0 * * 0"},
		{"weekly on", func(e *schedule.Event) *schedule.Event { return e.WeeklyOn(time.Monday, "08:00") }, "* 0 8 * * 1"},
		{"monthly", (*schedule.Event).Monthly, "* 0 0 1 * *"},
		{"yearly", (*schedule.Event).Yearly, "* 0 0 1 1 *"},
		{"weekdays", (*schedule.Event).Weekdays, "* * * * * 1-5"},
		{"fridays", (*schedule.Event).Fridays, "* * * * * 5"},
		{"cron override", func(e *schedule.Event) *schedule.Event { return e.Cron("0 30 13 * * *") }, "0 30 13 * * *"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestScheduler()
			e := tt.setup(s.Exec("true"))
			if got := e.Expression().String(); got != tt.want {
				t.Errorf("expression = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildCommand(t *testing.T) {
	tests := []struct {
		name  string
		setup func(e *schedule.Event) *schedule.Event
		want  string
	}{
		{
			"default goes to null device",
			func(e *schedule.Event) *schedule.Event { return e },
			"echo hi > " + os.DevNull + " 2>&1 &",
		},
		{
			"redirected output",
			func(e *schedule.Event) *schedule.Event { return e.SendOutputTo("/tmp/out.log") },
			"echo hi > /tmp/out.log 2>&1 &",
		},
		{
			"appended output",
			func(e *schedule.Event) *schedule.Event { return e.AppendOutputTo("/tmp/out.log") },
			"echo hi >> /tmp/out.log 2>&1 &",
		},
		{
			"suppressed errors drop stderr merge",
			func(e *schedule.Event) *schedule.Event { return e.SuppressErrors() },
			"echo hi > " + os.DevNull + " &",
		},
		{
			"run as user",
			func(e *schedule.Event) *schedule.Event { return e.As("deploy") },
			"sudo -u deploy echo hi > " + os.DevNull + " 2>&1 &",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestScheduler()
			e := tt.setup(s.Exec("echo hi"))
			if got := e.BuildCommand(); got != tt.want {
				t.Errorf("BuildCommand() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBackgroundRun(t *testing.T) {
	s, runner := newTestScheduler()
	e := s.Exec("echo hi")

	if _, err := e.Run(s.NewContext(context.Background())); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(runner.started) != 1 {
		t.Fatalf("Start called %d times, want 1", len(runner.started))
	}
	if len(runner.ran) != 0 {
		t.Fatalf("Run called %d times, want 0", len(runner.ran))
	}
	// Background launches keep the trailing marker.
	if got := runner.started[0]; got != "echo hi > "+os.DevNull+" 2>&1 &" {
		t.Errorf("background command = %q", got)
	}
}

func TestForegroundRunWithCallbacks(t *testing.T) {
	s, runner := newTestScheduler()

	var order []string
	e := s.Exec("echo hi").
		Then(func(*schedule.Context) error { order = append(order, "first"); return nil }).
		Then(func(*schedule.Context) error { order = append(order, "second"); return nil })

	if _, err := e.Run(s.NewContext(context.Background())); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(runner.ran) != 1 || len(runner.started) != 0 {
		t.Fatalf("runner calls = (ran %d, started %d), want (1, 0)", len(runner.ran), len(runner.started))
	}
	// Foreground commands are trimmed of the background marker.
	if got := runner.ran[0]; got != "echo hi > "+os.DevNull+" 2>&1" {
		t.Errorf("foreground command = %q", got)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("callback order = %v", order)
	}
}

func TestCallbackErrorStopsChain(t *testing.T) {
	s, _ := newTestScheduler()

	boom := errors.New("boom")
	var secondRan bool
	e := s.Exec("echo hi").
		Then(func(*schedule.Context) error { return boom }).
		Then(func(*schedule.Context) error { secondRan = true; return nil })

	_, err := e.Run(s.NewContext(context.Background()))
	if !errors.Is(err, boom) {
		t.Fatalf("Run error = %v, want %v", err, boom)
	}
	if secondRan {
		t.Error("second callback ran after the first failed")
	}
}

func TestWithoutOverlappingSkipsContendedRun(t *testing.T) {
	backend := memory.New()
	s, runner := newTestScheduler(schedule.WithMutex(backend))
	e := s.Exec("echo hi").WithoutOverlapping()
	ctx := s.NewContext(context.Background())

	// Simulate another in-flight run holding the gate.
	if ok, _ := backend.Acquire(ctx, e.MutexName()); !ok {
		t.Fatal("pre-acquire failed")
	}

	_, err := e.Run(ctx)
	if !errors.Is(err, schedule.ErrEventSkipped) {
		t.Fatalf("Run error = %v, want ErrEventSkipped", err)
	}
	if len(runner.ran)+len(runner.started) != 0 {
		t.Fatal("command executed despite held mutex")
	}

	// Once the holder releases, the run proceeds and releases after itself.
	if err := backend.Release(ctx, e.MutexName()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := e.Run(ctx); err != nil {
		t.Fatalf("Run after release: %v", err)
	}
	if ok, _ := backend.Acquire(ctx, e.MutexName()); !ok {
		t.Error("mutex still held after a completed run")
	}
}

// spyEmitter records lifecycle signals.
type spyEmitter struct {
	mu     sync.Mutex
	before []string
	after  []string
}

func (e *spyEmitter) BeforeRun(_ *schedule.Context, job schedule.Job) {
	e.mu.Lock()
	e.before = append(e.before, job.Summary())
	e.mu.Unlock()
}

func (e *spyEmitter) AfterRun(_ *schedule.Context, job schedule.Job) {
	e.mu.Lock()
	e.after = append(e.after, job.Summary())
	e.mu.Unlock()
}

func TestSkippedRunStillEmitsBeforeRun(t *testing.T) {
	backend := memory.New()
	emitter := &spyEmitter{}
	s, _ := newTestScheduler(schedule.WithMutex(backend), schedule.WithEmitter(emitter))
	e := s.Exec("echo hi").WithoutOverlapping()
	ctx := s.NewContext(context.Background())

	if ok, _ := backend.Acquire(ctx, e.MutexName()); !ok {
		t.Fatal("pre-acquire failed")
	}
	if _, err := e.Run(ctx); !errors.Is(err, schedule.ErrEventSkipped) {
		t.Fatalf("Run error = %v, want ErrEventSkipped", err)
	}

	// The attempt is observable even though the run was gated off.
	if len(emitter.before) != 1 {
		t.Errorf("BeforeRun fired %d times, want 1", len(emitter.before))
	}
	if len(emitter.after) != 0 {
		t.Errorf("AfterRun fired %d times for a skipped run, want 0", len(emitter.after))
	}
}

// countingBackend counts Release calls on top of the memory backend.
type countingBackend struct {
	*memory.Backend
	mu       sync.Mutex
	releases int
}

func (b *countingBackend) Release(ctx context.Context, name string) error {
	b.mu.Lock()
	b.releases++
	b.mu.Unlock()
	return b.Backend.Release(ctx, name)
}

func TestWithoutOverlappingIsIdempotent(t *testing.T) {
	backend := &countingBackend{Backend: memory.New()}
	s, runner := newTestScheduler(schedule.WithMutex(backend))
	e := s.Exec("echo hi").WithoutOverlapping().WithoutOverlapping()
	ctx := s.NewContext(context.Background())

	if _, err := e.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(runner.ran) != 1 {
		t.Fatalf("command ran %d times, want 1", len(runner.ran))
	}
	// A second registration must not add a second release callback.
	if backend.releases != 1 {
		t.Errorf("Release called %d times, want 1", backend.releases)
	}
}

func TestOnOneServerRejectsHostLocalBackend(t *testing.T) {
	s, _ := newTestScheduler() // memory backend: host-local
	_, err := s.Exec("echo hi").OnOneServer()
	if !errors.Is(err, schedule.ErrSingleServerLock) {
		t.Fatalf("OnOneServer error = %v, want ErrSingleServerLock", err)
	}
}

type crossHostBackend struct{ *memory.Backend }

func (crossHostBackend) CrossHost() bool { return true }

func TestOnOneServerAcceptsCrossHostBackend(t *testing.T) {
	s, _ := newTestScheduler(schedule.WithMutex(crossHostBackend{memory.New()}))
	e, err := s.Exec("echo hi").OnOneServer()
	if err != nil {
		t.Fatalf("OnOneServer: %v", err)
	}
	if e == nil {
		t.Fatal("OnOneServer returned nil event")
	}
}

func TestEmailOutputToRequiresRedirection(t *testing.T) {
	s, _ := newTestScheduler()
	_, err := s.Exec("echo hi").EmailOutputTo("ops@example.com")
	if !errors.Is(err, schedule.ErrOutputNotCaptured) {
		t.Fatalf("EmailOutputTo error = %v, want ErrOutputNotCaptured", err)
	}
}

func TestEmailOutputToSendsCapturedOutput(t *testing.T) {
	mailer := &recordingMailer{}
	s, _ := newTestScheduler(schedule.WithMailer(mailer))

	output := filepath.Join(t.TempDir(), "out.log")
	if err := os.WriteFile(output, []byte("  all done\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	e, err := s.Exec("echo hi").Named("nightly backup").SendOutputTo(output).EmailOutputTo("ops@example.com")
	if err != nil {
		t.Fatalf("EmailOutputTo: %v", err)
	}
	if _, err := e.Run(s.NewContext(context.Background())); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(mailer.sent))
	}
	msg := mailer.sent[0]
	if msg.Subject != "Scheduled Job Output (nightly backup)" {
		t.Errorf("subject = %q", msg.Subject)
	}
	if msg.Body != "all done" {
		t.Errorf("body = %q, want trimmed output", msg.Body)
	}
	if len(msg.To) != 1 || msg.To[0] != "ops@example.com" {
		t.Errorf("recipients = %v", msg.To)
	}
}

func TestEmailOutputToSkipsEmptyOutput(t *testing.T) {
	mailer := &recordingMailer{}
	s, _ := newTestScheduler(schedule.WithMailer(mailer))

	output := filepath.Join(t.TempDir(), "out.log")
	if err := os.WriteFile(output, []byte("  \n\t"), 0o644); err != nil {
		t.Fatal(err)
	}

	e, err := s.Exec("echo hi").SendOutputTo(output).EmailOutputTo("ops@example.com")
	if err != nil {
		t.Fatalf("EmailOutputTo: %v", err)
	}
	if _, err := e.Run(s.NewContext(context.Background())); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("sent %d messages for empty output, want 0", len(mailer.sent))
	}
}

func TestThenPing(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	s, _ := newTestScheduler()
	e := s.Exec("echo hi").ThenPing(server.URL)
	if _, err := e.Run(s.NewContext(context.Background())); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if hits != 1 {
		t.Fatalf("ping hits = %d, want 1", hits)
	}
}

func TestThenPingIgnoresFailures(t *testing.T) {
	s, _ := newTestScheduler()
	e := s.Exec("echo hi").ThenPing("http://127.0.0.1:0/unreachable")
	if _, err := e.Run(s.NewContext(context.Background())); err != nil {
		t.Fatalf("Run after failed ping: %v", err)
	}
}

func TestFiltersGateIsDue(t *testing.T) {
	now := time.Date(2026, time.March, 4, 12, 30, 0, 0, time.UTC)
	s, _ := newTestScheduler(at(now))
	ctx := s.NewContext(context.Background())

	pass := s.Exec("echo pass")
	if due, err := pass.IsDue(ctx); err != nil || !due {
		t.Fatalf("unfiltered IsDue = (%v, %v)", due, err)
	}

	filtered := s.Exec("echo filtered").When(func(*schedule.Context) bool { return false })
	if due, _ := filtered.IsDue(ctx); due {
		t.Error("event due despite failing filter")
	}

	rejected := s.Exec("echo rejected").Skip(func(*schedule.Context) bool { return true })
	if due, _ := rejected.IsDue(ctx); due {
		t.Error("event due despite reject predicate")
	}
}

func TestTimezoneShiftsDueness(t *testing.T) {
	// 09:00 UTC is 18:00 in UTC+9.
	now := time.Date(2026, time.March, 4, 9, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(at(now))
	ctx := s.NewContext(context.Background())

	utc := s.Exec("echo utc").DailyAt("09:00")
	if due, err := utc.IsDue(ctx); err != nil || !due {
		t.Fatalf("UTC event IsDue = (%v, %v)", due, err)
	}

	tokyo := s.Exec("echo tokyo").DailyAt("18:00").Timezone(time.FixedZone("UTC+9", 9*3600))
	if due, err := tokyo.IsDue(ctx); err != nil || !due {
		t.Fatalf("zoned event IsDue = (%v, %v)", due, err)
	}
}

func TestMutexNameIsStable(t *testing.T) {
	s1, _ := newTestScheduler()
	s2, _ := newTestScheduler()

	a := s1.Exec("echo hi").Daily()
	b := s2.Exec("echo hi").Daily()
	if a.MutexName() != b.MutexName() {
		t.Error("same logical event derived different mutex names")
	}

	c := s2.Exec("echo bye").Daily()
	if a.MutexName() == c.MutexName() {
		t.Error("different commands derived the same mutex name")
	}
}
