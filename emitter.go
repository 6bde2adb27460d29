package schedule

// Emitter receives lifecycle signals around event execution. Implement it
// to feed metrics, audit logs, or host-framework events; the default is a
// no-op.
type Emitter interface {
	// BeforeRun fires when a run attempt begins, before overlap gating.
	// A contended run emits BeforeRun and then no AfterRun.
	BeforeRun(ctx *Context, job Job)

	// AfterRun fires when a foreground run (and its callbacks) finished,
	// or immediately after a background launch.
	AfterRun(ctx *Context, job Job)
}

// NopEmitter discards all lifecycle signals.
type NopEmitter struct{}

func (NopEmitter) BeforeRun(*Context, Job) {}
func (NopEmitter) AfterRun(*Context, Job)  {}
