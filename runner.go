package schedule

import (
	"context"
	"os/exec"
)

// ProcessRunner launches external commands for events. Run blocks until the
// command exits; Start launches it detached and returns immediately. Both
// receive the full shell command line and the working directory.
type ProcessRunner interface {
	Run(ctx context.Context, command, dir string) error
	Start(ctx context.Context, command, dir string) error
}

// ShellRunner executes command lines through a shell. The zero value uses
// /bin/sh.
type ShellRunner struct {
	// Shell is the shell binary. Empty means /bin/sh.
	Shell string
}

func (r ShellRunner) shell() string {
	if r.Shell != "" {
		return r.Shell
	}
	return "/bin/sh"
}

// Run executes the command and waits for it.
func (r ShellRunner) Run(ctx context.Context, command, dir string) error {
	cmd := exec.CommandContext(ctx, r.shell(), "-c", command)
	cmd.Dir = dir
	return cmd.Run()
}

// Start launches the command without waiting. The exit status is reaped but
// intentionally unobserved; background events are fire-and-forget.
func (r ShellRunner) Start(_ context.Context, command, dir string) error {
	cmd := exec.Command(r.shell(), "-c", command)
	cmd.Dir = dir
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
