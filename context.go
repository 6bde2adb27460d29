package schedule

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/YJBallestero/schedule/mail"
)

// Context is the run context handed to every predicate, callback, and Run
// invocation during one scheduling pass. It embeds the caller's
// context.Context and carries the collaborators the scheduler was built
// with; the core never inspects more of it than filters and callbacks use.
type Context struct {
	context.Context

	// Now is the evaluation instant for this pass. Every event in the pass
	// sees the same instant, so a slow tick cannot split the pass across a
	// minute boundary.
	Now time.Time

	// WorkingDir is the directory commands run in.
	WorkingDir string

	// Mailer delivers captured output for EmailOutputTo callbacks.
	Mailer mail.Mailer

	// HTTP issues ThenPing requests.
	HTTP *http.Client

	// Logger is the scheduler's logger.
	Logger *slog.Logger
}
