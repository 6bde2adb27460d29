package schedule

import "errors"

var (
	// ErrEventSkipped is returned by Run when overlap prevention found the
	// event's mutex held by another run.
	ErrEventSkipped = errors.New("schedule: event skipped, already running")

	// Configuration errors.
	ErrSingleServerLock = errors.New("schedule: on-one-server requires a cross-host lock backend")

	// Argument errors.
	ErrNotInvocable        = errors.New("schedule: callback must be a string identifier or an invocable")
	ErrDescriptionRequired = errors.New("schedule: a description is required to prevent overlapping callback events")
	ErrCallableUnresolved  = errors.New("schedule: no resolver registered for string callbacks")

	// Operation errors.
	ErrOutputNotCaptured = errors.New("schedule: output must be redirected to a file before it can be emailed")
)
