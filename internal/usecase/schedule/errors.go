package schedule

import "errors"

var (
	// ErrTickInProgress is returned when a manual scan is requested while a
	// tick is still running.
	ErrTickInProgress = errors.New("schedule: tick already in progress")

	// ErrAlreadyStarted is returned by Start on a running scheduler.
	ErrAlreadyStarted = errors.New("schedule: already started")

	// ErrNotStarted is returned by Stop on a scheduler that was never started.
	ErrNotStarted = errors.New("schedule: not started")
)
