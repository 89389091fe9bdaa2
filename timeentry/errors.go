package timeentry

import "errors"

var (
	// ErrTimerAlreadyRunning is returned when starting a timer while one is
	// still open for the user.
	ErrTimerAlreadyRunning = errors.New("a timer is already running")
	// ErrNoRunningTimer is returned when stopping without an open timer.
	ErrNoRunningTimer = errors.New("no timer is running")
)
