package pipeline

import (
	"errors"
	"fmt"
)

// ErrAlreadyRunning is returned by Start and Run while another run is active.
var ErrAlreadyRunning = errors.New("pipeline already running")

// ErrInvalidConfig wraps validation failures of the run options.
var ErrInvalidConfig = errors.New("invalid pipeline config")

// ErrLocked is returned when another process holds the run lock.
var ErrLocked = errors.New("another transmatch process holds the run lock")

// errStopped unwinds the stages after a stop request.
var errStopped = errors.New("pipeline stopped")

// FatalError aborts a run: anything other than a per-item extraction, oracle or
// manifest-reference problem.
type FatalError struct {
	Stage string
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("pipeline failed during %s: %v", e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}
