package process

import (
	"errors"
	"fmt"
)

var (
	// ErrShuttingDown is returned by Spawn once Shutdown has begun.
	ErrShuttingDown = errors.New("process: supervisor is shutting down")

	// ErrProcessLimit is returned by Spawn when MaxProcesses builds are live.
	ErrProcessLimit = errors.New("process: process limit reached")

	// ErrNoWorkDir is returned when a launch request has no working directory.
	ErrNoWorkDir = errors.New("process: working directory is required")
)

// SpawnError reports that the wrapper script could not be started.
// Err carries the OS-level cause (missing file, permission denied, ...).
type SpawnError struct {
	Wrapper string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawning %s: %v", e.Wrapper, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
