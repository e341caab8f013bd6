package docker

import (
	"errors"
	"fmt"
)

// Error kinds for runtime invocations. Callers match with errors.Is; the
// wrapped chain keeps the container and command context.
var (
	// ErrUnavailable means the runtime executable could not be invoked at
	// all. This is fatal for the whole run.
	ErrUnavailable = errors.New("runtime unavailable")

	// ErrQueryFailed means a list or inspect command exited non-zero or
	// produced unparsable output. The affected container is abandoned; the
	// run continues for the others.
	ErrQueryFailed = errors.New("runtime query failed")

	// ErrControlFailed means a stop or start command exited non-zero.
	ErrControlFailed = errors.New("container control failed")
)

// ExitError carries the exit code and captured stderr of a non-zero docker
// run invocation. The archiver interprets the code to tell a helper that
// could not be launched apart from one whose archive step failed.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("docker run exited with code %d", e.Code)
	}
	return fmt.Sprintf("docker run exited with code %d: %s", e.Code, e.Stderr)
}
