package runner

import (
	"errors"
	"fmt"
)

// Failure taxonomy for a run. Every stage failure wraps one of these so the
// CLI can map it to a distinct exit code without string matching.
var (
	ErrInvalidParameter          = errors.New("invalid instance parameter")
	ErrTemplateNotFound          = errors.New("settings template not found")
	ErrRenderVerificationFailed  = errors.New("rendered settings verification failed")
	ErrEnvironmentCreationFailed = errors.New("environment creation failed")
	ErrDependencyInstallFailed   = errors.New("dependency install failed")
	ErrMissingInvocationInput    = errors.New("missing invocation input")
	ErrChildProcessFailed        = errors.New("child process failed")
)

// ChildExitError carries the exit code of a failed child process so the
// engine can propagate it as its own exit code.
type ChildExitError struct {
	Code int
}

func (e *ChildExitError) Error() string {
	return fmt.Sprintf("child process exited with code %d", e.Code)
}

func (e *ChildExitError) Unwrap() error {
	return ErrChildProcessFailed
}
