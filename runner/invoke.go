package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// InvokeSpec describes one launch of the external smoke-test program.
type InvokeSpec struct {
	Python   string // interpreter, normally the venv's python
	Script   string // entry script path
	Settings string // rendered settings file
	WorkDir  string // project root; relative paths inside the child resolve here
	Args     []string
	Stream   bool
}

// InvokeResult reports the child's exit code and captured output.
type InvokeResult struct {
	ExitCode int
	Output   string
}

// Invoker launches the external program and propagates its exit code.
type Invoker struct {
	launch func(*exec.Cmd) error
}

func NewInvoker() *Invoker {
	return &Invoker{launch: (*exec.Cmd).Run}
}

// Invoke verifies every filesystem input up front, then launches the child
// with its working directory set to the project root. A missing input fails
// with a named error before any process starts; a non-zero child exit maps
// to ChildProcessFailed carrying the code.
func (iv *Invoker) Invoke(ctx context.Context, spec InvokeSpec) (*InvokeResult, error) {
	if _, err := os.Stat(spec.Python); err != nil {
		// A bare interpreter name is resolved on PATH instead.
		if filepath.Base(spec.Python) != spec.Python {
			return nil, fmt.Errorf("%w: interpreter %s", ErrMissingInvocationInput, spec.Python)
		}
		if _, lookErr := exec.LookPath(spec.Python); lookErr != nil {
			return nil, fmt.Errorf("%w: interpreter %s not on PATH", ErrMissingInvocationInput, spec.Python)
		}
	}
	if _, err := os.Stat(spec.Script); err != nil {
		return nil, fmt.Errorf("%w: script %s", ErrMissingInvocationInput, spec.Script)
	}
	if _, err := os.Stat(spec.Settings); err != nil {
		return nil, fmt.Errorf("%w: settings %s", ErrMissingInvocationInput, spec.Settings)
	}

	args := append([]string{spec.Script, "--settings", spec.Settings}, spec.Args...)
	cmd := exec.CommandContext(ctx, spec.Python, args...)
	cmd.Dir = spec.WorkDir
	cmd.Env = append(os.Environ(), "SETTINGS_PATH="+spec.Settings)

	var stdout, stderr bytes.Buffer
	stdoutWriters := []io.Writer{&stdout}
	stderrWriters := []io.Writer{&stderr}
	if spec.Stream {
		stdoutWriters = append(stdoutWriters, os.Stdout)
		stderrWriters = append(stderrWriters, os.Stderr)
	}
	cmd.Stdout = io.MultiWriter(stdoutWriters...)
	cmd.Stderr = io.MultiWriter(stderrWriters...)

	err := iv.launch(cmd)
	result := &InvokeResult{Output: stdout.String() + stderr.String()}

	if err != nil {
		result.ExitCode = exitCodeOf(err)
		return result, fmt.Errorf("%s: %w", spec.Script, &ChildExitError{Code: result.ExitCode})
	}
	return result, nil
}
