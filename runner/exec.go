package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
)

// CommandFunc runs an external program in dir and returns its combined
// output. Stages take it as a dependency so tests can substitute a fake.
type CommandFunc func(ctx context.Context, dir, name string, args ...string) (string, error)

// streamingCommand returns a CommandFunc that captures combined output and,
// when stream is true, also mirrors it to the terminal.
func streamingCommand(stream bool) CommandFunc {
	return func(ctx context.Context, dir, name string, args ...string) (string, error) {
		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Dir = dir

		var stdout, stderr bytes.Buffer
		stdoutWriters := []io.Writer{&stdout}
		stderrWriters := []io.Writer{&stderr}
		if stream {
			stdoutWriters = append(stdoutWriters, os.Stdout)
			stderrWriters = append(stderrWriters, os.Stderr)
		}
		cmd.Stdout = io.MultiWriter(stdoutWriters...)
		cmd.Stderr = io.MultiWriter(stderrWriters...)

		err := cmd.Run()

		combined := stdout.String() + stderr.String()
		if len(combined) > 0 && combined[len(combined)-1] != '\n' {
			combined += "\n"
		}
		return combined, err
	}
}

// exitCodeOf extracts the exit code from a command error, or -1 when the
// process never ran.
func exitCodeOf(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
