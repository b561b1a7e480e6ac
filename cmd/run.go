package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"etldeploy/runner"
	"etldeploy/runner/storage"
)

// Run executes the 'run' command and returns the process exit code. On the
// success path this is the invoked child's exit code; internal failures map
// to distinguished codes so callers can tell them apart without parsing
// output.
func Run(configPath string, instance int) int {
	cfg, err := runner.LoadConfig(configPath)
	if err != nil {
		log.Printf("❌ %v", err)
		return 1
	}

	// Run history lives in a data directory next to the config.
	dataDir := filepath.Join(cfg.RootDir, "data")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Printf("❌ Failed to create data directory: %v", err)
		return 1
	}

	store, err := storage.NewStorage(filepath.Join(dataDir, "etldeploy.db"))
	if err != nil {
		log.Printf("❌ Failed to initialize storage: %v", err)
		return 1
	}
	defer store.Close()

	result, err := runner.RunInstance(context.Background(), cfg, instance, runner.RunOptions{
		Storage:          store,
		StreamToTerminal: true, // Always stream to console for local runs
	})
	if err != nil {
		log.Printf("❌ Run failed: %v", err)
		return exitCodeForError(err)
	}

	for _, warning := range result.Warnings {
		log.Printf("⚠️  %s", warning)
	}
	fmt.Printf("\n📊 Run ID: %d | Instance: %d | Status: %s | Duration: %s\n",
		result.RunID, result.Instance, result.Status, result.Duration)

	return result.ExitCode
}

// exitCodeForError maps the failure taxonomy to exit codes. A failed child
// process passes its own exit code through.
func exitCodeForError(err error) int {
	var childErr *runner.ChildExitError
	if errors.As(err, &childErr) {
		return childErr.Code
	}

	switch {
	case errors.Is(err, runner.ErrInvalidParameter):
		return 2
	case errors.Is(err, runner.ErrTemplateNotFound):
		return 3
	case errors.Is(err, runner.ErrRenderVerificationFailed):
		return 4
	case errors.Is(err, runner.ErrEnvironmentCreationFailed):
		return 5
	case errors.Is(err, runner.ErrDependencyInstallFailed):
		return 6
	case errors.Is(err, runner.ErrMissingInvocationInput):
		return 7
	}
	return 1
}
