package cmd

import (
	"errors"
	"fmt"
	"os"

	"etldeploy/smoke"
)

// Smoke executes the built-in smoke verification against a settings file
// and returns the process exit code: 0 ok, 2 load/read error, 3 validation
// error, 4 unexpected.
func Smoke(settingsPath string) int {
	settings, err := smoke.Load(settingsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		return smokeExitCode(err)
	}

	if err := settings.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		return smokeExitCode(err)
	}

	settings.Summarize(os.Stdout)
	fmt.Println("[OK] Smoke run completed successfully.")
	return 0
}

func smokeExitCode(err error) int {
	switch {
	case errors.Is(err, smoke.ErrLoad):
		return 2
	case errors.Is(err, smoke.ErrInvalid):
		return 3
	}
	return 4
}
