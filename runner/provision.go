package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Provisioner creates the per-instance virtual environment and installs
// declared dependencies into it.
type Provisioner struct {
	Python string      // base interpreter used to create the venv
	Run    CommandFunc // command execution, injectable for tests
}

// NewProvisioner builds a Provisioner that executes real commands,
// streaming their output when stream is true.
func NewProvisioner(python string, stream bool) *Provisioner {
	return &Provisioner{Python: python, Run: streamingCommand(stream)}
}

// EnsureEnv creates the virtual environment at venvDir if it does not
// already exist. Creation is idempotent: an existing valid environment is a
// no-op, never an error.
func (p *Provisioner) EnsureEnv(ctx context.Context, venvDir string) error {
	marker := filepath.Join(venvDir, "pyvenv.cfg")
	if _, err := os.Stat(marker); err == nil {
		return nil
	}

	output, err := p.Run(ctx, filepath.Dir(venvDir), p.Python, "-m", "venv", venvDir)
	if err != nil {
		return fmt.Errorf("%w: %s (%v)\n%s", ErrEnvironmentCreationFailed, venvDir, err, output)
	}

	// The tool is external; trust but verify.
	if _, err := os.Stat(marker); err != nil {
		return fmt.Errorf("%w: %s missing after creation", ErrEnvironmentCreationFailed, marker)
	}
	return nil
}

// InstallDeps upgrades pip inside the environment and then installs the
// dependency manifest. The upgrade must run first: installing with a stale
// pip is the version-skew failure this exists to avoid. A missing manifest
// is not an error; the returned flag reports the skip so the stage can
// record a warning.
func (p *Provisioner) InstallDeps(ctx context.Context, venvDir, manifestPath string) (skipped bool, err error) {
	if _, statErr := os.Stat(manifestPath); statErr != nil {
		return true, nil
	}

	python := venvPython(venvDir)

	output, err := p.Run(ctx, filepath.Dir(venvDir), python, "-m", "pip", "install", "--upgrade", "pip")
	if err != nil {
		return false, fmt.Errorf("%w: pip self-upgrade: %v\n%s", ErrDependencyInstallFailed, err, output)
	}

	output, err = p.Run(ctx, filepath.Dir(venvDir), python, "-m", "pip", "install", "-r", manifestPath)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v\n%s", ErrDependencyInstallFailed, manifestPath, err, output)
	}
	return false, nil
}
