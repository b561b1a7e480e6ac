package runner

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0755))
}

func TestInvokePreflightMissingInputs(t *testing.T) {
	dir := t.TempDir()
	python := filepath.Join(dir, "python")
	script := filepath.Join(dir, "main.py")
	settings := filepath.Join(dir, "settings.json")

	inv := NewInvoker()

	cases := []struct {
		name    string
		prepare func()
		want    string
	}{
		{
			name:    "missing interpreter",
			prepare: func() {},
			want:    "interpreter",
		},
		{
			name:    "missing script",
			prepare: func() { writeFile(t, python, "#!stub\n") },
			want:    "script",
		},
		{
			name:    "missing settings",
			prepare: func() { writeFile(t, script, "print('ok')\n") },
			want:    "settings",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.prepare()
			_, err := inv.Invoke(context.Background(), InvokeSpec{
				Python:   python,
				Script:   script,
				Settings: settings,
				WorkDir:  dir,
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMissingInvocationInput)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestInvokeSetsWorkdirAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	python := filepath.Join(dir, "python")
	script := filepath.Join(dir, "main.py")
	settings := filepath.Join(dir, "settings.json")
	writeFile(t, python, "#!stub\n")
	writeFile(t, script, "print('ok')\n")
	writeFile(t, settings, "{}")

	var captured *exec.Cmd
	inv := &Invoker{launch: func(cmd *exec.Cmd) error {
		captured = cmd
		return nil
	}}

	result, err := inv.Invoke(context.Background(), InvokeSpec{
		Python:   python,
		Script:   script,
		Settings: settings,
		WorkDir:  dir,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)

	require.NotNil(t, captured)
	assert.Equal(t, dir, captured.Dir)
	assert.Contains(t, captured.Args, "--settings")
	assert.Contains(t, captured.Args, settings)
	assert.Contains(t, captured.Env, "SETTINGS_PATH="+settings)
}

func TestInvokePropagatesChildExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh")
	}

	dir := t.TempDir()
	script := filepath.Join(dir, "smoke.sh")
	settings := filepath.Join(dir, "settings.json")
	writeFile(t, script, "#!/bin/sh\nexit 7\n")
	writeFile(t, settings, "{}")

	sh, err := exec.LookPath("sh")
	require.NoError(t, err)

	inv := NewInvoker()
	result, err := inv.Invoke(context.Background(), InvokeSpec{
		Python:   sh,
		Script:   script,
		Settings: settings,
		WorkDir:  dir,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChildProcessFailed)

	var childErr *ChildExitError
	require.ErrorAs(t, err, &childErr)
	assert.Equal(t, 7, childErr.Code)
	require.NotNil(t, result)
	assert.Equal(t, 7, result.ExitCode)
}

func TestInvokeZeroExitIsSuccess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh")
	}

	dir := t.TempDir()
	script := filepath.Join(dir, "smoke.sh")
	settings := filepath.Join(dir, "settings.json")
	writeFile(t, script, "#!/bin/sh\nexit 0\n")
	writeFile(t, settings, "{}")

	sh, err := exec.LookPath("sh")
	require.NoError(t, err)

	inv := NewInvoker()
	result, err := inv.Invoke(context.Background(), InvokeSpec{
		Python:   sh,
		Script:   script,
		Settings: settings,
		WorkDir:  dir,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
}
