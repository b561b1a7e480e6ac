package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeExitCodes(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.json")
	require.NoError(t, os.WriteFile(valid, []byte(`{
		"project": "etl",
		"instance": 1,
		"repos": [],
		"secrets": {}
	}`), 0644))

	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"project": "etl"}`), 0644))

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{oops`), 0644))

	assert.Equal(t, 0, Smoke(valid))
	assert.Equal(t, 3, Smoke(invalid))
	assert.Equal(t, 2, Smoke(broken))
	assert.Equal(t, 2, Smoke(filepath.Join(dir, "missing.json")))
}
