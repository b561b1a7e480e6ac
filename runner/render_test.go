package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplateSubstitutesEveryOccurrence(t *testing.T) {
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "settings.template.json")
	outPath := filepath.Join(dir, "settings.json")

	template := `{"instance": "${INSTANCE_NUMBER}", "db": "etl_${INSTANCE_NUMBER}"}`
	require.NoError(t, os.WriteFile(templatePath, []byte(template), 0644))

	err := RenderTemplate(templatePath, outPath, map[string]string{"INSTANCE_NUMBER": "3"})
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)

	assert.Equal(t, `{"instance": "3", "db": "etl_3"}`, string(data))
	assert.NotContains(t, string(data), "${INSTANCE_NUMBER}")
}

func TestRenderTemplateWritesNoBOM(t *testing.T) {
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "tpl.json")
	outPath := filepath.Join(dir, "out.json")

	// Template carries a BOM; the output must not.
	content := append(append([]byte{}, utf8BOM...), []byte(`{"instance": "${INSTANCE_NUMBER}"}`)...)
	require.NoError(t, os.WriteFile(templatePath, content, 0644))

	require.NoError(t, RenderTemplate(templatePath, outPath, map[string]string{"INSTANCE_NUMBER": "7"}))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, `{"instance": "7"}`, string(data))
}

func TestRenderTemplateIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "tpl.json")
	outPath := filepath.Join(dir, "out.json")
	require.NoError(t, os.WriteFile(templatePath, []byte(`{"instance": "${INSTANCE_NUMBER}"}`), 0644))

	vars := map[string]string{"INSTANCE_NUMBER": "5"}
	require.NoError(t, RenderTemplate(templatePath, outPath, vars))
	first, err := os.ReadFile(outPath)
	require.NoError(t, err)

	require.NoError(t, RenderTemplate(templatePath, outPath, vars))
	second, err := os.ReadFile(outPath)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRenderTemplateMissingTemplate(t *testing.T) {
	dir := t.TempDir()

	err := RenderTemplate(filepath.Join(dir, "missing.json"), filepath.Join(dir, "out.json"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
	assert.Contains(t, err.Error(), "missing.json")
}

func TestVerifyRenderedDetectsVanishedOutput(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.json")
	require.NoError(t, os.WriteFile(outPath, []byte(`{}`), 0644))

	// Simulated transient failure: the output disappears after the write.
	require.NoError(t, os.Remove(outPath))

	err := VerifyRendered(outPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRenderVerificationFailed)
}

func TestVerifyRenderedRejectsEmptyOutput(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.json")
	require.NoError(t, os.WriteFile(outPath, nil, 0644))

	err := VerifyRendered(outPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRenderVerificationFailed)
}
