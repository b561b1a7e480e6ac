package runner

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultsMarshalWithoutErrorFields(t *testing.T) {
	result := PipelineResult{
		Status:   StateFailed,
		Instance: 3,
		Stages: []StageResult{
			{Name: "render", Status: "failed", Error: errors.New("boom")},
		},
		Error: errors.New("stage 'render' failed"),
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)

	// error values marshal as {}; the message travels in Detail/Warnings.
	assert.NotContains(t, string(data), `"error"`)
	assert.NotContains(t, string(data), "{}")
	assert.Contains(t, string(data), `"status":"failed"`)
}
