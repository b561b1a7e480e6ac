package runner

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func namedStage(name string, bestEffort bool, fn func(rc *RunContext) error) Stage {
	return Stage{
		Name:       name,
		BestEffort: bestEffort,
		Run: func(ctx context.Context, rc *RunContext) error {
			return fn(rc)
		},
	}
}

func TestExecuteSequenceRunsStagesInOrder(t *testing.T) {
	var order []string
	stages := []Stage{
		namedStage("first", false, func(rc *RunContext) error { order = append(order, "first"); return nil }),
		namedStage("second", false, func(rc *RunContext) error { order = append(order, "second"); return nil }),
		namedStage("third", false, func(rc *RunContext) error { order = append(order, "third"); return nil }),
	}

	result := &PipelineResult{Status: StatePending}
	err := executeSequence(context.Background(), stages, &RunContext{}, result, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second", "third"}, order)
	require.Len(t, result.Stages, 3)
	for i, name := range order {
		assert.Equal(t, name, result.Stages[i].Name)
		assert.Equal(t, "success", result.Stages[i].Status)
	}
}

func TestExecuteSequenceHaltsOnFirstFailure(t *testing.T) {
	boom := errors.New("boom")
	var thirdRan bool

	stages := []Stage{
		namedStage("first", false, func(rc *RunContext) error { return nil }),
		namedStage("second", false, func(rc *RunContext) error { return boom }),
		namedStage("third", false, func(rc *RunContext) error { thirdRan = true; return nil }),
	}

	result := &PipelineResult{Status: StatePending}
	err := executeSequence(context.Background(), stages, &RunContext{}, result, RunOptions{})
	require.Error(t, err)

	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "second")
	assert.False(t, thirdRan, "no stage may run after a fatal failure")
	assert.Equal(t, StateFailed, result.Status)
	require.Len(t, result.Stages, 2, "exactly one result per executed stage")
	assert.Equal(t, "failed", result.Stages[1].Status)
}

func TestExecuteSequenceBestEffortFailureContinues(t *testing.T) {
	var lastRan bool
	stages := []Stage{
		namedStage("optional", true, func(rc *RunContext) error { return errors.New("ignored") }),
		namedStage("last", false, func(rc *RunContext) error { lastRan = true; return nil }),
	}

	result := &PipelineResult{Status: StatePending}
	err := executeSequence(context.Background(), stages, &RunContext{}, result, RunOptions{})
	require.NoError(t, err)

	assert.True(t, lastRan)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "optional")
}

func TestExecuteSequenceAdvancesStates(t *testing.T) {
	var observed []string
	record := func(rc *RunContext) error { return nil }

	stages := []Stage{
		{Name: "prepare", State: StatePreparing, Run: func(ctx context.Context, rc *RunContext) error { return record(rc) }},
		{Name: "render", State: StateRendering, Run: func(ctx context.Context, rc *RunContext) error { return record(rc) }},
	}

	result := &PipelineResult{Status: StatePending}
	for _, stage := range stages {
		require.NoError(t, executeSequence(context.Background(), []Stage{stage}, &RunContext{}, result, RunOptions{}))
		observed = append(observed, result.Status)
	}

	assert.Equal(t, []string{StatePreparing, StateRendering}, observed)
}

// Full sequence against a real temp directory, with the external tools
// faked out: render produces the scenario output, provisioning materializes
// the venv, missing manifest downgrades to a warning, invocation succeeds.
func TestProvisioningSequenceEndToEnd(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root)
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "settings.template.json"),
		[]byte(`{"instance": "${INSTANCE_NUMBER}"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.py"), []byte("print('ok')\n"), 0644))

	params, err := ResolveParams(cfg, 3)
	require.NoError(t, err)

	fake := &fakeCommands{effect: venvCreator(t)}
	prov := &Provisioner{Python: cfg.Python, Run: fake.run}
	inv := &Invoker{launch: func(cmd *exec.Cmd) error { return nil }}

	rc := &RunContext{Cfg: cfg, Params: params}
	result := &PipelineResult{Status: StatePending}

	err = executeSequence(context.Background(), BuildStages(prov, inv), rc, result, RunOptions{})
	require.NoError(t, err)

	// Scenario: identifier 3 renders into Project3/settings.json.
	rendered, err := os.ReadFile(filepath.Join(root, "deployments", "Project3", "settings.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"instance": "3"}`, string(rendered))

	// Missing manifest is a warning, not a failure.
	require.Len(t, rc.Warnings, 1)
	assert.Contains(t, rc.Warnings[0], "requirements.txt")

	// Best-effort report stage left its summary behind.
	assert.FileExists(t, filepath.Join(params.ProjectDir, "last_run.json"))

	assert.Equal(t, 0, rc.ExitCode)
}

func TestLockForKeysByInstance(t *testing.T) {
	assert.Same(t, lockFor(3), lockFor(3))
	assert.NotSame(t, lockFor(3), lockFor(4))
}

func TestSameInstanceRunsAreSerialized(t *testing.T) {
	lock := lockFor(9)

	var inCritical, maxInCritical int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock.Lock()
			defer lock.Unlock()

			mu.Lock()
			inCritical++
			if inCritical > maxInCritical {
				maxInCritical = inCritical
			}
			mu.Unlock()

			mu.Lock()
			inCritical--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInCritical)
}
