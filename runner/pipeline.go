package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"etldeploy/events"
	"etldeploy/runner/storage"
)

// Stage is one unit of work in the fixed provisioning sequence. Stages are
// defined statically before a run begins and never mutated during it.
type Stage struct {
	Name       string
	State      string // run state entered when the stage starts; empty keeps the current one
	BestEffort bool   // failure is recorded but does not halt the run
	Run        func(ctx context.Context, rc *RunContext) error
}

// RunContext is the state shared by the stages of a single run. The config
// and resolved params are bound before the first stage executes.
type RunContext struct {
	Cfg    *Config
	Params *Params
	Opts   RunOptions

	Detail   string   // set by a stage for its execution record
	Warnings []string // non-fatal findings, e.g. a skipped dependency install
	ExitCode int      // exit code of the invoked child on the success path
}

// Run-level mutual exclusion, keyed by instance identifier. Two runs for
// the same instance share a project directory and environment and must be
// serialized; distinct instances are directory-disjoint and may overlap.
var (
	locksMu       sync.Mutex
	instanceLocks = make(map[int]*sync.Mutex)
)

func lockFor(instance int) *sync.Mutex {
	locksMu.Lock()
	defer locksMu.Unlock()
	l, ok := instanceLocks[instance]
	if !ok {
		l = &sync.Mutex{}
		instanceLocks[instance] = l
	}
	return l
}

// BuildStages assembles the provisioning sequence for one run. The order is
// load-bearing: the project directory must exist before rendering, the
// settings must exist before provisioning reads their path, and the
// environment must exist before invocation.
func BuildStages(prov *Provisioner, inv *Invoker) []Stage {
	return []Stage{
		{
			Name:  "prepare",
			State: StatePreparing,
			Run: func(ctx context.Context, rc *RunContext) error {
				if err := os.MkdirAll(rc.Params.ProjectDir, 0755); err != nil {
					return fmt.Errorf("failed to create project directory %s: %w", rc.Params.ProjectDir, err)
				}
				rc.Detail = rc.Params.ProjectDir
				return nil
			},
		},
		{
			Name:  "render",
			State: StateRendering,
			Run: func(ctx context.Context, rc *RunContext) error {
				vars := map[string]string{
					"INSTANCE_NUMBER": strconv.Itoa(rc.Params.Instance),
				}
				if err := RenderTemplate(rc.Params.TemplatePath, rc.Params.SettingsPath, vars); err != nil {
					return err
				}
				rc.Detail = rc.Params.SettingsPath
				return nil
			},
		},
		{
			Name:  "provision",
			State: StateProvisioning,
			Run: func(ctx context.Context, rc *RunContext) error {
				if err := prov.EnsureEnv(ctx, rc.Params.VenvDir); err != nil {
					return err
				}
				rc.Detail = rc.Params.VenvDir
				return nil
			},
		},
		{
			Name: "dependencies",
			Run: func(ctx context.Context, rc *RunContext) error {
				skipped, err := prov.InstallDeps(ctx, rc.Params.VenvDir, rc.Params.RequirementsPath)
				if err != nil {
					return err
				}
				if skipped {
					warning := fmt.Sprintf("dependency manifest not found, install skipped: %s", rc.Params.RequirementsPath)
					rc.Warnings = append(rc.Warnings, warning)
					rc.Detail = warning
				} else {
					rc.Detail = rc.Params.RequirementsPath
				}
				return nil
			},
		},
		{
			Name:  "invoke",
			State: StateInvoking,
			Run: func(ctx context.Context, rc *RunContext) error {
				result, err := inv.Invoke(ctx, InvokeSpec{
					Python:   rc.Params.VenvPython(),
					Script:   rc.Params.ScriptPath,
					Settings: rc.Params.SettingsPath,
					WorkDir:  rc.Params.ProjectDir,
					Stream:   rc.Opts.StreamToTerminal,
				})
				if result != nil {
					rc.Detail = result.Output
					rc.ExitCode = result.ExitCode
				}
				return err
			},
		},
		{
			Name:       "report",
			BestEffort: true,
			Run: func(ctx context.Context, rc *RunContext) error {
				return writeRunReport(rc)
			},
		},
	}
}

// RunInstance executes the full provisioning pipeline for one instance.
// The instance parameter is validated and all paths are derived before any
// stage runs; an invalid parameter aborts without touching the filesystem.
func RunInstance(ctx context.Context, cfg *Config, instance int, opts RunOptions) (*PipelineResult, error) {
	startTime := time.Now()

	params, err := ResolveParams(cfg, instance)
	if err != nil {
		return nil, err
	}

	lock := lockFor(instance)
	lock.Lock()
	defer lock.Unlock()

	result := &PipelineResult{
		UID:      uuid.NewString(),
		Instance: instance,
		Status:   StatePending,
		Stages:   make([]StageResult, 0),
	}

	var run *storage.Run
	if opts.Storage != nil {
		run, err = opts.Storage.CreateRun(result.UID, instance, params.ProjectDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create run: %w", err)
		}
		result.RunID = run.ID
	}

	events.GetBroker().Broadcast(events.RunStarted, map[string]interface{}{
		"uid":      result.UID,
		"run_id":   result.RunID,
		"instance": instance,
	})

	rc := &RunContext{Cfg: cfg, Params: params, Opts: opts}
	prov := NewProvisioner(cfg.Python, opts.StreamToTerminal)
	inv := NewInvoker()

	if err := executeSequence(ctx, BuildStages(prov, inv), rc, result, opts); err != nil {
		result.Duration = time.Since(startTime)
		result.ExitCode = rc.ExitCode
		result.Error = err

		if opts.Storage != nil {
			_ = opts.Storage.UpdateRunStatus(result.RunID, StateFailed, result.Duration)
		}
		events.GetBroker().Broadcast(events.RunFinished, map[string]interface{}{
			"uid":      result.UID,
			"run_id":   result.RunID,
			"instance": instance,
			"status":   StateFailed,
		})

		return result, err
	}

	result.Status = StateSucceeded
	result.Duration = time.Since(startTime)
	result.ExitCode = rc.ExitCode
	result.Warnings = append(result.Warnings, rc.Warnings...)

	if opts.Storage != nil {
		if err := opts.Storage.UpdateRunStatus(result.RunID, StateSucceeded, result.Duration); err != nil {
			return nil, fmt.Errorf("failed to update run status: %w", err)
		}
	}
	events.GetBroker().Broadcast(events.RunFinished, map[string]interface{}{
		"uid":      result.UID,
		"run_id":   result.RunID,
		"instance": instance,
		"status":   StateSucceeded,
	})

	if opts.StreamToTerminal {
		fmt.Printf("\n🏁 Instance %d provisioned and smoke-tested successfully.\n", instance)
	}

	return result, nil
}

// executeSequence runs the stages strictly in order, appending exactly one
// StageResult per executed stage. The first failure of a non-best-effort
// stage halts the sequence and marks the run Failed; best-effort failures
// are downgraded to warnings.
func executeSequence(ctx context.Context, stages []Stage, rc *RunContext, result *PipelineResult, opts RunOptions) error {
	for _, stage := range stages {
		if stage.State != "" {
			result.Status = stage.State
		}

		stageResult, err := executeStage(ctx, stage, rc, result.RunID, opts)
		result.Stages = append(result.Stages, stageResult)

		if err != nil {
			if stage.BestEffort {
				result.Warnings = append(result.Warnings, fmt.Sprintf("stage '%s' failed (best-effort): %v", stage.Name, err))
				continue
			}

			result.Status = StateFailed
			return fmt.Errorf("stage '%s' failed: %w", stage.Name, err)
		}
	}
	return nil
}

// executeStage runs a single stage, records its execution, and broadcasts
// start/finish events.
func executeStage(ctx context.Context, stage Stage, rc *RunContext, runID int, opts RunOptions) (StageResult, error) {
	stageStart := time.Now()
	rc.Detail = ""

	if opts.StreamToTerminal {
		fmt.Println("→", stage.Name)
	}

	var stageExec *storage.StageExecution
	var err error
	if opts.Storage != nil {
		stageExec, err = opts.Storage.CreateStageExecution(runID, stage.Name)
		if err != nil {
			return StageResult{}, fmt.Errorf("failed to create stage execution: %w", err)
		}
	}

	events.GetBroker().Broadcast(events.StageStarted, map[string]interface{}{
		"run_id": runID,
		"stage":  stage.Name,
	})

	err = stage.Run(ctx, rc)
	stageDuration := time.Since(stageStart)

	stageResult := StageResult{
		Name:     stage.Name,
		Detail:   rc.Detail,
		Duration: stageDuration,
	}

	status := "success"
	if err != nil {
		status = "failed"
		stageResult.Status = status
		stageResult.Error = err

		if opts.StreamToTerminal {
			fmt.Println("❌ Stage failed:", err)
		}
		if opts.Storage != nil && stageExec != nil {
			_ = opts.Storage.UpdateStageExecution(stageExec.ID, status, err.Error(), stageDuration)
		}
		events.GetBroker().Broadcast(events.StageFinished, map[string]interface{}{
			"run_id": runID,
			"stage":  stage.Name,
			"status": status,
		})

		return stageResult, err
	}

	stageResult.Status = status
	if opts.StreamToTerminal {
		fmt.Println("✅ Done:", stage.Name)
	}
	if opts.Storage != nil && stageExec != nil {
		if err := opts.Storage.UpdateStageExecution(stageExec.ID, status, rc.Detail, stageDuration); err != nil {
			return StageResult{}, fmt.Errorf("failed to update stage execution: %w", err)
		}
	}
	events.GetBroker().Broadcast(events.StageFinished, map[string]interface{}{
		"run_id": runID,
		"stage":  stage.Name,
		"status": status,
	})

	return stageResult, nil
}

// writeRunReport drops a small machine-readable summary into the project
// root. The stage is best-effort: a failed report never fails the run.
func writeRunReport(rc *RunContext) error {
	report := map[string]interface{}{
		"instance":    rc.Params.Instance,
		"settings":    rc.Params.SettingsPath,
		"exit_code":   rc.ExitCode,
		"warnings":    rc.Warnings,
		"finished_at": time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(rc.Params.ProjectDir, "last_run.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run report %s: %w", path, err)
	}
	rc.Detail = path
	return nil
}
