package runner

import (
	"time"

	"etldeploy/runner/storage"
)

// Run states. Transitions are strictly forward; Failed is terminal.
const (
	StatePending      = "pending"
	StatePreparing    = "preparing"
	StateRendering    = "rendering"
	StateProvisioning = "provisioning"
	StateInvoking     = "invoking"
	StateSucceeded    = "succeeded"
	StateFailed       = "failed"
)

// PipelineResult represents the outcome of one provisioning run.
type PipelineResult struct {
	Status   string        `json:"status"`
	RunID    int           `json:"run_id"`
	UID      string        `json:"uid"`
	Instance int           `json:"instance"`
	Stages   []StageResult `json:"stages"`
	Duration time.Duration `json:"duration"`
	ExitCode int           `json:"exit_code"`
	Warnings []string      `json:"warnings,omitempty"`
	Error    error         `json:"-"` // errors do not round-trip through encoding/json
}

// StageResult represents the outcome of a single stage, appended in
// execution order.
type StageResult struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"` // "success" or "failed"
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration"`
	Error    error         `json:"-"`
}

// RunOptions configures how a run is executed.
type RunOptions struct {
	Storage          *storage.Storage // optional run-history persistence
	StreamToTerminal bool             // if true, mirror child output to the terminal
}
