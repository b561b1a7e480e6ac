package storage

import "time"

// Run represents one provisioning pipeline execution
type Run struct {
	ID         int        `json:"id"`
	UID        string     `json:"uid"`
	Status     string     `json:"status"` // "running", "succeeded", "failed"
	Instance   int        `json:"instance"`
	ProjectDir string     `json:"project_dir"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Duration   *string    `json:"duration,omitempty"`
}

// StageExecution represents execution of a single stage within a run
type StageExecution struct {
	ID         int        `json:"id"`
	RunID      int        `json:"run_id"`
	Name       string     `json:"name"`
	Status     string     `json:"status"` // "running", "success", "failed"
	Detail     string     `json:"detail"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Duration   *string    `json:"duration,omitempty"`
}
