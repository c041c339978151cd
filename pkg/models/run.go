package models

import "time"

// RunStatus defines the state machine of a workflow run:
// pending -> running -> {success, failed, cancelled, timeout}.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSuccess   RunStatus = "success"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
	RunStatusTimeout   RunStatus = "timeout"
)

// IsTerminal reports whether no further transitions are allowed.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSuccess, RunStatusFailed, RunStatusCancelled, RunStatusTimeout:
		return true
	default:
		return false
	}
}

// Trigger provenance values recorded on runs.
const (
	TriggerSourceManual   = "manual"
	TriggerSourceSchedule = "schedule"
	TriggerSourceRule     = "rule"
	TriggerSourceRetry    = "retry"
)

// TriggerDataOriginalRunID links a retried run back to the run it retries.
const TriggerDataOriginalRunID = "original_execution_id"

// Run is one execution attempt of a workflow.
type Run struct {
	ID         string    `json:"id"          validate:"required"`
	WorkflowID string    `json:"workflow_id" validate:"required"`
	Status     RunStatus `json:"status"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Input  map[string]any `json:"input,omitempty"`
	Output map[string]any `json:"output,omitempty"`

	TriggerSource string         `json:"trigger_source"`
	TriggerData   map[string]any `json:"trigger_data,omitempty"`

	Logs         string `json:"logs,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	TasksTotal     int `json:"tasks_total"`
	TasksCompleted int `json:"tasks_completed"`
	TasksFailed    int `json:"tasks_failed"`

	// JobID is the opaque correlation id of the backing async job, so
	// cancellation and inspection can reach the in-flight execution.
	JobID string `json:"job_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Duration returns the wall-clock run time, or zero if the run has not
// finished.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.CompletedAt == nil {
		return 0
	}

	return r.CompletedAt.Sub(*r.StartedAt)
}

// ProgressPercentage returns completed tasks over total, in percent.
func (r *Run) ProgressPercentage() float64 {
	if r.TasksTotal == 0 {
		return 0.0
	}

	return float64(r.TasksCompleted) / float64(r.TasksTotal) * 100
}

// CanCancel reports whether the run is still cancellable.
func (r *Run) CanCancel() bool {
	return r.Status == RunStatusPending || r.Status == RunStatusRunning
}

// CanRetry reports whether the run may be retried. Retrying creates a new
// run; it never resumes this one.
func (r *Run) CanRetry() bool {
	return r.Status == RunStatusFailed
}
