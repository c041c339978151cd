package models

import "time"

// TaskRunStatus defines the state machine of a single task execution:
// pending -> running -> {success, failed, skipped}. Skipped marks tasks that
// never ran because an upstream failure halted the run.
type TaskRunStatus string

const (
	TaskRunStatusPending TaskRunStatus = "pending"
	TaskRunStatusRunning TaskRunStatus = "running"
	TaskRunStatusSuccess TaskRunStatus = "success"
	TaskRunStatusFailed  TaskRunStatus = "failed"
	TaskRunStatusSkipped TaskRunStatus = "skipped"
)

// IsTerminal reports whether no further transitions are allowed.
func (s TaskRunStatus) IsTerminal() bool {
	switch s {
	case TaskRunStatusSuccess, TaskRunStatusFailed, TaskRunStatusSkipped:
		return true
	default:
		return false
	}
}

// TaskRun is one execution attempt of a single task within a run.
type TaskRun struct {
	ID       string        `json:"id"      validate:"required"`
	RunID    string        `json:"run_id"  validate:"required"`
	TaskID   string        `json:"task_id" validate:"required"`
	TaskName string        `json:"task_name"`
	Status   TaskRunStatus `json:"status"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Input  map[string]any `json:"input,omitempty"`
	Output map[string]any `json:"output,omitempty"`

	Logs  string `json:"logs,omitempty"`
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
}

// Duration returns the wall-clock task time, or zero if unfinished.
func (t *TaskRun) Duration() time.Duration {
	if t.StartedAt == nil || t.CompletedAt == nil {
		return 0
	}

	return t.CompletedAt.Sub(*t.StartedAt)
}
