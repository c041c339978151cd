package models

import "fmt"

// TaskType is the closed set of task kinds the dispatcher knows how to run.
// Adding a type means adding a handler package and a registry entry; free-text
// types are rejected at validation time.
type TaskType string

const (
	TaskTypeAgentExecution TaskType = "agent_execution"
	TaskTypeDataSync       TaskType = "data_sync"
	TaskTypeMonitorCheck   TaskType = "monitor_check"
	TaskTypeNotification   TaskType = "notification"
	TaskTypeDataTransform  TaskType = "data_transform"
	TaskTypeConditional    TaskType = "conditional"
	TaskTypeLoop           TaskType = "loop"
	TaskTypeAPICall        TaskType = "api_call"
	TaskTypeScript         TaskType = "script"
)

// TaskTypes lists every known task type.
func TaskTypes() []TaskType {
	return []TaskType{
		TaskTypeAgentExecution,
		TaskTypeDataSync,
		TaskTypeMonitorCheck,
		TaskTypeNotification,
		TaskTypeDataTransform,
		TaskTypeConditional,
		TaskTypeLoop,
		TaskTypeAPICall,
		TaskTypeScript,
	}
}

// ParseTaskType converts a raw string into a TaskType, rejecting unknown
// values.
func ParseTaskType(raw string) (TaskType, error) {
	for _, t := range TaskTypes() {
		if string(t) == raw {
			return t, nil
		}
	}

	return "", fmt.Errorf("unknown task type %q", raw)
}

// Task is one unit of work of a fixed type within a workflow, with declared
// dependencies and a per-task failure policy.
type Task struct {
	ID          string   `json:"id"          validate:"required"`
	WorkflowID  string   `json:"workflow_id" validate:"required"`
	Name        string   `json:"name"        validate:"required,min=1"`
	Description string   `json:"description"`
	Type        TaskType `json:"type"        validate:"required"`

	// Configuration carries the type-specific payload. Required keys per
	// type are enforced by the registry schema before dispatch.
	Configuration map[string]any `json:"configuration"`

	// Order is unique per workflow and breaks ties between tasks that are
	// ready at the same time. It is advisory; DependsOn is authoritative.
	Order     int      `json:"order"`
	DependsOn []string `json:"depends_on,omitempty"`

	TimeoutMinutes    int  `json:"timeout_minutes"`
	RetryOnFailure    bool `json:"retry_on_failure"`
	ContinueOnFailure bool `json:"continue_on_failure"`
	Enabled           bool `json:"enabled"`
}
