// Package models defines the core domain models for the automation engine.
package models

import (
	"strconv"
	"time"
)

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, not executable
	WorkflowStatusActive   WorkflowStatus = "active"   // Executable by triggers
	WorkflowStatusPaused   WorkflowStatus = "paused"   // Kept, not executable
	WorkflowStatusArchived WorkflowStatus = "archived" // Historical, not executable
)

// TriggerType describes how a workflow is meant to be started.
type TriggerType string

const (
	TriggerTypeManual     TriggerType = "manual"
	TriggerTypeSchedule   TriggerType = "schedule"
	TriggerTypeDetection  TriggerType = "detection"
	TriggerTypeWebhook    TriggerType = "webhook"
	TriggerTypeDataChange TriggerType = "data_change"
)

// Workflow is a named, ordered collection of dependent tasks plus a trigger
// descriptor and aggregate execution statistics.
type Workflow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	Status      WorkflowStatus `json:"status"      validate:"required,oneof=draft active paused archived"`
	Tasks       []*Task        `json:"tasks"`

	TriggerType   TriggerType    `json:"trigger_type"`
	TriggerConfig map[string]any `json:"trigger_config,omitempty"`

	TimeoutMinutes int `json:"timeout_minutes"`

	// Aggregate counters, updated at run finalization.
	ExecutionCount int        `json:"execution_count"`
	SuccessCount   int        `json:"success_count"`
	FailureCount   int        `json:"failure_count"`
	LastExecution  *time.Time `json:"last_execution,omitempty"`

	Tags     []string       `json:"tags,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Owner    string         `json:"owner"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// CanExecute reports whether the workflow accepts new runs.
func (w *Workflow) CanExecute() bool {
	return w.Status == WorkflowStatusActive && w.DeletedAt == nil
}

// SuccessRate returns the percentage of successful runs, rounded to two
// decimal places.
func (w *Workflow) SuccessRate() float64 {
	if w.ExecutionCount == 0 {
		return 0.0
	}

	rate := float64(w.SuccessCount) / float64(w.ExecutionCount) * 100

	return float64(int(rate*100+0.5)) / 100
}

// RecordRun folds one finished run into the workflow counters.
func (w *Workflow) RecordRun(success bool, finishedAt time.Time) {
	w.ExecutionCount++
	if success {
		w.SuccessCount++
	} else {
		w.FailureCount++
	}

	w.LastExecution = &finishedAt
	w.UpdatedAt = finishedAt
}

// ActiveTasks returns the enabled tasks of the workflow.
func (w *Workflow) ActiveTasks() []*Task {
	active := make([]*Task, 0, len(w.Tasks))

	for _, task := range w.Tasks {
		if task.Enabled {
			active = append(active, task)
		}
	}

	return active
}

// TaskByID looks a task up by its identifier.
func (w *Workflow) TaskByID(id string) (*Task, bool) {
	for _, task := range w.Tasks {
		if task.ID == id {
			return task, true
		}
	}

	return nil, false
}

// Validate checks structural invariants that hold independent of task
// configuration payloads: unique order values and dependency edges that stay
// inside the workflow. Dependency cycles are the resolver's concern.
func (w *Workflow) Validate() error {
	seenOrder := make(map[int]string, len(w.Tasks))
	ids := make(map[string]struct{}, len(w.Tasks))

	for _, task := range w.Tasks {
		ids[task.ID] = struct{}{}

		if other, dup := seenOrder[task.Order]; dup {
			return &ValidationError{
				Field:  "tasks",
				Reason: "duplicate order " + strconv.Itoa(task.Order) + " on tasks " + other + " and " + task.ID,
			}
		}

		seenOrder[task.Order] = task.ID
	}

	for _, task := range w.Tasks {
		for _, dep := range task.DependsOn {
			if dep == task.ID {
				return &ValidationError{
					Field:  "depends_on",
					Reason: "task " + task.ID + " depends on itself",
				}
			}

			if _, ok := ids[dep]; !ok {
				return &ValidationError{
					Field:  "depends_on",
					Reason: "task " + task.ID + " depends on " + dep + " which is not part of the workflow",
				}
			}
		}
	}

	return nil
}

// ValidationError reports a structural problem with a workflow definition.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid workflow: " + e.Field + ": " + e.Reason
}
