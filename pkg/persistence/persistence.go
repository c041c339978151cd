// Package persistence defines the storage abstraction for workflows, runs,
// schedules and automation rules.
package persistence

import (
	"context"
	"time"

	"github.com/terrawatch/terrawatch/pkg/models"
)

// ListWorkflowsOptions filters and pages workflow listings.
type ListWorkflowsOptions struct {
	Status *models.WorkflowStatus
	Owner  string
	Limit  int
	Offset int
}

// ListRunsOptions filters and pages run listings.
type ListRunsOptions struct {
	WorkflowID string
	Status     *models.RunStatus
	Limit      int
	Offset     int
}

// WorkflowRepository stores workflow definitions. Deletion is soft: deleted
// workflows stay on disk but disappear from reads.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	List(ctx context.Context, opts ListWorkflowsOptions) ([]*models.Workflow, error)
	// RecordRun folds one finished run into the workflow counters without
	// rewriting the rest of the row, so concurrent runs and operator edits
	// do not clobber each other.
	RecordRun(ctx context.Context, id string, success bool, finishedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// RunRepository stores workflow runs.
type RunRepository interface {
	Save(ctx context.Context, run *models.Run) error
	GetByID(ctx context.Context, id string) (*models.Run, error)
	List(ctx context.Context, opts ListRunsOptions) ([]*models.Run, error)
	// DeleteFinishedBefore removes terminal runs older than the cutoff and
	// returns how many were removed.
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// TaskRunRepository stores per-task execution records.
type TaskRunRepository interface {
	Save(ctx context.Context, taskRun *models.TaskRun) error
	GetByID(ctx context.Context, id string) (*models.TaskRun, error)
	ListByRun(ctx context.Context, runID string) ([]*models.TaskRun, error)
}

// ScheduleRepository stores schedule definitions.
type ScheduleRepository interface {
	Save(ctx context.Context, schedule *models.Schedule) error
	GetByID(ctx context.Context, id string) (*models.Schedule, error)
	List(ctx context.Context) ([]*models.Schedule, error)
	// ListDue returns enabled schedules whose next run time is at or before
	// the given instant.
	ListDue(ctx context.Context, now time.Time) ([]*models.Schedule, error)
	Delete(ctx context.Context, id string) error
}

// RuleRepository stores automation rules.
type RuleRepository interface {
	Save(ctx context.Context, rule *models.AutomationRule) error
	GetByID(ctx context.Context, id string) (*models.AutomationRule, error)
	List(ctx context.Context) ([]*models.AutomationRule, error)
	ListByEvent(ctx context.Context, event models.TriggerEvent) ([]*models.AutomationRule, error)
	Delete(ctx context.Context, id string) error
}

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	RunRepository() RunRepository
	TaskRunRepository() TaskRunRepository
	ScheduleRepository() ScheduleRepository
	RuleRepository() RuleRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
