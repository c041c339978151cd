// Package web provides the REST API for workflows, runs, schedules and
// automation rules.
package web

import (
	"time"

	"github.com/terrawatch/terrawatch/pkg/models"
)

// CreateWorkflowRequest is the request body for creating a workflow. The
// workflow starts as a draft; activation is a separate call.
type CreateWorkflowRequest struct {
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	Owner       string         `json:"owner"`
	Tags        []string       `json:"tags,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	TriggerType   string         `json:"trigger_type,omitempty"`
	TriggerConfig map[string]any `json:"trigger_config,omitempty"`

	TimeoutMinutes int           `json:"timeout_minutes"`
	Tasks          []TaskRequest `json:"tasks" validate:"dive"`
}

// TaskRequest is one task definition inside a workflow request body.
type TaskRequest struct {
	Name          string         `json:"name" validate:"required,min=1"`
	Description   string         `json:"description"`
	Type          string         `json:"type" validate:"required"`
	Configuration map[string]any `json:"configuration"`

	Order     int      `json:"order"`
	DependsOn []string `json:"depends_on,omitempty"`

	TimeoutMinutes    int  `json:"timeout_minutes"`
	RetryOnFailure    bool `json:"retry_on_failure"`
	ContinueOnFailure bool `json:"continue_on_failure"`
	Enabled           bool `json:"enabled"`
}

// ToModel converts the request into a workflow model. Task ids are assigned
// by the service layer.
func (r CreateWorkflowRequest) ToModel() *models.Workflow {
	tasks := make([]*models.Task, 0, len(r.Tasks))
	for _, task := range r.Tasks {
		tasks = append(tasks, &models.Task{
			Name:              task.Name,
			Description:       task.Description,
			Type:              models.TaskType(task.Type),
			Configuration:     task.Configuration,
			Order:             task.Order,
			DependsOn:         task.DependsOn,
			TimeoutMinutes:    task.TimeoutMinutes,
			RetryOnFailure:    task.RetryOnFailure,
			ContinueOnFailure: task.ContinueOnFailure,
			Enabled:           task.Enabled,
		})
	}

	return &models.Workflow{
		Name:           r.Name,
		Description:    r.Description,
		Owner:          r.Owner,
		Tags:           r.Tags,
		Metadata:       r.Metadata,
		TriggerType:    models.TriggerType(r.TriggerType),
		TriggerConfig:  r.TriggerConfig,
		TimeoutMinutes: r.TimeoutMinutes,
		Tasks:          tasks,
	}
}

// TriggerRunRequest is the request body for starting a run manually.
type TriggerRunRequest struct {
	Input map[string]any `json:"input,omitempty"`
}

// CreateScheduleRequest is the request body for creating a schedule.
type CreateScheduleRequest struct {
	WorkflowID  string `json:"workflow_id" validate:"required"`
	Name        string `json:"name"        validate:"required"`
	Description string `json:"description"`

	Type            string     `json:"type" validate:"required,oneof=interval cron once"`
	IntervalMinutes int        `json:"interval_minutes,omitempty"`
	CronExpression  string     `json:"cron_expression,omitempty"`
	ScheduledTime   *time.Time `json:"scheduled_time,omitempty"`

	Input   map[string]any `json:"input,omitempty"`
	Enabled bool           `json:"is_enabled"`
}

func (r CreateScheduleRequest) ToModel() *models.Schedule {
	return &models.Schedule{
		WorkflowID:      r.WorkflowID,
		Name:            r.Name,
		Description:     r.Description,
		Type:            models.ScheduleType(r.Type),
		IntervalMinutes: r.IntervalMinutes,
		CronExpression:  r.CronExpression,
		ScheduledTime:   r.ScheduledTime,
		Input:           r.Input,
		Enabled:         r.Enabled,
	}
}

// CreateRuleRequest is the request body for creating an automation rule.
type CreateRuleRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`

	TriggerEvent string         `json:"trigger_event" validate:"required"`
	Conditions   map[string]any `json:"conditions,omitempty"`

	WorkflowID    string         `json:"workflow_id" validate:"required"`
	WorkflowInput map[string]any `json:"workflow_input,omitempty"`

	ThrottleMinutes int  `json:"throttle_minutes"`
	Enabled         bool `json:"is_enabled"`
}

func (r CreateRuleRequest) ToModel() *models.AutomationRule {
	return &models.AutomationRule{
		Name:            r.Name,
		Description:     r.Description,
		Status:          models.RuleStatusActive,
		Enabled:         r.Enabled,
		TriggerEvent:    models.TriggerEvent(r.TriggerEvent),
		Conditions:      r.Conditions,
		WorkflowID:      r.WorkflowID,
		WorkflowInput:   r.WorkflowInput,
		ThrottleMinutes: r.ThrottleMinutes,
	}
}
