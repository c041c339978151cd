// Package engine runs workflows: it resolves the task graph, dispatches
// tasks to their handlers and drives the run state machine.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/registry"
)

// Dispatcher executes a single task: configuration validation, handler
// creation, per-task timeout, panic containment and the one-shot retry.
// Whatever goes wrong inside a handler comes back as a failed TaskResult,
// never as an error or a panic.
type Dispatcher struct {
	registry *registry.Registry
	logger   *slog.Logger
}

func NewDispatcher(reg *registry.Registry, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		logger:   logger.With("module", "dispatcher"),
	}
}

// Run executes the task and returns its result plus how many retries were
// spent.
func (d *Dispatcher) Run(ctx context.Context, task *models.Task, runCtx *models.RunContext) (models.TaskResult, int) {
	result := d.runOnce(ctx, task, runCtx)

	if result.Status == models.ResultStatusFailed && task.RetryOnFailure && ctx.Err() == nil {
		d.logger.InfoContext(ctx, "Retrying failed task", "task_id", task.ID, "task_name", task.Name)

		result = d.runOnce(ctx, task, runCtx)

		return result, 1
	}

	return result, 0
}

func (d *Dispatcher) runOnce(ctx context.Context, task *models.Task, runCtx *models.RunContext) (result models.TaskResult) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "Task handler panicked",
				"task_id", task.ID, "panic", r)

			result = models.FailedResult(
				fmt.Sprintf("task handler panicked: %v", r),
				string(debug.Stack()),
			)
		}
	}()

	handler, err := d.registry.CreateHandler(task.Type, task.Configuration)
	if err != nil {
		return models.FailedResult(err.Error(), "")
	}

	taskCtx := ctx

	if task.TimeoutMinutes > 0 {
		var cancel context.CancelFunc

		taskCtx, cancel = context.WithTimeout(ctx, time.Duration(task.TimeoutMinutes)*time.Minute)
		defer cancel()
	}

	taskLogger := d.logger.With("task_id", task.ID, "task_name", task.Name, "task_type", task.Type)

	result, err = handler.Execute(taskCtx, runCtx, taskLogger)
	if err != nil {
		if taskCtx.Err() == context.DeadlineExceeded {
			return models.FailedResult(
				fmt.Sprintf("task timed out after %d minutes", task.TimeoutMinutes),
				err.Error(),
			)
		}

		return models.FailedResult(err.Error(), "")
	}

	return result
}
