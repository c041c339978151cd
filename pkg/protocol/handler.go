// Package protocol defines the interfaces and contracts for pluggable task
// handlers.
package protocol

import (
	"context"
	"log/slog"

	"github.com/terrawatch/terrawatch/pkg/models"
)

// TaskHandler executes one task against the current run context and returns
// the normalized result shape. Handlers own all task side effects; the
// dispatcher only routes and wraps failures.
type TaskHandler interface {
	Execute(ctx context.Context, runCtx *models.RunContext, logger *slog.Logger) (models.TaskResult, error)
}

// HandlerFactory creates handler instances for one task type and describes
// the configuration it accepts.
type HandlerFactory interface {
	// Create builds a handler from an already schema-validated configuration.
	Create(config map[string]any) (TaskHandler, error)

	// Type returns the task type this factory serves.
	Type() models.TaskType

	// Schema returns the JSON schema the configuration must satisfy.
	Schema() map[string]any
}
