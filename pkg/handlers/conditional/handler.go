// Package conditional implements the conditional task type: it evaluates a
// boolean expression over the run context and reports the outcome without
// side effects. A false condition is a successful result; this is the one
// task type whose outcome never halts a run.
package conditional

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/template"
)

type Handler struct {
	Condition string
}

func NewHandler(config map[string]any) (*Handler, error) {
	condition, _ := config["condition"].(string)

	return &Handler{Condition: condition}, nil
}

func (h *Handler) Execute(ctx context.Context, runCtx *models.RunContext, logger *slog.Logger) (models.TaskResult, error) {
	logger = logger.With("module", "conditional_handler")

	met, err := template.RenderBool(h.Condition, runCtx)
	if err != nil {
		return models.TaskResult{}, fmt.Errorf("failed to evaluate condition: %w", err)
	}

	logger.InfoContext(ctx, "Condition evaluated", "condition_met", met)

	return models.SuccessResult(
		map[string]any{"condition_met": met},
		fmt.Sprintf("Condition evaluated: %t", met),
	), nil
}
