// Package script implements the script task type as a restricted expression
// evaluator. Scripts are template expressions over the run context; they
// cannot touch the filesystem, the network, or anything outside the context
// they are handed. The original platform executed arbitrary user code here,
// which is not a capability this engine grants.
package script

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/template"
)

type Handler struct {
	Script string
}

func NewHandler(config map[string]any) (*Handler, error) {
	script, _ := config["script"].(string)

	return &Handler{Script: script}, nil
}

func (h *Handler) Execute(ctx context.Context, runCtx *models.RunContext, logger *slog.Logger) (models.TaskResult, error) {
	logger = logger.With("module", "script_handler")
	logger.InfoContext(ctx, "Evaluating script expression")

	result, err := template.RenderWithContext(h.Script, runCtx)
	if err != nil {
		return models.TaskResult{}, fmt.Errorf("script evaluation failed: %w", err)
	}

	return models.SuccessResult(
		map[string]any{"result": result},
		"Script expression evaluated",
	), nil
}
