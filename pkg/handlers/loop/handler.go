// Package loop implements the loop task type: it resolves a list from the
// run context and renders an expression once per element. Iteration happens
// inside a single task, there is no fan-out into child runs.
package loop

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/template"
)

type Handler struct {
	Items string
	Each  string
}

func NewHandler(config map[string]any) (*Handler, error) {
	handler := &Handler{}

	handler.Items, _ = config["items"].(string)
	handler.Each, _ = config["each"].(string)

	return handler, nil
}

func (h *Handler) Execute(ctx context.Context, runCtx *models.RunContext, logger *slog.Logger) (models.TaskResult, error) {
	logger = logger.With("module", "loop_handler")

	value, err := template.RenderWithContext(h.Items, runCtx)
	if err != nil {
		return models.TaskResult{}, fmt.Errorf("failed to resolve loop items: %w", err)
	}

	items, ok := value.([]any)
	if !ok {
		return models.TaskResult{}, fmt.Errorf("items expression must produce a list, got %T", value)
	}

	logger.InfoContext(ctx, "Iterating loop items", "count", len(items))

	results := make([]any, 0, len(items))

	for index, item := range items {
		if err := ctx.Err(); err != nil {
			return models.TaskResult{}, fmt.Errorf("loop interrupted at item %d: %w", index, err)
		}

		if h.Each == "" {
			results = append(results, item)

			continue
		}

		scope := runCtx.Snapshot()
		scope["item"] = item
		scope["index"] = index

		rendered, err := template.Render(h.Each, scope)
		if err != nil {
			return models.TaskResult{}, fmt.Errorf("failed to render item %d: %w", index, err)
		}

		results = append(results, rendered)
	}

	return models.SuccessResult(
		map[string]any{"results": results, "count": len(results)},
		fmt.Sprintf("Processed %d items", len(results)),
	), nil
}
