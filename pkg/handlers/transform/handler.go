// Package transform implements the data_transform task type: row-set
// transformations (filter, aggregate, sort, select) over data already in the
// run context.
package transform

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/template"
)

type Handler struct {
	TransformType string
	Input         string
	Field         string
	Operator      string
	Value         any
	Operation     string
	Descending    bool
	Fields        []string
}

func NewHandler(config map[string]any) (*Handler, error) {
	handler := &Handler{}

	handler.TransformType, _ = config["transform_type"].(string)
	handler.Input, _ = config["input"].(string)
	handler.Field, _ = config["field"].(string)
	handler.Operator, _ = config["operator"].(string)
	handler.Value = config["value"]
	handler.Operation, _ = config["operation"].(string)
	handler.Descending, _ = config["descending"].(bool)

	if rawFields, ok := config["fields"].([]any); ok {
		for _, raw := range rawFields {
			if s, ok := raw.(string); ok {
				handler.Fields = append(handler.Fields, s)
			}
		}
	}

	return handler, nil
}

func (h *Handler) Execute(ctx context.Context, runCtx *models.RunContext, logger *slog.Logger) (models.TaskResult, error) {
	logger = logger.With("module", "transform_handler", "transform_type", h.TransformType)
	logger.InfoContext(ctx, "Executing data_transform task")

	rows, err := h.extractRows(runCtx)
	if err != nil {
		return models.TaskResult{}, fmt.Errorf("failed to extract input rows: %w", err)
	}

	var output map[string]any

	switch h.TransformType {
	case "filter":
		filtered := h.filter(rows)
		output = map[string]any{"rows": filtered, "count": len(filtered)}
	case "aggregate":
		value, aggErr := h.aggregate(rows)
		if aggErr != nil {
			return models.TaskResult{}, aggErr
		}

		output = map[string]any{"result": value, "count": len(rows)}
	case "sort":
		sorted := h.sort(rows)
		output = map[string]any{"rows": sorted, "count": len(sorted)}
	case "select":
		selected := h.selectFields(rows)
		output = map[string]any{"rows": selected, "count": len(selected)}
	default:
		return models.TaskResult{}, fmt.Errorf("unsupported transform type %q", h.TransformType)
	}

	logs := fmt.Sprintf("Transform %s applied to %d rows", h.TransformType, len(rows))

	return models.SuccessResult(output, logs), nil
}

// extractRows renders the input expression and coerces the result into a
// list of objects. An empty expression yields no rows.
func (h *Handler) extractRows(runCtx *models.RunContext) ([]map[string]any, error) {
	if h.Input == "" {
		return nil, nil
	}

	value, err := template.RenderWithContext(h.Input, runCtx)
	if err != nil {
		return nil, err
	}

	list, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("input expression must produce a list, got %T", value)
	}

	rows := make([]map[string]any, 0, len(list))

	for _, item := range list {
		row, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("input rows must be objects, got %T", item)
		}

		rows = append(rows, row)
	}

	return rows, nil
}

func (h *Handler) filter(rows []map[string]any) []map[string]any {
	filtered := make([]map[string]any, 0, len(rows))

	for _, row := range rows {
		if h.matches(row[h.Field]) {
			filtered = append(filtered, row)
		}
	}

	return filtered
}

func (h *Handler) matches(value any) bool {
	switch h.Operator {
	case "eq", "":
		return fmt.Sprintf("%v", value) == fmt.Sprintf("%v", h.Value)
	case "ne":
		return fmt.Sprintf("%v", value) != fmt.Sprintf("%v", h.Value)
	case "gt":
		a, aok := toFloat(value)
		b, bok := toFloat(h.Value)

		return aok && bok && a > b
	case "lt":
		a, aok := toFloat(value)
		b, bok := toFloat(h.Value)

		return aok && bok && a < b
	case "contains":
		s, ok := value.(string)
		sub, subOK := h.Value.(string)

		return ok && subOK && strings.Contains(s, sub)
	default:
		return false
	}
}

func (h *Handler) aggregate(rows []map[string]any) (float64, error) {
	if h.Operation == "count" {
		return float64(len(rows)), nil
	}

	values := make([]float64, 0, len(rows))

	for _, row := range rows {
		if v, ok := toFloat(row[h.Field]); ok {
			values = append(values, v)
		}
	}

	if len(values) == 0 {
		return 0, nil
	}

	switch h.Operation {
	case "sum", "":
		return sum(values), nil
	case "avg":
		return sum(values) / float64(len(values)), nil
	case "min":
		minV := values[0]
		for _, v := range values[1:] {
			if v < minV {
				minV = v
			}
		}

		return minV, nil
	case "max":
		maxV := values[0]
		for _, v := range values[1:] {
			if v > maxV {
				maxV = v
			}
		}

		return maxV, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate operation %q", h.Operation)
	}
}

func (h *Handler) sort(rows []map[string]any) []map[string]any {
	sorted := make([]map[string]any, len(rows))
	copy(sorted, rows)

	sort.SliceStable(sorted, func(i, j int) bool {
		// Descending swaps the operands instead of negating: equal keys
		// must compare false either way to keep the sort stable.
		if h.Descending {
			i, j = j, i
		}

		a, aok := toFloat(sorted[i][h.Field])
		b, bok := toFloat(sorted[j][h.Field])

		if aok && bok {
			return a < b
		}

		return fmt.Sprintf("%v", sorted[i][h.Field]) < fmt.Sprintf("%v", sorted[j][h.Field])
	})

	return sorted
}

func (h *Handler) selectFields(rows []map[string]any) []map[string]any {
	selected := make([]map[string]any, 0, len(rows))

	for _, row := range rows {
		picked := make(map[string]any, len(h.Fields))

		for _, field := range h.Fields {
			if v, ok := row[field]; ok {
				picked[field] = v
			}
		}

		selected = append(selected, picked)
	}

	return selected
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}

	return total
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
