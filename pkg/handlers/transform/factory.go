package transform

import (
	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Type() models.TaskType {
	return models.TaskTypeDataTransform
}

func (f *Factory) Create(config map[string]any) (protocol.TaskHandler, error) {
	return NewHandler(config)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"transform_type": map[string]any{
				"type": "string",
				"enum": []string{"filter", "aggregate", "sort", "select"},
			},
			"input": map[string]any{
				"type":        "string",
				"description": "Expression producing the list of rows to transform.",
				"examples":    []string{"{{.outputs.fetch_detections.rows}}"},
			},
			"field": map[string]any{
				"type":        "string",
				"description": "Row field used by filter, aggregate and sort.",
			},
			"operator": map[string]any{
				"type": "string",
				"enum": []string{"eq", "ne", "gt", "lt", "contains"},
			},
			"value": map[string]any{
				"description": "Comparison value for filter.",
			},
			"operation": map[string]any{
				"type": "string",
				"enum": []string{"sum", "avg", "min", "max", "count"},
			},
			"descending": map[string]any{
				"type": "boolean",
			},
			"fields": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []string{"transform_type"},
	}
}
