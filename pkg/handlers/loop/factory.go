package loop

import (
	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Type() models.TaskType {
	return models.TaskTypeLoop
}

func (f *Factory) Create(config map[string]any) (protocol.TaskHandler, error) {
	return NewHandler(config)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"items": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Expression producing the list to iterate.",
				"examples":    []string{"{{.outputs.list_monitors.rows}}"},
			},
			"each": map[string]any{
				"type":        "string",
				"description": "Expression rendered per element with {{.item}} and {{.index}} bound.",
				"examples":    []string{"{{.item.name}}"},
			},
		},
		"required": []string{"items"},
	}
}
