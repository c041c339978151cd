package conditional

import (
	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Type() models.TaskType {
	return models.TaskTypeConditional
}

func (f *Factory) Create(config map[string]any) (protocol.TaskHandler, error) {
	return NewHandler(config)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"condition": map[string]any{
				"type":        "string",
				"description": "Boolean expression over the run context. Empty evaluates to true.",
				"examples": []string{
					"{{.outputs.check_monitor.alert_raised}}",
					"{{.input.force_report}}",
				},
			},
		},
	}
}
