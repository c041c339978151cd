package script

import (
	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Type() models.TaskType {
	return models.TaskTypeScript
}

func (f *Factory) Create(config map[string]any) (protocol.TaskHandler, error) {
	return NewHandler(config)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"script": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Expression over the run context. Evaluated in a sandboxed template, not as code.",
				"examples": []string{
					"{{.outputs.fetch.response}}",
					"{\"area\": {{.outputs.detect.area_km2}}, \"at\": \"{{now}}\"}",
				},
			},
		},
		"required": []string{"script"},
	}
}
