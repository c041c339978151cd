package apicall

import (
	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Type() models.TaskType {
	return models.TaskTypeAPICall
}

func (f *Factory) Create(config map[string]any) (protocol.TaskHandler, error) {
	return NewHandler(config)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"pattern":     "^https?://",
				"description": "Request URL, must be http or https.",
			},
			"method": map[string]any{
				"type": "string",
				"enum": []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			},
			"headers": map[string]any{
				"type": "object",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Request body. Supports templating over the run context.",
			},
			"timeout_seconds": map[string]any{
				"type":    "number",
				"minimum": 1,
			},
		},
		"required": []string{"url", "method"},
	}
}
