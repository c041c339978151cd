package notification

import (
	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/protocol"
)

type Factory struct {
	notifier Notifier
}

func NewFactory(notifier Notifier) *Factory {
	return &Factory{notifier: notifier}
}

func (f *Factory) Type() models.TaskType {
	return models.TaskTypeNotification
}

func (f *Factory) Create(config map[string]any) (protocol.TaskHandler, error) {
	return NewHandler(config, f.notifier)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Message template rendered against the run context.",
				"examples":    []string{"Detected {{.outputs.detect.count}} changes"},
			},
			"recipients": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 1,
			},
		},
		"required": []string{"message", "recipients"},
	}
}
