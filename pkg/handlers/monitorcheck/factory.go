package monitorcheck

import (
	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/protocol"
)

type Factory struct {
	client Client
}

func NewFactory(client Client) *Factory {
	return &Factory{client: client}
}

func (f *Factory) Type() models.TaskType {
	return models.TaskTypeMonitorCheck
}

func (f *Factory) Create(config map[string]any) (protocol.TaskHandler, error) {
	return NewHandler(config, f.client)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"monitor_id": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Identifier of the monitor to evaluate.",
			},
		},
		"required": []string{"monitor_id"},
	}
}
