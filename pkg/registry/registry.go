// Package registry maps task types to their handler factories and validates
// task configurations before dispatch.
package registry

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/protocol"
)

// ConfigurationError reports a task configuration that does not satisfy the
// schema of its task type. It is recovered locally as a failed task run,
// never raised past the dispatcher.
type ConfigurationError struct {
	TaskType models.TaskType
	Detail   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration for task type %s: %s", e.TaskType, e.Detail)
}

type Registry struct {
	logger    *slog.Logger
	factories map[models.TaskType]protocol.HandlerFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		factories: make(map[models.TaskType]protocol.HandlerFactory),
	}
}

// Register adds a handler factory for its task type. Registering a type
// twice replaces the earlier factory.
func (r *Registry) Register(factory protocol.HandlerFactory) {
	r.factories[factory.Type()] = factory
}

// Types returns the registered task types.
func (r *Registry) Types() []models.TaskType {
	types := make([]models.TaskType, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}

	return types
}

// ValidateConfiguration checks a configuration payload against the schema of
// its task type.
func (r *Registry) ValidateConfiguration(taskType models.TaskType, config map[string]any) error {
	factory, ok := r.factories[taskType]
	if !ok {
		return &ConfigurationError{TaskType: taskType, Detail: "task type not registered"}
	}

	if config == nil {
		config = make(map[string]any)
	}

	schemaLoader := gojsonschema.NewGoLoader(factory.Schema())
	dataLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return &ConfigurationError{TaskType: taskType, Detail: err.Error()}
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			details = append(details, resultError.String())
		}

		return &ConfigurationError{TaskType: taskType, Detail: strings.Join(details, "; ")}
	}

	return nil
}

// CreateHandler validates the configuration and builds a handler for the
// task type.
func (r *Registry) CreateHandler(taskType models.TaskType, config map[string]any) (protocol.TaskHandler, error) {
	if err := r.ValidateConfiguration(taskType, config); err != nil {
		return nil, err
	}

	factory := r.factories[taskType]

	handler, err := factory.Create(config)
	if err != nil {
		return nil, &ConfigurationError{TaskType: taskType, Detail: err.Error()}
	}

	return handler, nil
}

// HealthCheck reports whether the registry has any handlers at all.
func (r *Registry) HealthCheck() (string, bool) {
	if len(r.factories) == 0 {
		return "No task handlers registered", false
	}

	return fmt.Sprintf("%d task handlers registered", len(r.factories)), true
}
