package cmd

import (
	"log/slog"

	"github.com/terrawatch/terrawatch/pkg/handlers/agent"
	"github.com/terrawatch/terrawatch/pkg/handlers/apicall"
	"github.com/terrawatch/terrawatch/pkg/handlers/conditional"
	"github.com/terrawatch/terrawatch/pkg/handlers/datasync"
	"github.com/terrawatch/terrawatch/pkg/handlers/loop"
	"github.com/terrawatch/terrawatch/pkg/handlers/monitorcheck"
	"github.com/terrawatch/terrawatch/pkg/handlers/notification"
	"github.com/terrawatch/terrawatch/pkg/handlers/script"
	"github.com/terrawatch/terrawatch/pkg/handlers/transform"
	"github.com/terrawatch/terrawatch/pkg/registry"
)

// Collaborators holds the base URLs of the surrounding platform services the
// collaborator-backed task types call into.
type Collaborators struct {
	// PlatformURL serves agents, data sources and monitors.
	PlatformURL string
	// NotifierURL serves notification delivery.
	NotifierURL string
}

// NewRegistry builds a registry with every native task type registered.
func NewRegistry(logger *slog.Logger, collaborators Collaborators) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.Register(agent.NewFactory(agent.NewHTTPClient(collaborators.PlatformURL)))
	reg.Register(datasync.NewFactory(datasync.NewHTTPClient(collaborators.PlatformURL)))
	reg.Register(monitorcheck.NewFactory(monitorcheck.NewHTTPClient(collaborators.PlatformURL)))
	reg.Register(notification.NewFactory(notification.NewHTTPNotifier(collaborators.NotifierURL)))

	reg.Register(transform.NewFactory())
	reg.Register(conditional.NewFactory())
	reg.Register(loop.NewFactory())
	reg.Register(apicall.NewFactory())
	reg.Register(script.NewFactory())

	return reg
}
