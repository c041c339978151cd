package web

import "github.com/gofiber/fiber/v3"

// Register mounts every API route on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	workflows := app.Group("/workflows")
	workflows.Get("/", h.GetWorkflows)
	workflows.Post("/", h.CreateWorkflow)
	workflows.Get("/:id", h.GetWorkflow)
	workflows.Put("/:id", h.UpdateWorkflow)
	workflows.Delete("/:id", h.DeleteWorkflow)
	workflows.Post("/:id/activate", h.ActivateWorkflow)
	workflows.Post("/:id/pause", h.PauseWorkflow)
	workflows.Post("/:id/runs", h.TriggerRun)

	runs := app.Group("/runs")
	runs.Get("/", h.GetRuns)
	runs.Get("/:id", h.GetRun)
	runs.Get("/:id/tasks", h.GetRunTasks)
	runs.Post("/:id/cancel", h.CancelRun)
	runs.Post("/:id/retry", h.RetryRun)

	schedules := app.Group("/schedules")
	schedules.Get("/", h.GetSchedules)
	schedules.Post("/", h.CreateSchedule)
	schedules.Get("/:id", h.GetSchedule)
	schedules.Delete("/:id", h.DeleteSchedule)
	schedules.Post("/:id/enable", h.EnableSchedule)
	schedules.Post("/:id/disable", h.DisableSchedule)
	schedules.Post("/:id/run", h.RunScheduleNow)

	rules := app.Group("/rules")
	rules.Get("/", h.GetRules)
	rules.Post("/", h.CreateRule)
	rules.Get("/:id", h.GetRule)
	rules.Delete("/:id", h.DeleteRule)
	rules.Post("/:id/enable", h.EnableRule)
	rules.Post("/:id/disable", h.DisableRule)
}
