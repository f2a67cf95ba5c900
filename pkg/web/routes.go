package web

import "github.com/gofiber/fiber/v3"

// RegisterRoutes mounts every API endpoint on the app. Middleware is left to
// the caller so daemons and tests can differ.
func RegisterRoutes(app *fiber.App, handlers *APIHandlers) {
	app.Get("/health", handlers.HealthCheck)

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Post("/compile", handlers.CompileWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Put("/:id", handlers.UpdateWorkflow)
	w.Post("/:id/run", handlers.RunWorkflow)
	w.Post("/:id/run-background", handlers.RunWorkflowBackground)
	w.Post("/:id/steps/:stepId/run", handlers.RunWorkflowStep)
	w.Post("/:id/pause", handlers.PauseWorkflow)
	w.Post("/:id/resume", handlers.ResumeWorkflow)
	w.Post("/:id/cancel", handlers.CancelWorkflow)
	w.Post("/:id/archive", handlers.ArchiveWorkflow)
	w.Get("/:id/history", handlers.GetWorkflowHistory)
	w.Get("/:id/history/diff", handlers.DiffWorkflowHistory)

	e := app.Group("/executions")
	e.Get("/", handlers.GetExecutions)
	e.Get("/:id", handlers.GetExecution)

	cp := app.Group("/checkpoints")
	cp.Get("/", handlers.GetCheckpoints)
	cp.Post("/:id/resolve", handlers.ResolveCheckpoint)

	app.Get("/approvals", handlers.GetApprovals)
	app.Get("/artifacts", handlers.GetArtifacts)

	n := app.Group("/notifications")
	n.Get("/", handlers.GetNotifications)
	n.Post("/:id/read", handlers.MarkNotificationRead)

	d := app.Group("/dead-letters")
	d.Get("/", handlers.GetDeadLetters)
	d.Post("/:id/resolve", handlers.ResolveDeadLetter)
}
