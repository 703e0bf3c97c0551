package handlers

import (
	"github.com/gofiber/fiber/v2"

	"worker-proxy-server/services"
)

// RegisterRoutes mounts the proxy API on api
func RegisterRoutes(api fiber.Router, svc *services.ProxyService) {
	executionHandler := NewExecutionHandler(svc)
	sessionHandler := NewSessionHandler(svc)

	api.Post("/executions", executionHandler.Submit)
	api.Get("/executions/jobs/:id", executionHandler.GetJob)
	api.Get("/queue", executionHandler.QueueStatus)
	api.Get("/health", executionHandler.Health)
	api.Post("/warm", executionHandler.TriggerWarm)

	api.Get("/sessions", sessionHandler.ListSessions)
	api.Get("/sessions/:id", sessionHandler.GetSession)
	api.Get("/sessions/:id/transcript", sessionHandler.GetTranscript)
	api.Get("/archive/sessions", sessionHandler.ListArchivedSessions)
}
