package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"worker-proxy-server/middleware"
	"worker-proxy-server/models"
	"worker-proxy-server/services"
)

type SessionHandler struct {
	service *services.ProxyService
}

func NewSessionHandler(service *services.ProxyService) *SessionHandler {
	return &SessionHandler{service: service}
}

// ListSessions godoc
// @Summary List recent sessions
// @Description Newest first, from the in-memory ledger
// @Tags sessions
// @Produce json
// @Param status query string false "Exact status match"
// @Param since query string false "RFC3339 lower bound on start time"
// @Param limit query int false "Number of results to return" default(50)
// @Success 200 {array} models.SessionSummary
// @Failure 400 {object} map[string]string
// @Router /sessions [get]
func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	filter, err := parseFilter(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(h.service.ListSessions(filter, c.QueryInt("limit", 50)))
}

// GetSession godoc
// @Summary Get session details
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.Session
// @Failure 404 {object} map[string]string
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	session, err := h.service.GetSession(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(session)
}

// GetTranscript godoc
// @Summary Get raw worker output
// @Description Newline-delimited JSON exactly as the worker wrote it
// @Tags sessions
// @Produce plain
// @Param id path string true "Session ID"
// @Success 200 {string} string
// @Failure 404 {object} map[string]string
// @Router /sessions/{id}/transcript [get]
func (h *SessionHandler) GetTranscript(c *fiber.Ctx) error {
	data, err := h.service.Transcript(middleware.GetXRayContext(c), c.Params("id"))
	if errors.Is(err, services.ErrTranscriptNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	c.Set(fiber.HeaderContentType, "application/x-ndjson")
	return c.Send(data)
}

// ListArchivedSessions godoc
// @Summary List archived sessions
// @Description Newest first, from the Postgres archive
// @Tags sessions
// @Produce json
// @Param status query string false "Exact status match"
// @Param since query string false "RFC3339 lower bound on start time"
// @Param limit query int false "Number of results to return" default(20)
// @Success 200 {array} models.SessionSummary
// @Failure 503 {object} map[string]string
// @Router /archive/sessions [get]
func (h *SessionHandler) ListArchivedSessions(c *fiber.Ctx) error {
	filter, err := parseFilter(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	sessions, err := h.service.ArchivedSessions(middleware.GetXRayContext(c), filter, c.QueryInt("limit", 20))
	if errors.Is(err, services.ErrArchiveDisabled) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(sessions)
}

func parseFilter(c *fiber.Ctx) (models.SessionFilter, error) {
	filter := models.SessionFilter{Status: c.Query("status")}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return filter, errors.New("since must be an RFC3339 timestamp")
		}
		filter.Since = t
	}
	return filter, nil
}
