package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"worker-proxy-server/middleware"
	"worker-proxy-server/models"
	"worker-proxy-server/services"
)

type ExecutionHandler struct {
	service *services.ProxyService
}

func NewExecutionHandler(svc *services.ProxyService) *ExecutionHandler {
	return &ExecutionHandler{service: svc}
}

// Submit godoc
// @Summary Run the worker
// @Description Admit a payload through the concurrency gate and run one worker execution. Failed and timed out executions still return 200 with a diagnostic result.
// @Tags executions
// @Accept json
// @Produce json
// @Param request body models.SubmitRequest true "Execution request"
// @Param async query bool false "Queue the request and return a job handle"
// @Success 200 {object} models.SubmitResponse
// @Success 202 {object} models.AsyncJobResult
// @Failure 400 {object} map[string]string
// @Failure 429 {object} models.BusyResponse
// @Router /executions [post]
func (h *ExecutionHandler) Submit(c *fiber.Ctx) error {
	var req models.SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	// Validation
	if req.Payload == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "payload is required",
		})
	}
	if req.TimeoutMs < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "timeout_ms must not be negative",
		})
	}

	ctx := middleware.GetXRayContext(c)

	if c.QueryBool("async", false) {
		job, err := h.service.EnqueueAsync(ctx, req)
		if errors.Is(err, services.ErrAsyncDisabled) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusAccepted).JSON(job)
	}

	response, err := h.service.Submit(ctx, req)
	if err != nil {
		return busyOrError(c, err)
	}
	return c.JSON(response)
}

// GetJob godoc
// @Summary Get async job result
// @Description Poll for the result of a queued execution
// @Tags executions
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} models.AsyncJobResult
// @Failure 404 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /executions/jobs/{id} [get]
func (h *ExecutionHandler) GetJob(c *fiber.Ctx) error {
	result, err := h.service.JobResult(middleware.GetXRayContext(c), c.Params("id"))
	switch {
	case errors.Is(err, services.ErrJobNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrAsyncDisabled):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(result)
}

// QueueStatus godoc
// @Summary Concurrency gate occupancy
// @Tags system
// @Produce json
// @Success 200 {object} models.QueueStatus
// @Router /queue [get]
func (h *ExecutionHandler) QueueStatus(c *fiber.Ctx) error {
	return c.JSON(h.service.QueueStatus())
}

// Health godoc
// @Summary Worker health
// @Description Probe the worker binary. Independent of the concurrency gate.
// @Tags system
// @Produce json
// @Success 200 {object} models.WorkerHealth
// @Failure 503 {object} models.WorkerHealth
// @Router /health [get]
func (h *ExecutionHandler) Health(c *fiber.Ctx) error {
	health := h.service.Health(middleware.GetXRayContext(c))
	if !health.WorkerAvailable {
		return c.Status(fiber.StatusServiceUnavailable).JSON(health)
	}
	return c.JSON(health)
}

// TriggerWarm godoc
// @Summary Ping the worker
// @Description Ask the warm keeper for a ping. Debounced; skipped when no slot is free.
// @Tags system
// @Produce json
// @Success 202 {object} map[string]bool
// @Router /warm [post]
func (h *ExecutionHandler) TriggerWarm(c *fiber.Ctx) error {
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"triggered": h.service.TriggerWarm(),
	})
}

func busyOrError(c *fiber.Ctx, err error) error {
	var busy *services.BusyError
	if errors.As(err, &busy) {
		seconds := busy.RetryAfterSeconds()
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(seconds))
		return c.Status(fiber.StatusTooManyRequests).JSON(models.BusyResponse{
			Error:             busy.Error(),
			RetryAfterSeconds: seconds,
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": err.Error(),
	})
}
