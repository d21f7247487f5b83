// Package web provides the HTTP API for asking questions and following their executions.
package web

import (
	"net/http"
	"time"

	"github.com/dukex/insight/pkg/broadcast"
	"github.com/dukex/insight/pkg/services"
	"github.com/dukex/insight/pkg/tracker"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	queryService *services.Query
	executions   *tracker.Registry
	broadcaster  *broadcast.Broadcaster
	validator    *validator.Validate
	streamLimit  time.Duration
}

func NewAPIHandlers(
	queryService *services.Query,
	executions *tracker.Registry,
	broadcaster *broadcast.Broadcaster,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		queryService: queryService,
		executions:   executions,
		broadcaster:  broadcaster,
		validator:    validator,
		streamLimit:  defaultStreamLimit,
	}
}

// SetStreamLimit bounds how long one progress stream stays open.
func (h *APIHandlers) SetStreamLimit(limit time.Duration) {
	if limit > 0 {
		h.streamLimit = limit
	}
}

// Register mounts the API routes on router.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/health", h.HealthCheck)

	q := router.Group("/queries")
	q.Post("/", h.SubmitQuery)
	q.Get("/:id", h.GetQueryResult)

	e := router.Group("/executions")
	e.Get("/", h.ListExecutions)
	e.Get("/:id", h.GetExecution)
	e.Get("/:id/events", h.StreamExecution)
}

// SubmitQuery answers synchronously, or returns 202 with the execution id when async is set.
func (h *APIHandlers) SubmitQuery(c fiber.Ctx) error {
	var req SubmitQueryRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if req.Async {
		executionID, err := h.queryService.Submit(c.Context(), req.QueryRequest)
		if err != nil {
			return handleServiceError(c, err)
		}

		return c.Status(fiber.StatusAccepted).JSON(SubmitQueryResponse{
			ExecutionID: executionID,
			EventsURL:   "/executions/" + executionID + "/events",
			ResultURL:   "/queries/" + executionID,
		})
	}

	resp, err := h.queryService.Ask(c.Context(), req.QueryRequest)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(resp)
}

func (h *APIHandlers) GetQueryResult(c fiber.Ctx) error {
	resp, err := h.queryService.Result(c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(resp)
}

func (h *APIHandlers) ListExecutions(c fiber.Ctx) error {
	return c.JSON(h.executions.List())
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	record, err := h.executions.Get(c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(record)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":     "healthy",
		"message":    "Insight API is healthy",
		"executions": h.executions.Len(),
		"timestamp":  time.Now().UTC(),
	})
}
