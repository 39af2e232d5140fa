package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/essaylab/essay-eval-api/internal/dto"
	"github.com/essaylab/essay-eval-api/internal/service"
	"github.com/essaylab/essay-eval-api/internal/utils"
)

// RevisionHandler manages re-evaluation endpoints.
type RevisionHandler struct {
	service   service.RevisionService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewRevisionHandler builds a revision handler instance.
func NewRevisionHandler(service service.RevisionService, validator *validator.Validate, logger zerolog.Logger) *RevisionHandler {
	return &RevisionHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "revision_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *RevisionHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
}

func (h *RevisionHandler) create(c *fiber.Ctx) error {
	var payload dto.RevisionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	revision, err := h.service.Create(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "revision scheduled", revision)
}

func (h *RevisionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	revision, err := h.service.Get(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "revision retrieved", revision)
}

func (h *RevisionHandler) list(c *fiber.Ctx) error {
	query := dto.RevisionListQuery{
		SortField: c.Query("sort"),
		Direction: c.Query("direction"),
	}

	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}
	query.Page = page
	query.PageSize = pageSize

	revisions, err := h.service.List(c.Context(), query)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "revisions retrieved", revisions)
}

func (h *RevisionHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrRevisionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "revision not found")
	case errors.Is(err, service.ErrRevisionInProgress):
		return utils.SendError(c, fiber.StatusConflict, "revision already in progress")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
