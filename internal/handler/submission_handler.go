package handler

import (
	"errors"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/essaylab/essay-eval-api/internal/dto"
	"github.com/essaylab/essay-eval-api/internal/service"
	"github.com/essaylab/essay-eval-api/internal/utils"
)

// maxVideoBytes caps the optional video attachment at 100 MiB.
const maxVideoBytes = 100 << 20

// SubmissionHandler manages essay submission endpoints.
type SubmissionHandler struct {
	service   service.SubmissionService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(service service.SubmissionService, validator *validator.Validate, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Delete("/:id", h.remove)
}

func (h *SubmissionHandler) create(c *fiber.Ctx) error {
	studentID := studentIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "missing student identity")
	}

	payload := dto.SubmissionCreateRequest{
		Title:    strings.TrimSpace(c.FormValue("title")),
		Text:     c.FormValue("text"),
		Category: strings.ToUpper(strings.TrimSpace(c.FormValue("category"))),
	}

	video, err := h.readVideo(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.Submit(c.Context(), studentID, payload, video)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission evaluated", submission)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	studentID := studentIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "missing student identity")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.Get(c.Context(), id, studentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	studentID := studentIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "missing student identity")
	}

	submissions, err := h.service.ListByStudent(c.Context(), studentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) remove(c *fiber.Ctx) error {
	studentID := studentIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "missing student identity")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	// Ownership check happens through the read path before deletion.
	if _, err := h.service.Get(c.Context(), id, studentID); err != nil {
		return h.handleError(c, err)
	}
	if err := h.service.Delete(c.Context(), id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission deleted", nil)
}

// readVideo extracts the optional multipart video attachment. A missing file
// part is not an error because text-only submissions are valid.
func (h *SubmissionHandler) readVideo(c *fiber.Ctx) ([]byte, error) {
	fileHeader, err := c.FormFile("video")
	if err != nil {
		return nil, nil
	}
	if fileHeader.Size > maxVideoBytes {
		return nil, errors.New("video exceeds the maximum allowed size")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, errors.New("unable to read video attachment")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxVideoBytes+1))
	if err != nil {
		return nil, errors.New("unable to read video attachment")
	}
	if len(data) > maxVideoBytes {
		return nil, errors.New("video exceeds the maximum allowed size")
	}
	return data, nil
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrDuplicateSubmission):
		return utils.SendError(c, fiber.StatusConflict, "submission already exists for this category")
	case errors.Is(err, service.ErrSubmissionInFlight):
		return utils.SendError(c, fiber.StatusConflict, "submission already in progress for this category")
	case errors.Is(err, service.ErrEmptySubmission):
		return utils.SendError(c, fiber.StatusBadRequest, "submission text is empty")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
