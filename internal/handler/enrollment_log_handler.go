package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-activities-api/internal/dto"
	"github.com/noah-isme/gema-activities-api/internal/service"
	"github.com/noah-isme/gema-activities-api/internal/utils"
)

// EnrollmentLogHandler serves the enrollment audit trail.
type EnrollmentLogHandler struct {
	service service.EnrollmentService
	logger  zerolog.Logger
}

// NewEnrollmentLogHandler constructs the handler instance.
func NewEnrollmentLogHandler(service service.EnrollmentService, logger zerolog.Logger) *EnrollmentLogHandler {
	return &EnrollmentLogHandler{
		service: service,
		logger:  logger.With().Str("component", "enrollment_log_handler").Logger(),
	}
}

// Register wires the audit trail routes.
func (h *EnrollmentLogHandler) Register(router fiber.Router) {
	router.Get("/logs", h.list)
}

func (h *EnrollmentLogHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "pageSize")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}

	req := dto.EnrollmentLogListRequest{
		Page:     page,
		PageSize: pageSize,
		Activity: c.Query("activity"),
		Email:    c.Query("email"),
		Action:   c.Query("action"),
	}

	result, err := h.service.History(c.UserContext(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrHistoryUnavailable):
			return utils.SendError(c, fiber.StatusNotImplemented, err.Error())
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, "invalid filter")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to list enrollment logs")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch enrollment logs")
		}
	}

	return utils.SendSuccess(c, "enrollment logs retrieved", result)
}
