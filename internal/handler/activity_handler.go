package handler

import (
	"errors"
	"net/url"

	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-activities-api/internal/dto"
	"github.com/noah-isme/gema-activities-api/internal/middleware"
	"github.com/noah-isme/gema-activities-api/internal/registry"
	"github.com/noah-isme/gema-activities-api/internal/service"
	"github.com/noah-isme/gema-activities-api/internal/utils"
)

// ActivityHandler serves the activity catalog and enrollment endpoints.
type ActivityHandler struct {
	service service.EnrollmentService
	logger  zerolog.Logger
}

// NewActivityHandler constructs the handler instance.
func NewActivityHandler(service service.EnrollmentService, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "activity_handler").Logger(),
	}
}

// Register wires the activity routes. The websocket feed is registered first so
// "/ws" is not captured by the activity name parameter.
func (h *ActivityHandler) Register(router fiber.Router) {
	h.registerStream(router)

	router.Get("", h.list)
	router.Get("/:name", h.get)
	router.Post("/:name/signup", h.signup)
	router.Post("/:name/unregister", h.unregister)
}

// list returns the bare name-to-activity map the web frontend iterates over,
// keyed in catalog order.
func (h *ActivityHandler) list(c *fiber.Ctx) error {
	return c.JSON(h.service.Catalog(c.UserContext()))
}

func (h *ActivityHandler) get(c *fiber.Ctx) error {
	name, err := activityNameParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity name")
	}

	view, err := h.service.GetActivity(c.UserContext(), name)
	if err != nil {
		return h.sendEnrollmentError(c, err, "failed to fetch activity")
	}

	return utils.SendSuccess(c, "activity retrieved", view)
}

func (h *ActivityHandler) signup(c *fiber.Ctx) error {
	req, err := enrollmentRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity name")
	}

	response, err := h.service.Enroll(c.UserContext(), req)
	if err != nil {
		return h.sendEnrollmentError(c, err, "failed to sign up")
	}

	return utils.SendSuccess(c, response.Message, response)
}

func (h *ActivityHandler) unregister(c *fiber.Ctx) error {
	req, err := enrollmentRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity name")
	}

	response, err := h.service.Withdraw(c.UserContext(), req)
	if err != nil {
		return h.sendEnrollmentError(c, err, "failed to unregister")
	}

	return utils.SendSuccess(c, response.Message, response)
}

func (h *ActivityHandler) sendEnrollmentError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, registry.ErrActivityNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, registry.ErrAlreadyEnrolled),
		errors.Is(err, registry.ErrNotEnrolled),
		errors.Is(err, registry.ErrActivityFull),
		errors.Is(err, registry.ErrEmptyEmail),
		errors.Is(err, service.ErrInvalidEmail):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}

func enrollmentRequest(c *fiber.Ctx) (dto.EnrollmentRequest, error) {
	name, err := activityNameParam(c)
	if err != nil {
		return dto.EnrollmentRequest{}, err
	}

	return dto.EnrollmentRequest{
		Activity:      name,
		Email:         fiberutils.CopyString(c.Query("email")),
		CorrelationID: middleware.GetCorrelationID(c),
		Source:        "http",
	}, nil
}

// activityNameParam decodes the name parameter without further normalisation;
// it must match a catalog key exactly. The result never aliases fiber's
// request buffer.
func activityNameParam(c *fiber.Ctx) (string, error) {
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil {
		return "", err
	}
	return fiberutils.CopyString(name), nil
}
