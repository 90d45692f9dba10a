package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-activities-api/internal/config"
	"github.com/noah-isme/gema-activities-api/internal/service"
	"github.com/noah-isme/gema-activities-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	Service       string    `json:"service"`
	Environment   string    `json:"environment"`
	Activities    int       `json:"activities"`
	EventsChannel string    `json:"events_channel,omitempty"`
	StrictEmail   bool      `json:"strict_email"`
}

// HealthCheck reports liveness plus the size of the loaded activity catalog.
// enrollments may be nil before the catalog is wired.
func HealthCheck(cfg config.Config, enrollments service.EnrollmentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		activities := 0
		if enrollments != nil {
			activities = len(enrollments.ListActivities(c.UserContext()))
		}

		return utils.SendSuccess(c, "service healthy", HealthResponse{
			Status:        "ok",
			Timestamp:     time.Now().UTC(),
			Service:       cfg.AppName,
			Environment:   cfg.AppEnv,
			Activities:    activities,
			EventsChannel: cfg.EventsChannel,
			StrictEmail:   cfg.StrictEmail,
		})
	}
}
