package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const streamPingInterval = 30 * time.Second

func (h *ActivityHandler) registerStream(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.stream))
}

// stream pushes enrollment events to the client until either side hangs up.
// An optional ?activity= query narrows the feed to one activity.
func (h *ActivityHandler) stream(conn *websocket.Conn) {
	filter := conn.Query("activity")
	correlation, _ := conn.Locals("correlation_id").(string)
	logger := h.logger.With().Str("correlation_id", correlation).Str("activity_filter", filter).Logger()

	events, cleanup := h.service.Subscribe()
	defer cleanup()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logger.Info().Msg("activity stream connected")
	defer func() { logger.Info().Msg("activity stream disconnected") }()

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if filter != "" && event.Activity != filter {
				continue
			}
			if err := conn.WriteJSON(event); err != nil {
				logger.Debug().Err(err).Msg("activity stream write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				logger.Debug().Err(err).Msg("activity stream ping failed")
				return
			}
		case <-closed:
			return
		}
	}
}
