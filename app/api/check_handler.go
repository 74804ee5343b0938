package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type CheckHandler struct {
	db Pinger
}

func NewCheckHandler(db Pinger) *CheckHandler {
	return &CheckHandler{db: db}
}

// HandleRoot answers GET / and GET /health.
func (h *CheckHandler) HandleRoot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"message": "QnA Bot API is running",
	})
}

// HandleHealthy also checks the database.
func (h *CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"result": "unavailable", "error": err.Error()})
		}
	}
	return c.JSON(fiber.Map{"result": "ok"})
}
