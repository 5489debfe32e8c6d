package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/trendwatch/backend/pkg/logger"
)

// IndexStats is the read-only index surface health reporting needs.
type IndexStats interface {
	Count() (int, error)
}

type HealthHandler struct {
	index IndexStats
}

func NewHealthHandler(index IndexStats) *HealthHandler {
	return &HealthHandler{index: index}
}

func (h *HealthHandler) HandleHealth(c *fiber.Ctx) error {
	indexed, err := h.index.Count()
	if err != nil {
		logger.Error("Health check failed to reach the search index", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded",
			"error":  "search index unavailable",
		})
	}

	return c.JSON(fiber.Map{
		"status":           "healthy",
		"indexed_articles": indexed,
		"time":             time.Now().Unix(),
	})
}
