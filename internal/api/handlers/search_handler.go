package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/trendwatch/backend/internal/index/sqlite"
	"github.com/trendwatch/backend/pkg/logger"
)

type SearchHandler struct {
	index *sqlite.Client
}

func NewSearchHandler(index *sqlite.Client) *SearchHandler {
	return &SearchHandler{index: index}
}

// HandleSearch serves GET /api/v1/search?q=&source=&sentiment=&days=&top=.
func (h *SearchHandler) HandleSearch(c *fiber.Ctx) error {
	req := sqlite.SearchRequest{
		Query:     c.Query("q"),
		Source:    c.Query("source"),
		Sentiment: c.Query("sentiment"),
	}

	if topStr := c.Query("top"); topStr != "" {
		top, err := strconv.Atoi(topStr)
		if err != nil || top < 1 || top > 100 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "top must be an integer between 1 and 100",
			})
		}
		req.Top = top
	}

	if daysStr := c.Query("days"); daysStr != "" {
		days, err := strconv.Atoi(daysStr)
		if err != nil || days < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "days must be a positive integer",
			})
		}
		req.Since = time.Now().AddDate(0, 0, -days)
		req.OrderByRecency = true
	}

	docs, err := h.index.Search(c.Context(), req)
	if err != nil {
		logger.Error("Search failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Search failed",
		})
	}

	return c.JSON(fiber.Map{
		"count":   len(docs),
		"results": docs,
	})
}
