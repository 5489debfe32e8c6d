package handlers

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/trendwatch/backend/internal/storage/models"
	"github.com/trendwatch/backend/pkg/logger"
)

// PipelineRunner is the slice of the ingestion pipeline the admin API needs.
type PipelineRunner interface {
	Run(ctx context.Context) (*models.RunReport, error)
}

// CacheFlusher drops cached answers; a nil flusher means no cache is
// configured.
type CacheFlusher interface {
	Flush(ctx context.Context) error
}

// AdminHandler triggers ingestion runs over HTTP. Runs are serialized: a
// second trigger while one is in flight is rejected.
type AdminHandler struct {
	pipe    PipelineRunner
	cache   CacheFlusher
	running atomic.Bool
	timeout time.Duration
}

func NewAdminHandler(pipe PipelineRunner, cache CacheFlusher, timeout time.Duration) *AdminHandler {
	if timeout == 0 {
		timeout = 30 * time.Minute
	}
	return &AdminHandler{pipe: pipe, cache: cache, timeout: timeout}
}

func (h *AdminHandler) HandlePipelineRun(c *fiber.Ctx) error {
	if !h.running.CompareAndSwap(false, true) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "A pipeline run is already in progress",
		})
	}

	go func() {
		defer h.running.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()

		report, err := h.pipe.Run(ctx)
		if err != nil {
			logger.Error("Triggered pipeline run failed", zap.Error(err))
			return
		}
		logger.Info("Triggered pipeline run finished",
			zap.Int("fetched", report.Fetched),
			zap.Int("indexed", report.Indexed),
		)

		// The index just moved; cached answers may now cite stale results.
		if h.cache != nil {
			if err := h.cache.Flush(ctx); err != nil {
				logger.Warn("Failed to flush answer cache after run", zap.Error(err))
			}
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "pipeline run started",
	})
}
