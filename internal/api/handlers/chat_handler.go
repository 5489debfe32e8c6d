package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/trendwatch/backend/internal/metrics"
	"github.com/trendwatch/backend/internal/query"
	"github.com/trendwatch/backend/pkg/logger"
	"github.com/trendwatch/backend/pkg/utils"
)

// AnswerCache stores single-turn answers keyed by a hash of the query. A nil
// cache disables caching.
type AnswerCache interface {
	GetAnswer(ctx context.Context, queryHash string, out interface{}) (bool, error)
	SetAnswer(ctx context.Context, queryHash string, answer interface{}) error
}

type ChatHandler struct {
	engine *query.Engine
	cache  AnswerCache

	mu       sync.Mutex
	sessions map[string]*query.Session
	maxTurns int
}

func NewChatHandler(engine *query.Engine, cache AnswerCache, maxTurns int) *ChatHandler {
	return &ChatHandler{
		engine:   engine,
		cache:    cache,
		sessions: make(map[string]*query.Session),
		maxTurns: maxTurns,
	}
}

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type ChatResponse struct {
	SessionID     string         `json:"session_id"`
	Answer        string         `json:"answer"`
	Sources       []query.Source `json:"sources"`
	Temporal      bool           `json:"temporal"`
	ContextTokens int            `json:"context_tokens"`
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message is required",
		})
	}

	session, fresh := h.session(req.SessionID)

	// A fresh session with no prior turns is a single-turn query; those are
	// safe to answer from the cache.
	cacheable := h.cache != nil && fresh
	queryHash := utils.HashString(req.Message)
	if cacheable {
		var cached ChatResponse
		hit, err := h.cache.GetAnswer(c.Context(), queryHash, &cached)
		if err != nil {
			logger.Warn("Answer cache read failed", zap.Error(err))
		}
		if hit {
			metrics.CacheHits.Inc()
			cached.SessionID = session.ID
			// The exchange still counts as a turn: a follow-up in this
			// session needs it as history.
			session.Append(req.Message, cached.Answer)
			return c.JSON(cached)
		}
		metrics.CacheMisses.Inc()
	}

	start := time.Now()
	resp, err := h.engine.Chat(c.Context(), session, req.Message)
	if err != nil {
		metrics.QueryDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return h.chatError(c, err)
	}
	metrics.QueryDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())

	out := ChatResponse{
		SessionID:     session.ID,
		Answer:        resp.Answer,
		Sources:       resp.Sources,
		Temporal:      resp.Temporal,
		ContextTokens: resp.ContextTokens,
	}

	if cacheable {
		if err := h.cache.SetAnswer(c.Context(), queryHash, out); err != nil {
			logger.Warn("Answer cache write failed", zap.Error(err))
		}
	}

	return c.JSON(out)
}

func (h *ChatHandler) chatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, query.ErrRetrieval):
		metrics.RetrievalFailures.Inc()
		logger.Error("Article retrieval failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Article retrieval failed. Please try again later.",
		})
	case errors.Is(err, query.ErrGeneration):
		metrics.GenerationFailures.Inc()
		logger.Error("Answer generation failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Answer generation failed. Please try again later.",
		})
	default:
		logger.Error("Chat request failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
}

// session returns the session for the given ID, creating a new one when the
// ID is empty or unknown. fresh reports whether the session has no history.
func (h *ChatHandler) session(id string) (*query.Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if id != "" {
		if s, ok := h.sessions[id]; ok {
			return s, len(s.Turns) == 0
		}
	}

	s := query.NewSession(h.maxTurns)
	h.sessions[s.ID] = s
	return s, true
}
