package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/trendwatch/backend/internal/query"
	"github.com/trendwatch/backend/pkg/logger"
)

// WebSocketHandler streams chat answers over a socket. Each connection owns
// one conversation session.
type WebSocketHandler struct {
	engine   *query.Engine
	maxTurns int
}

func NewWebSocketHandler(engine *query.Engine, maxTurns int) *WebSocketHandler {
	return &WebSocketHandler{
		engine:   engine,
		maxTurns: maxTurns,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	session := query.NewSession(h.maxTurns)

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed", zap.String("session", session.ID))
	}()

	for {
		var msg struct {
			Type    string `json:"type"`
			Content string `json:"content"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "chat" || msg.Content == "" {
			continue
		}

		if err := h.streamAnswer(c, session, msg.Content); err != nil {
			logger.Error("Failed to stream answer", zap.Error(err))
			h.sendError(c, "Failed to process message")
		}
	}
}

func (h *WebSocketHandler) streamAnswer(c *websocket.Conn, session *query.Session, message string) error {
	h.sendChunk(c, "status", "Searching articles...")

	resp, err := h.engine.Chat(context.Background(), session, message)
	if err != nil {
		return err
	}

	// The completion comes back whole; chunk it word-wise so clients can
	// render progressively.
	words := strings.Fields(resp.Answer)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}
		if err := h.sendChunk(c, "chunk", chunk); err != nil {
			return err
		}
	}

	return c.WriteJSON(map[string]interface{}{
		"type":       "complete",
		"session_id": session.ID,
		"sources":    resp.Sources,
		"temporal":   resp.Temporal,
	})
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
