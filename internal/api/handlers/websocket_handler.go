package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/supportgenie/backend/internal/chat"
	"github.com/supportgenie/backend/internal/metrics"
	"github.com/supportgenie/backend/pkg/logger"
)

// WebSocketHandler serves live chat over a websocket. Frames carry the
// same fields as POST /api/chat; each "chat" frame runs one orchestrator
// turn and answers with a "reply" frame.
type WebSocketHandler struct {
	chat ChatService
}

func NewWebSocketHandler(chatService ChatService) *WebSocketHandler {
	return &WebSocketHandler{
		chat: chatService,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")
	metrics.ActiveWebsockets.Inc()

	defer func() {
		metrics.ActiveWebsockets.Dec()
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type      string `json:"type"`
			Message   string `json:"message"`
			SessionID string `json:"session_id"`
			BrandTone string `json:"brand_tone"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Failed to read WebSocket message", zap.Error(err))
			}
			break
		}

		if msg.Type != "chat" {
			continue
		}

		if msg.SessionID == "" {
			h.sendError(c, "session_id is required")
			continue
		}

		h.send(c, map[string]interface{}{
			"type":    "status",
			"content": "Thinking...",
		})

		response, err := h.chat.Handle(context.Background(), chat.Request{
			SessionID: msg.SessionID,
			Message:   msg.Message,
			BrandTone: msg.BrandTone,
		})

		if err != nil {
			if errors.Is(err, chat.ErrEmptyMessage) || errors.Is(err, chat.ErrMessageTooLong) {
				h.sendError(c, "Message is required and must be within the allowed length")
				continue
			}

			logger.Error("Failed to process WebSocket chat turn", zap.Error(err))
			h.sendError(c, "Chat service unavailable")
			continue
		}

		h.send(c, map[string]interface{}{
			"type":       "reply",
			"message":    response.Message,
			"escalated":  response.Escalated,
			"session_id": response.SessionID,
		})
	}
}

func (h *WebSocketHandler) send(c *websocket.Conn, msg map[string]interface{}) {
	if err := c.WriteJSON(msg); err != nil {
		logger.Warn("Failed to write WebSocket message", zap.Error(err))
	}
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	h.send(c, map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
