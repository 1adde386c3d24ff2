package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/supportgenie/backend/internal/chat"
	"github.com/supportgenie/backend/internal/metrics"
	"github.com/supportgenie/backend/internal/storage/models"
	"github.com/supportgenie/backend/pkg/logger"
)

// ChatService is the orchestrator surface the HTTP layer needs.
type ChatService interface {
	Handle(ctx context.Context, req chat.Request) (*chat.Response, error)
	History(sessionID string) ([]models.ChatMessage, error)
}

type ChatHandler struct {
	chat ChatService
}

func NewChatHandler(chatService ChatService) *ChatHandler {
	return &ChatHandler{
		chat: chatService,
	}
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var req struct {
		Message   string `json:"message"`
		SessionID string `json:"session_id"`
		BrandTone string `json:"brand_tone"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		metrics.ChatRequests.WithLabelValues("bad_request").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.SessionID == "" {
		metrics.ChatRequests.WithLabelValues("bad_request").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}

	start := time.Now()
	response, err := h.chat.Handle(c.Context(), chat.Request{
		SessionID: req.SessionID,
		Message:   req.Message,
		BrandTone: req.BrandTone,
	})
	metrics.ChatDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) || errors.Is(err, chat.ErrMessageTooLong) {
			metrics.ChatRequests.WithLabelValues("bad_request").Inc()
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Message is required and must be within the allowed length",
			})
		}

		logger.Error("Failed to process chat turn", zap.Error(err))
		metrics.ChatRequests.WithLabelValues("error").Inc()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Chat service unavailable",
		})
	}

	metrics.ChatRequests.WithLabelValues("ok").Inc()
	return c.JSON(fiber.Map{
		"message":    response.Message,
		"escalated":  response.Escalated,
		"session_id": response.SessionID,
	})
}

func (h *ChatHandler) GetChatHistory(c *fiber.Ctx) error {
	sessionID := c.Params("session_id")

	messages, err := h.chat.History(sessionID)
	if err != nil {
		logger.Error("Failed to load chat history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load chat history",
		})
	}

	if messages == nil {
		messages = []models.ChatMessage{}
	}

	return c.JSON(messages)
}
