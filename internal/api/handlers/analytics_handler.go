package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/supportgenie/backend/internal/storage/models"
	"github.com/supportgenie/backend/pkg/logger"
)

type AnalyticsProvider interface {
	Snapshot(ctx context.Context) (*models.AnalyticsSnapshot, error)
}

type AnalyticsHandler struct {
	analytics AnalyticsProvider
}

func NewAnalyticsHandler(analytics AnalyticsProvider) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analytics,
	}
}

func (h *AnalyticsHandler) GetAnalytics(c *fiber.Ctx) error {
	snapshot, err := h.analytics.Snapshot(c.Context())
	if err != nil {
		logger.Error("Failed to compute analytics snapshot", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute analytics",
		})
	}

	return c.JSON(snapshot)
}
