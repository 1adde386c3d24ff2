package handlers

import (
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/supportgenie/backend/internal/metrics"
	"github.com/supportgenie/backend/internal/storage/models"
	"github.com/supportgenie/backend/internal/storage/sqlite"
	"github.com/supportgenie/backend/pkg/config"
	"github.com/supportgenie/backend/pkg/logger"
)

type KnowledgeService interface {
	Upload(filename, contentType, content string) (*models.KnowledgeItem, error)
	List() ([]models.KnowledgeItem, error)
	Delete(id string) error
}

type KnowledgeHandler struct {
	knowledge KnowledgeService
	cfg       config.KnowledgeConfig
}

func NewKnowledgeHandler(knowledgeService KnowledgeService, cfg config.KnowledgeConfig) *KnowledgeHandler {
	return &KnowledgeHandler{
		knowledge: knowledgeService,
		cfg:       cfg,
	}
}

func (h *KnowledgeHandler) ListItems(c *fiber.Ctx) error {
	items, err := h.knowledge.List()
	if err != nil {
		logger.Error("Failed to list knowledge base", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load knowledge base",
		})
	}

	if items == nil {
		items = []models.KnowledgeItem{}
	}

	return c.JSON(items)
}

// UploadItem enforces the upload boundary: file type and size are checked
// here, before the knowledge service or the store see the request.
func (h *KnowledgeHandler) UploadItem(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "File is required",
		})
	}

	if fileHeader.Size > h.cfg.MaxUploadBytes {
		metrics.KnowledgeUploadsRejected.WithLabelValues("too_large").Inc()
		logger.Warn("Upload rejected: file too large",
			zap.String("filename", fileHeader.Filename),
			zap.Int64("size", fileHeader.Size),
		)
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": "File exceeds the maximum upload size",
		})
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !h.extensionAllowed(ext) {
		metrics.KnowledgeUploadsRejected.WithLabelValues("type").Inc()
		logger.Warn("Upload rejected: unsupported type",
			zap.String("filename", fileHeader.Filename),
			zap.String("extension", ext),
		)
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
			"error": "Unsupported file type",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open uploaded file", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Upload failed",
		})
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		logger.Error("Failed to read uploaded file", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Upload failed",
		})
	}

	item, err := h.knowledge.Upload(fileHeader.Filename, fileHeader.Header.Get("Content-Type"), string(content))
	if err != nil {
		logger.Error("Failed to store knowledge item", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Upload failed",
		})
	}

	metrics.KnowledgeUploads.Inc()
	return c.JSON(fiber.Map{
		"message":  "Knowledge base updated successfully",
		"id":       item.ID,
		"filename": item.Filename,
	})
}

func (h *KnowledgeHandler) DeleteItem(c *fiber.Ctx) error {
	id := c.Params("id")

	err := h.knowledge.Delete(id)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Knowledge base item not found",
			})
		}

		logger.Error("Failed to delete knowledge item", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Delete failed",
		})
	}

	metrics.KnowledgeDeletes.Inc()
	return c.JSON(fiber.Map{
		"message": "Knowledge base item deleted successfully",
	})
}

func (h *KnowledgeHandler) extensionAllowed(ext string) bool {
	for _, allowed := range h.cfg.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}
