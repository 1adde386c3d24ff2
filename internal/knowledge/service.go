package knowledge

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/supportgenie/backend/internal/storage/models"
	"github.com/supportgenie/backend/internal/storage/sqlite"
	"github.com/supportgenie/backend/pkg/config"
	"github.com/supportgenie/backend/pkg/logger"
	"github.com/supportgenie/backend/pkg/utils"
)

// Service manages uploaded knowledge-base documents and selects snippets
// for the chat prompt. Size and file-type limits are enforced at the HTTP
// boundary before Upload is called.
type Service struct {
	db  *sqlite.Client
	cfg config.KnowledgeConfig
}

func NewService(db *sqlite.Client, cfg config.KnowledgeConfig) *Service {
	return &Service{
		db:  db,
		cfg: cfg,
	}
}

func (s *Service) Upload(filename, contentType, content string) (*models.KnowledgeItem, error) {
	item := &models.KnowledgeItem{
		ID:          uuid.New().String(),
		Filename:    filename,
		ContentType: contentType,
		Content:     content,
		ContentHash: utils.HashString(content),
		UploadedAt:  time.Now().UTC(),
	}

	if err := s.db.InsertKnowledgeItem(item); err != nil {
		return nil, err
	}

	logger.Info("Knowledge base updated",
		zap.String("item_id", item.ID),
		zap.String("filename", filename),
		zap.String("content_hash", item.ContentHash),
	)

	return item, nil
}

func (s *Service) List() ([]models.KnowledgeItem, error) {
	return s.db.ListKnowledgeItems()
}

func (s *Service) Delete(id string) error {
	return s.db.DeleteKnowledgeItem(id)
}

// MatchSnippets picks knowledge-base content for the system prompt using
// token overlap with the user message. When nothing overlaps, the most
// recent uploads are used instead so the model always sees some grounding,
// matching how uploads were originally injected wholesale.
func (s *Service) MatchSnippets(message string) (string, error) {
	items, err := s.db.ListKnowledgeItems()
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", nil
	}

	tokens := tokenize(message)

	type scored struct {
		item  models.KnowledgeItem
		score int
	}

	var matched []scored
	for _, item := range items {
		haystack := strings.ToLower(item.Filename + " " + item.Content)
		score := 0
		for _, token := range tokens {
			if strings.Contains(haystack, token) {
				score++
			}
		}
		if score > 0 {
			matched = append(matched, scored{item: item, score: score})
		}
	}

	selected := make([]models.KnowledgeItem, 0, s.cfg.MaxSnippets)
	if len(matched) > 0 {
		for len(matched) > 0 && len(selected) < s.cfg.MaxSnippets {
			best := 0
			for i := range matched {
				if matched[i].score > matched[best].score {
					best = i
				}
			}
			selected = append(selected, matched[best].item)
			matched = append(matched[:best], matched[best+1:]...)
		}
	} else {
		start := len(items) - s.cfg.MaxSnippets
		if start < 0 {
			start = 0
		}
		selected = items[start:]
	}

	var builder strings.Builder
	for i, item := range selected {
		if i > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(item.Filename)
		builder.WriteString(":\n")
		builder.WriteString(truncate(item.Content, s.cfg.SnippetChars))
	}

	return builder.String(), nil
}

func tokenize(message string) []string {
	fields := strings.Fields(strings.ToLower(message))

	var tokens []string
	for _, field := range fields {
		token := strings.Trim(field, ".,!?;:\"'()")
		if len(token) >= 3 {
			tokens = append(tokens, token)
		}
	}

	return tokens
}

func truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	return text[:limit]
}
