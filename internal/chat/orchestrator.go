package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/supportgenie/backend/internal/escalation"
	"github.com/supportgenie/backend/internal/knowledge"
	"github.com/supportgenie/backend/internal/llm"
	"github.com/supportgenie/backend/internal/metrics"
	"github.com/supportgenie/backend/internal/storage/models"
	"github.com/supportgenie/backend/internal/storage/sqlite"
	"github.com/supportgenie/backend/pkg/config"
	"github.com/supportgenie/backend/pkg/logger"
)

// Client-side input errors, surfaced as 4xx before any side effect.
var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
)

type Request struct {
	SessionID string
	Message   string
	BrandTone string
}

type Response struct {
	Message   string
	Escalated bool
	SessionID string
}

// Orchestrator drives one chat turn: validate, fetch history, build the
// prompt, persist the user turn, call the provider, classify escalation,
// persist the AI turn. Each call is independent; no per-session state.
type Orchestrator struct {
	store     *sqlite.Client
	completer llm.Completer
	knowledge *knowledge.Service
	cfg       config.ChatConfig
}

func NewOrchestrator(store *sqlite.Client, completer llm.Completer, kb *knowledge.Service, cfg config.ChatConfig) *Orchestrator {
	return &Orchestrator{
		store:     store,
		completer: completer,
		knowledge: kb,
		cfg:       cfg,
	}
}

func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Response, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if o.cfg.MaxMessageChars > 0 && len(message) > o.cfg.MaxMessageChars {
		return nil, ErrMessageTooLong
	}

	history, err := o.store.ListRecentBySession(req.SessionID, o.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load session history: %w", err)
	}

	snippets, err := o.knowledge.MatchSnippets(message)
	if err != nil {
		// A degraded prompt beats a dead chat; the reply just loses its
		// knowledge-base grounding.
		logger.Warn("Knowledge base lookup failed", zap.Error(err))
		snippets = ""
	}

	systemPrompt := BuildSystemMessage(req.BrandTone, snippets)

	// The user turn is persisted before the provider call so a provider
	// failure never loses the customer's input.
	userTurn := &models.ChatMessage{
		ID:        uuid.New().String(),
		SessionID: req.SessionID,
		Message:   message,
		Sender:    models.SenderUser,
		Timestamp: time.Now().UTC(),
	}
	if err := o.store.AppendMessage(userTurn); err != nil {
		return nil, fmt.Errorf("failed to persist user turn: %w", err)
	}

	reply, escalated := o.generateReply(ctx, systemPrompt, history, message)

	aiTurn := &models.ChatMessage{
		ID:        uuid.New().String(),
		SessionID: req.SessionID,
		Message:   reply,
		Sender:    models.SenderAI,
		Timestamp: time.Now().UTC(),
		Escalated: escalated,
	}
	if err := o.store.AppendMessage(aiTurn); err != nil {
		return nil, fmt.Errorf("failed to persist ai turn: %w", err)
	}

	if escalated {
		metrics.Escalations.Inc()
	}

	logger.Info("Chat turn completed",
		zap.String("session_id", req.SessionID),
		zap.String("brand_tone", req.BrandTone),
		zap.Bool("escalated", escalated),
	)

	return &Response{
		Message:   reply,
		Escalated: escalated,
		SessionID: req.SessionID,
	}, nil
}

// generateReply makes a single provider attempt. Any provider failure
// degrades to the configured fallback so the caller always gets a reply;
// resubmitting is the client's retry policy.
func (o *Orchestrator) generateReply(ctx context.Context, systemPrompt string, history []models.ChatMessage, message string) (string, bool) {
	resp, err := o.completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		History:      history,
		UserMessage:  message,
	})

	if err != nil {
		logger.Error("Completion failed, using fallback reply", zap.Error(err))
		metrics.ProviderFailures.WithLabelValues(failureKind(err)).Inc()
		metrics.FallbackReplies.Inc()
		return o.cfg.FallbackMessage, false
	}

	reply, marked := escalation.StripMarker(resp.Content)
	escalated := marked || escalation.ShouldEscalate(message, reply, o.cfg.EscalationKeywords)

	return reply, escalated
}

// History returns every turn of a session, oldest first.
func (o *Orchestrator) History(sessionID string) ([]models.ChatMessage, error) {
	return o.store.ListBySession(sessionID)
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, llm.ErrProviderTimeout):
		return "timeout"
	case errors.Is(err, llm.ErrProviderRejected):
		return "rejected"
	default:
		return "unavailable"
	}
}
