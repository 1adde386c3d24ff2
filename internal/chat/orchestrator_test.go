package chat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/supportgenie/backend/internal/knowledge"
	"github.com/supportgenie/backend/internal/llm"
	"github.com/supportgenie/backend/internal/storage/models"
	"github.com/supportgenie/backend/internal/storage/sqlite"
	"github.com/supportgenie/backend/pkg/config"
)

type mockCompleter struct {
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
	calls        int
	lastRequest  llm.CompletionRequest
}

func (m *mockCompleter) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.calls++
	m.lastRequest = req
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return &llm.CompletionResponse{Content: "Happy to help!"}, nil
}

func testChatConfig() config.ChatConfig {
	return config.ChatConfig{
		HistoryLimit:       10,
		MaxMessageChars:    4000,
		FallbackMessage:    "I apologize, but I'm having trouble processing your request right now. Let me connect you with a human agent.",
		EscalationKeywords: []string{"refund"},
	}
}

func newTestOrchestrator(t *testing.T, completer llm.Completer) (*Orchestrator, *sqlite.Client) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "chat-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := sqlite.NewClient(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create sqlite client: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.InitSchema(); err != nil {
		t.Fatalf("Failed to init schema: %v", err)
	}

	kb := knowledge.NewService(store, config.KnowledgeConfig{MaxSnippets: 3, SnippetChars: 500})

	return NewOrchestrator(store, completer, kb, testChatConfig()), store
}

func TestHandleSuccess(t *testing.T) {
	completer := &mockCompleter{}
	o, store := newTestOrchestrator(t, completer)

	resp, err := o.Handle(context.Background(), Request{
		SessionID: "s1",
		Message:   "where is my order?",
		BrandTone: "friendly",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if resp.Message != "Happy to help!" {
		t.Errorf("unexpected reply: %q", resp.Message)
	}
	if resp.Escalated {
		t.Error("unexpected escalation")
	}
	if resp.SessionID != "s1" {
		t.Errorf("session id not echoed: %q", resp.SessionID)
	}

	messages, err := store.ListBySession("s1")
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected user and ai turns persisted, got %d", len(messages))
	}
	if messages[0].Sender != models.SenderUser || messages[1].Sender != models.SenderAI {
		t.Errorf("unexpected senders: %s, %s", messages[0].Sender, messages[1].Sender)
	}
}

func TestHandleEmptyMessage(t *testing.T) {
	completer := &mockCompleter{}
	o, store := newTestOrchestrator(t, completer)

	for _, message := range []string{"", "   ", "\n\t"} {
		_, err := o.Handle(context.Background(), Request{SessionID: "s1", Message: message})
		if !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("Handle(%q) = %v, want ErrEmptyMessage", message, err)
		}
	}

	if completer.calls != 0 {
		t.Errorf("provider must not be called for invalid input, got %d calls", completer.calls)
	}

	count, err := store.CountMessages()
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	if count != 0 {
		t.Errorf("invalid input must not persist anything, have %d messages", count)
	}
}

func TestHandleMessageTooLong(t *testing.T) {
	completer := &mockCompleter{}
	o, _ := newTestOrchestrator(t, completer)

	_, err := o.Handle(context.Background(), Request{
		SessionID: "s1",
		Message:   strings.Repeat("x", 5000),
	})
	if !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}
}

func TestHandleProviderFailureFallsBack(t *testing.T) {
	completer := &mockCompleter{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, llm.ErrProviderUnavailable
		},
	}
	o, store := newTestOrchestrator(t, completer)

	resp, err := o.Handle(context.Background(), Request{
		SessionID: "s1",
		Message:   "hello?",
	})
	if err != nil {
		t.Fatalf("provider failure must not surface as an error: %v", err)
	}

	if resp.Message == "" {
		t.Fatal("chat must always return a non-empty reply")
	}
	if resp.Message != testChatConfig().FallbackMessage {
		t.Errorf("expected fallback reply, got %q", resp.Message)
	}
	if resp.Escalated {
		t.Error("fallback reply must not be flagged escalated")
	}

	if completer.calls != 1 {
		t.Errorf("expected a single provider attempt, got %d", completer.calls)
	}

	// Both the user turn and the fallback AI turn survive the failure.
	messages, err := store.ListBySession("s1")
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 persisted turns, got %d", len(messages))
	}
	if messages[0].Message != "hello?" {
		t.Errorf("user turn lost on provider failure: %q", messages[0].Message)
	}
}

func TestHandleKeywordEscalation(t *testing.T) {
	completer := &mockCompleter{}
	o, store := newTestOrchestrator(t, completer)

	resp, err := o.Handle(context.Background(), Request{
		SessionID: "s1",
		Message:   "I want a refund",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !resp.Escalated {
		t.Error("expected keyword escalation")
	}

	messages, err := store.ListBySession("s1")
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if !messages[1].Escalated {
		t.Error("escalation flag not persisted on ai turn")
	}
	if messages[0].Escalated {
		t.Error("user turn must not carry the escalation flag")
	}
}

func TestHandleMarkerEscalation(t *testing.T) {
	completer := &mockCompleter{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: "ESCALATE: this needs account access."}, nil
		},
	}
	o, _ := newTestOrchestrator(t, completer)

	resp, err := o.Handle(context.Background(), Request{
		SessionID: "s1",
		Message:   "please close my duplicate account",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !resp.Escalated {
		t.Error("expected marker escalation")
	}
	if strings.Contains(resp.Message, "ESCALATE:") {
		t.Errorf("marker must be stripped from reply: %q", resp.Message)
	}
	if !strings.Contains(resp.Message, "human agent") {
		t.Errorf("expected handoff phrasing, got %q", resp.Message)
	}
}

func TestHandleHistoryWindow(t *testing.T) {
	completer := &mockCompleter{}
	o, _ := newTestOrchestrator(t, completer)

	// 8 turns of history from 4 round trips.
	for i := 0; i < 4; i++ {
		if _, err := o.Handle(context.Background(), Request{SessionID: "s1", Message: "turn"}); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}

	if _, err := o.Handle(context.Background(), Request{SessionID: "s1", Message: "latest"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(completer.lastRequest.History) != 8 {
		t.Errorf("expected 8 history turns, got %d", len(completer.lastRequest.History))
	}
	if completer.lastRequest.UserMessage != "latest" {
		t.Errorf("new message must not be part of history, got %q", completer.lastRequest.UserMessage)
	}
}

func TestHandleUnknownToneFallsBack(t *testing.T) {
	completer := &mockCompleter{}
	o, _ := newTestOrchestrator(t, completer)

	if _, err := o.Handle(context.Background(), Request{
		SessionID: "s1",
		Message:   "hi",
		BrandTone: "sarcastic",
	}); err != nil {
		t.Fatalf("unknown tone must not error: %v", err)
	}

	if !strings.Contains(completer.lastRequest.SystemPrompt, "friendly and helpful") {
		t.Errorf("expected friendly fallback in system prompt: %q", completer.lastRequest.SystemPrompt)
	}
}

func TestBuildSystemMessageTones(t *testing.T) {
	tests := []struct {
		tone string
		want string
	}{
		{"friendly", "warm, approachable tone"},
		{"formal", "courteous and respectful tone"},
		{"casual", "conversational, informal tone"},
		{"", "warm, approachable tone"},
	}

	for _, tt := range tests {
		t.Run("tone "+tt.tone, func(t *testing.T) {
			got := BuildSystemMessage(tt.tone, "kb content")
			if !strings.Contains(got, tt.want) {
				t.Errorf("BuildSystemMessage(%q) missing %q", tt.tone, tt.want)
			}
			if !strings.Contains(got, "kb content") {
				t.Error("knowledge base content missing from system prompt")
			}
			if !strings.Contains(got, "ESCALATE:") {
				t.Error("escalation instruction missing from system prompt")
			}
		})
	}
}
