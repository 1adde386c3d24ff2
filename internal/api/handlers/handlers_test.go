package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportgenie/backend/internal/chat"
	"github.com/supportgenie/backend/internal/storage/models"
	"github.com/supportgenie/backend/internal/storage/sqlite"
	"github.com/supportgenie/backend/pkg/config"
)

type mockChatService struct {
	HandleFunc  func(ctx context.Context, req chat.Request) (*chat.Response, error)
	HistoryFunc func(sessionID string) ([]models.ChatMessage, error)
}

func (m *mockChatService) Handle(ctx context.Context, req chat.Request) (*chat.Response, error) {
	if m.HandleFunc != nil {
		return m.HandleFunc(ctx, req)
	}
	return &chat.Response{Message: "ok", SessionID: req.SessionID}, nil
}

func (m *mockChatService) History(sessionID string) ([]models.ChatMessage, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(sessionID)
	}
	return nil, nil
}

type mockKnowledgeService struct {
	UploadFunc  func(filename, contentType, content string) (*models.KnowledgeItem, error)
	ListFunc    func() ([]models.KnowledgeItem, error)
	DeleteFunc  func(id string) error
	uploadCalls int
}

func (m *mockKnowledgeService) Upload(filename, contentType, content string) (*models.KnowledgeItem, error) {
	m.uploadCalls++
	if m.UploadFunc != nil {
		return m.UploadFunc(filename, contentType, content)
	}
	return &models.KnowledgeItem{ID: "k1", Filename: filename}, nil
}

func (m *mockKnowledgeService) List() ([]models.KnowledgeItem, error) {
	if m.ListFunc != nil {
		return m.ListFunc()
	}
	return nil, nil
}

func (m *mockKnowledgeService) Delete(id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(id)
	}
	return nil
}

type mockAnalytics struct {
	SnapshotFunc func(ctx context.Context) (*models.AnalyticsSnapshot, error)
}

func (m *mockAnalytics) Snapshot(ctx context.Context) (*models.AnalyticsSnapshot, error) {
	if m.SnapshotFunc != nil {
		return m.SnapshotFunc(ctx)
	}
	return &models.AnalyticsSnapshot{}, nil
}

func testKnowledgeConfig() config.KnowledgeConfig {
	return config.KnowledgeConfig{
		MaxUploadBytes:    1024,
		AllowedExtensions: []string{".txt", ".csv", ".pdf"},
	}
}

func newTestApp(chatSvc ChatService, kbSvc KnowledgeService, analytics AnalyticsProvider) *fiber.App {
	app := fiber.New()

	chatHandler := NewChatHandler(chatSvc)
	kbHandler := NewKnowledgeHandler(kbSvc, testKnowledgeConfig())
	analyticsHandler := NewAnalyticsHandler(analytics)

	api := app.Group("/api")
	api.Post("/chat", chatHandler.HandleChat)
	api.Get("/chat/:session_id", chatHandler.GetChatHistory)
	api.Get("/knowledge-base", kbHandler.ListItems)
	api.Post("/knowledge-base/upload", kbHandler.UploadItem)
	api.Delete("/knowledge-base/:id", kbHandler.DeleteItem)
	api.Get("/analytics", analyticsHandler.GetAnalytics)

	return app
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/knowledge-base/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestHandleChatSuccess(t *testing.T) {
	chatSvc := &mockChatService{
		HandleFunc: func(ctx context.Context, req chat.Request) (*chat.Response, error) {
			return &chat.Response{Message: "Your order ships tomorrow.", Escalated: false, SessionID: req.SessionID}, nil
		},
	}
	app := newTestApp(chatSvc, &mockKnowledgeService{}, &mockAnalytics{})

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/chat", map[string]string{
		"message":    "where is my order?",
		"session_id": "s1",
		"brand_tone": "friendly",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Message   string `json:"message"`
		Escalated bool   `json:"escalated"`
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.Message)
	assert.Equal(t, "s1", body.SessionID)
}

func TestHandleChatEmptyMessage(t *testing.T) {
	chatSvc := &mockChatService{
		HandleFunc: func(ctx context.Context, req chat.Request) (*chat.Response, error) {
			return nil, chat.ErrEmptyMessage
		},
	}
	app := newTestApp(chatSvc, &mockKnowledgeService{}, &mockAnalytics{})

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/chat", map[string]string{
		"message":    "",
		"session_id": "s1",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleChatMissingSession(t *testing.T) {
	called := false
	chatSvc := &mockChatService{
		HandleFunc: func(ctx context.Context, req chat.Request) (*chat.Response, error) {
			called = true
			return &chat.Response{Message: "ok"}, nil
		},
	}
	app := newTestApp(chatSvc, &mockKnowledgeService{}, &mockAnalytics{})

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/chat", map[string]string{
		"message": "hi",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, called, "orchestrator must not run without a session id")
}

func TestHandleChatOrchestratorFailure(t *testing.T) {
	chatSvc := &mockChatService{
		HandleFunc: func(ctx context.Context, req chat.Request) (*chat.Response, error) {
			return nil, errors.New("store down")
		},
	}
	app := newTestApp(chatSvc, &mockKnowledgeService{}, &mockAnalytics{})

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/chat", map[string]string{
		"message":    "hi",
		"session_id": "s1",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestGetChatHistoryEmptySessionIsArray(t *testing.T) {
	app := newTestApp(&mockChatService{}, &mockKnowledgeService{}, &mockAnalytics{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/chat/s1", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}

func TestUploadAccepted(t *testing.T) {
	kbSvc := &mockKnowledgeService{}
	app := newTestApp(&mockChatService{}, kbSvc, &mockAnalytics{})

	resp, err := app.Test(multipartRequest(t, "faq.txt", "Q: hours? A: 9-5."))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, kbSvc.uploadCalls)
}

func TestUploadOversizeRejected(t *testing.T) {
	kbSvc := &mockKnowledgeService{}
	app := newTestApp(&mockChatService{}, kbSvc, &mockAnalytics{})

	// Config caps uploads at 1KB in this test app.
	resp, err := app.Test(multipartRequest(t, "big.txt", strings.Repeat("x", 2048)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, 0, kbSvc.uploadCalls, "rejected upload must not reach the store")
}

func TestUploadWrongTypeRejected(t *testing.T) {
	kbSvc := &mockKnowledgeService{}
	app := newTestApp(&mockChatService{}, kbSvc, &mockAnalytics{})

	resp, err := app.Test(multipartRequest(t, "malware.exe", "MZ"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	assert.Equal(t, 0, kbSvc.uploadCalls)
}

func TestDeleteKnowledgeItemNotFound(t *testing.T) {
	kbSvc := &mockKnowledgeService{
		DeleteFunc: func(id string) error {
			return sqlite.ErrNotFound
		},
	}
	app := newTestApp(&mockChatService{}, kbSvc, &mockAnalytics{})

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/knowledge-base/ghost", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteKnowledgeItemOK(t *testing.T) {
	app := newTestApp(&mockChatService{}, &mockKnowledgeService{}, &mockAnalytics{})

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/knowledge-base/k1", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetAnalytics(t *testing.T) {
	analytics := &mockAnalytics{
		SnapshotFunc: func(ctx context.Context) (*models.AnalyticsSnapshot, error) {
			return &models.AnalyticsSnapshot{
				TotalConversations: 10,
				AIHandled:          8,
				Escalated:          2,
				AvgResponseTime:    0.8,
				SatisfactionScore:  4.6,
				TimeSavedHours:     0.3,
			}, nil
		},
	}
	app := newTestApp(&mockChatService{}, &mockKnowledgeService{}, analytics)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/analytics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var snap models.AnalyticsSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, snap.TotalConversations, snap.AIHandled+snap.Escalated)
}

func TestListKnowledgeEmptyIsArray(t *testing.T) {
	app := newTestApp(&mockChatService{}, &mockKnowledgeService{}, &mockAnalytics{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/knowledge-base", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}
