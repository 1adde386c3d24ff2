package models

import "time"

const (
	SenderUser = "user"
	SenderAI   = "ai"
)

// ChatMessage is a single turn in a support conversation. Messages are
// append-only: once written they are never updated or deleted.
type ChatMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Message   string    `json:"message"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Escalated bool      `json:"escalated"`
}

// KnowledgeItem is an uploaded document used to ground AI replies.
type KnowledgeItem struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Content     string    `json:"content"`
	ContentHash string    `json:"content_hash"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// AnalyticsSnapshot is derived on demand from stored conversations, never
// persisted. AvgResponseTime and SatisfactionScore are configured
// placeholders, not computed values.
type AnalyticsSnapshot struct {
	TotalConversations int     `json:"total_conversations"`
	AIHandled          int     `json:"ai_handled"`
	Escalated          int     `json:"escalated"`
	AvgResponseTime    float64 `json:"avg_response_time"`
	SatisfactionScore  float64 `json:"satisfaction_score"`
	TimeSavedHours     float64 `json:"time_saved_hours"`
}
