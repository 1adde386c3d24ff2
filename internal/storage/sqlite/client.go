package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/supportgenie/backend/internal/storage/models"
	"github.com/supportgenie/backend/pkg/logger"
)

// ErrNotFound is returned when a delete or lookup targets an id that does
// not exist in the store.
var ErrNotFound = errors.New("not found")

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping() error {
	return c.db.Ping()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		message TEXT NOT NULL,
		sender TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		escalated INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(session_id);
	CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON chat_messages(timestamp);
	CREATE INDEX IF NOT EXISTS idx_messages_escalated ON chat_messages(escalated);

	CREATE TABLE IF NOT EXISTS knowledge_base (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		content_type TEXT,
		content TEXT NOT NULL,
		content_hash TEXT,
		uploaded_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_knowledge_uploaded ON knowledge_base(uploaded_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// AppendMessage writes a chat turn. There is no update path: the message
// log is append-only.
func (c *Client) AppendMessage(msg *models.ChatMessage) error {
	query := `INSERT INTO chat_messages (id, session_id, message, sender, timestamp, escalated) VALUES (?, ?, ?, ?, ?, ?)`

	escalated := 0
	if msg.Escalated {
		escalated = 1
	}

	_, err := c.db.Exec(
		query,
		msg.ID,
		msg.SessionID,
		msg.Message,
		msg.Sender,
		msg.Timestamp.Unix(),
		escalated,
	)

	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}

	logger.Debug("Message appended",
		zap.String("message_id", msg.ID),
		zap.String("session_id", msg.SessionID),
		zap.String("sender", msg.Sender),
	)
	return nil
}

// ListBySession returns every turn of a session ordered by timestamp
// ascending. Turns written in the same second keep insert order.
func (c *Client) ListBySession(sessionID string) ([]models.ChatMessage, error) {
	query := `
		SELECT id, session_id, message, sender, timestamp, escalated
		FROM chat_messages
		WHERE session_id = ?
		ORDER BY timestamp ASC, rowid ASC
	`

	rows, err := c.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list session messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// ListRecentBySession returns the last n turns of a session in
// chronological order, bounding the history window fed into prompts.
func (c *Client) ListRecentBySession(sessionID string, n int) ([]models.ChatMessage, error) {
	query := `
		SELECT id, session_id, message, sender, timestamp, escalated
		FROM chat_messages
		WHERE session_id = ?
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func scanMessages(rows *sql.Rows) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		var timestamp int64
		var escalated int

		err := rows.Scan(&m.ID, &m.SessionID, &m.Message, &m.Sender, &timestamp, &escalated)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		m.Timestamp = time.Unix(timestamp, 0).UTC()
		m.Escalated = escalated != 0
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return messages, nil
}

func (c *Client) CountMessages() (int, error) {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM chat_messages`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// CountSessions counts distinct session ids, the unit "conversation" used
// by analytics.
func (c *Client) CountSessions() (int, error) {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(DISTINCT session_id) FROM chat_messages`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

// CountEscalatedSessions counts distinct sessions containing at least one
// escalated turn.
func (c *Client) CountEscalatedSessions() (int, error) {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(DISTINCT session_id) FROM chat_messages WHERE escalated = 1`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count escalated sessions: %w", err)
	}
	return count, nil
}

func (c *Client) InsertKnowledgeItem(item *models.KnowledgeItem) error {
	query := `INSERT INTO knowledge_base (id, filename, content_type, content, content_hash, uploaded_at) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := c.db.Exec(
		query,
		item.ID,
		item.Filename,
		item.ContentType,
		item.Content,
		item.ContentHash,
		item.UploadedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert knowledge item: %w", err)
	}

	logger.Info("Knowledge item stored",
		zap.String("item_id", item.ID),
		zap.String("filename", item.Filename),
		zap.Int("content_bytes", len(item.Content)),
	)
	return nil
}

func (c *Client) ListKnowledgeItems() ([]models.KnowledgeItem, error) {
	query := `
		SELECT id, filename, content_type, content, content_hash, uploaded_at
		FROM knowledge_base
		ORDER BY uploaded_at ASC, rowid ASC
	`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge items: %w", err)
	}
	defer rows.Close()

	var items []models.KnowledgeItem
	for rows.Next() {
		var item models.KnowledgeItem
		var uploadedAt int64

		err := rows.Scan(&item.ID, &item.Filename, &item.ContentType, &item.Content, &item.ContentHash, &uploadedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		item.UploadedAt = time.Unix(uploadedAt, 0).UTC()
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return items, nil
}

// DeleteKnowledgeItem removes an item by id. Returns ErrNotFound when the
// id does not exist; the store is left unchanged in that case.
func (c *Client) DeleteKnowledgeItem(id string) error {
	result, err := c.db.Exec(`DELETE FROM knowledge_base WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete knowledge item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	logger.Info("Knowledge item deleted", zap.String("item_id", id))
	return nil
}

func (c *Client) CountKnowledgeItems() (int, error) {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM knowledge_base`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count knowledge items: %w", err)
	}
	return count, nil
}
