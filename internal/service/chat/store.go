package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"portfoliogo/internal/models"
)

// Store persists conversations and their append-only message history.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateConversation inserts a new conversation. A blank sessionID gets a
// generated identifier; uniqueness of session ids is enforced by the schema.
func (s *Store) CreateConversation(ctx context.Context, sessionID, contextBlob string) (*models.Conversation, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (session_id, context, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		sessionID, contextBlob, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("conversation id: %w", err)
	}
	return &models.Conversation{
		ID:        id,
		SessionID: sessionID,
		Context:   contextBlob,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetConversation returns one conversation and its messages ordered by
// creation time. Returns sql.ErrNoRows when the id is unknown.
func (s *Store) GetConversation(ctx context.Context, id int64) (*models.Conversation, []*models.Message, error) {
	var conv models.Conversation
	var contextBlob sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, context, created_at, updated_at FROM conversations WHERE id = ?`,
		id,
	).Scan(&conv.ID, &conv.SessionID, &contextBlob, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("get conversation: %w", err)
	}
	conv.Context = contextBlob.String

	messages, err := s.listMessages(ctx, conv.ID)
	if err != nil {
		return &conv, nil, err
	}
	return &conv, messages, nil
}

// FindBySession looks a conversation up by its opaque session identifier.
func (s *Store) FindBySession(ctx context.Context, sessionID string) (*models.Conversation, []*models.Message, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM conversations WHERE session_id = ?`, sessionID,
	).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("find conversation: %w", err)
	}
	return s.GetConversation(ctx, id)
}

func (s *Store) listMessages(ctx context.Context, conversationID int64) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, kind, metadata, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, id ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m := new(models.Message)
		var metadataJSON sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Kind, &metadataJSON, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if metadataJSON.Valid && metadataJSON.String != "" {
			meta := new(models.MessageMetadata)
			if err := json.Unmarshal([]byte(metadataJSON.String), meta); err != nil {
				return nil, fmt.Errorf("decode message metadata: %w", err)
			}
			m.Metadata = meta
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// AppendMessage stores a new immutable message and touches the owning
// conversation's updated_at.
func (s *Store) AppendMessage(ctx context.Context, conversationID int64, role models.Role, content string, kind models.MessageKind, metadata *models.MessageMetadata) (*models.Message, error) {
	var metadataJSON sql.NullString
	if metadata != nil {
		data, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("encode message metadata: %w", err)
		}
		metadataJSON = sql.NullString{String: string(data), Valid: true}
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, kind, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		conversationID, role, content, kind, metadataJSON, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, now, conversationID); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}
	return &models.Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Kind:           kind,
		Metadata:       metadata,
		CreatedAt:      now,
	}, nil
}

// ListConversations returns conversations ordered by last activity, for the
// admin view.
func (s *Store) ListConversations(ctx context.Context, limit int) ([]models.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, context, created_at, updated_at
		 FROM conversations ORDER BY updated_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		var contextBlob sql.NullString
		if err := rows.Scan(&conv.ID, &conv.SessionID, &contextBlob, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conv.Context = contextBlob.String
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}
