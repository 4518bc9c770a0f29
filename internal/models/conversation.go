package models

import "time"

// Conversation groups the ordered message history of one widget session.
type Conversation struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Context   string    `json:"context,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
