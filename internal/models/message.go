package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageKind distinguishes free-text turns from scripted tree turns.
type MessageKind string

const (
	KindText         MessageKind = "text"
	KindDecisionTree MessageKind = "decision_tree"
)

// Option is a selectable choice offered to the visitor. Tree options carry
// NextID; the synthesized mode-switch option carries Action and Mode instead.
type Option struct {
	Text   string `json:"text"`
	Value  string `json:"value"`
	NextID string `json:"nextId,omitempty"`
	Action string `json:"action,omitempty"`
	Mode   string `json:"mode,omitempty"`
}

// MessageMetadata captures the conversational state the assistant reply was
// produced under.
type MessageMetadata struct {
	Mode       string   `json:"mode,omitempty"`
	Options    []Option `json:"options,omitempty"`
	NextNodeID string   `json:"next_node_id,omitempty"`
}

// Message is a single immutable conversation turn record.
type Message struct {
	ID             int64            `json:"id"`
	ConversationID int64            `json:"conversation_id"`
	Role           Role             `json:"role"`
	Content        string           `json:"content"`
	Kind           MessageKind      `json:"kind"`
	Metadata       *MessageMetadata `json:"metadata,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}
