package models

import "time"

// MessageRole identifies the author of a conversation turn.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message is one turn of conversation. Messages are append-only; ordering by
// CreatedAt is the canonical transcript order.
type Message struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id" validate:"required"`
	Role      MessageRole    `json:"role"       validate:"required,oneof=user assistant system"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ProgressSnapshotKey is the metadata key carrying the interview progress at
// the moment the message was recorded, so history replay does not need to
// recompute state.
const ProgressSnapshotKey = "progress"
