// Package web provides HTTP request and response types for the session API.
package web

import "github.com/chatback/chatback/pkg/models"

// CreateSessionRequest represents the request body for opening a new
// interview session.
type CreateSessionRequest struct {
	UserID   string `json:"user_id"  validate:"required"`
	Title    string `json:"title"    validate:"required,min=1"`
	Username string `json:"username" validate:"required,min=1"`
}

// CreateSessionResponse carries the new session together with the
// interviewer's opening message.
type CreateSessionResponse struct {
	Session      *models.Session `json:"session"`
	Introduction string          `json:"introduction"`
}

// PostMessageRequest represents one user turn.
type PostMessageRequest struct {
	Message string `json:"message" validate:"required"`
}

// ArtifactChatRequest represents one document-embedded chat turn about a
// generated artifact.
type ArtifactChatRequest struct {
	Message string `json:"message" validate:"required"`
}
