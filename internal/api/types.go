package api

import (
	"github.com/satriahrh/chatgate/domain/entities"
	"github.com/satriahrh/chatgate/internal/session"
)

// ConfigureRequest binds a provider to a session
type ConfigureRequest struct {
	Provider  string `json:"provider"`
	APIKey    string `json:"api_key"`
	Model     string `json:"model"`
	SessionID string `json:"session_id"`
}

// ConfigureResponse confirms a configured session
type ConfigureResponse struct {
	Message   string `json:"message"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	SessionID string `json:"session_id"`
	RecordID  string `json:"record_id,omitempty"`
}

// ChatRequest is one user turn
type ChatRequest struct {
	Message   string             `json:"message"`
	SessionID string             `json:"session_id"`
	History   []entities.Message `json:"history,omitempty"`
}

// ChatResponse carries the assistant reply
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

// ClearRequest names the session to clear
type ClearRequest struct {
	SessionID string `json:"session_id"`
}

// HistoryResponse carries a session's history
type HistoryResponse struct {
	SessionID string             `json:"session_id"`
	History   []entities.Message `json:"history"`
}

// SessionsResponse lists the caller's live sessions
type SessionsResponse struct {
	Sessions []session.Summary `json:"sessions"`
}

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// DataResponse is an acknowledgement carrying the affected record
type DataResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// HealthResponse reports liveness
type HealthResponse struct {
	Status string `json:"status"`
}

// UserResponse describes the authenticated caller
type UserResponse struct {
	ID    string  `json:"id"`
	Email *string `json:"email"`
}

// CreateSessionRequest creates a durable session
type CreateSessionRequest struct {
	Title     string  `json:"title"`
	ModelUsed *string `json:"model_used"`
}

// SaveMessageRequest stores a message in a durable session
type SaveMessageRequest struct {
	SessionID  string        `json:"session_id"`
	Role       entities.Role `json:"role"`
	Content    string        `json:"content"`
	Model      *string       `json:"model"`
	TokensUsed *int          `json:"tokens_used"`
}

// SaveAPIKeyRequest stores a provider credential
type SaveAPIKeyRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
