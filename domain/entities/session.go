package entities

import (
	"errors"
	"time"
)

// DefaultSessionTitle is used when a durable session is created without a title
const DefaultSessionTitle = "New Chat"

// SessionRecord represents a durable chat session
type SessionRecord struct {
	ID            string    `json:"id" bson:"_id" db:"id"`
	UserID        string    `json:"user_id" bson:"user_id" db:"user_id"`
	Title         string    `json:"title" bson:"title" db:"title"`
	ModelUsed     *string   `json:"model_used" bson:"model_used" db:"model_used"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updated_at" db:"updated_at"`
	LastMessageAt time.Time `json:"last_message_at" bson:"last_message_at" db:"last_message_at"`
	MessageCount  int       `json:"message_count" bson:"message_count" db:"message_count"`
	IsArchived    bool      `json:"is_archived" bson:"is_archived" db:"is_archived"`
}

// NewSessionRecord creates a new durable session for a user
func NewSessionRecord(userID, title string, modelUsed *string) *SessionRecord {
	if title == "" {
		title = DefaultSessionTitle
	}
	now := time.Now().UTC()
	return &SessionRecord{
		UserID:        userID,
		Title:         title,
		ModelUsed:     modelUsed,
		CreatedAt:     now,
		UpdatedAt:     now,
		LastMessageAt: now,
	}
}

// Validate validates the session data
func (s *SessionRecord) Validate() error {
	if s.UserID == "" {
		return errors.New("user_id is required")
	}
	if s.Title == "" {
		return errors.New("title is required")
	}
	return nil
}

// SessionPatch carries optional session updates
type SessionPatch struct {
	Title     *string `json:"title"`
	ModelUsed *string `json:"model_used"`
}

// Apply copies the set fields of p onto s
func (p SessionPatch) Apply(s *SessionRecord) {
	if p.Title != nil && *p.Title != "" {
		s.Title = *p.Title
	}
	if p.ModelUsed != nil && *p.ModelUsed != "" {
		s.ModelUsed = p.ModelUsed
	}
	s.UpdatedAt = time.Now().UTC()
}

// MessageRecord represents a durable message within a session
type MessageRecord struct {
	ID         string                 `json:"id" bson:"_id" db:"id"`
	SessionID  string                 `json:"session_id" bson:"session_id" db:"session_id"`
	Role       Role                   `json:"role" bson:"role" db:"role"`
	Content    string                 `json:"content" bson:"content" db:"content"`
	Model      *string                `json:"model" bson:"model" db:"model"`
	TokensUsed *int                   `json:"tokens_used" bson:"tokens_used" db:"tokens_used"`
	Metadata   map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty" db:"metadata"`
	CreatedAt  time.Time              `json:"created_at" bson:"created_at" db:"created_at"`
}

// NewMessageRecord builds a durable record from a chat message
func NewMessageRecord(sessionID string, msg Message) *MessageRecord {
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &MessageRecord{
		SessionID:  sessionID,
		Role:       msg.Role,
		Content:    msg.Content,
		Model:      msg.Model,
		TokensUsed: msg.Tokens,
		Metadata:   msg.Metadata,
		CreatedAt:  createdAt.UTC(),
	}
}

// Message converts the record back into a chat message
func (m *MessageRecord) Message() Message {
	return Message{
		Role:      m.Role,
		Content:   m.Content,
		Model:     m.Model,
		Tokens:    m.TokensUsed,
		Metadata:  m.Metadata,
		CreatedAt: m.CreatedAt,
	}
}

// Validate validates the message record
func (m *MessageRecord) Validate() error {
	if m.SessionID == "" {
		return errors.New("session_id is required")
	}
	if !m.Role.Valid() {
		return errors.New("role must be one of user, assistant, system")
	}
	if m.Content == "" {
		return errors.New("content is required")
	}
	return nil
}
