package entities

import (
	"errors"
	"strings"
	"time"
)

// Role defines the type of message sender
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message represents a single chat turn
type Message struct {
	Role      Role                   `json:"role" bson:"role" db:"role"`
	Content   string                 `json:"content" bson:"content" db:"content"`
	Model     *string                `json:"model,omitempty" bson:"model,omitempty" db:"model"`
	Tokens    *int                   `json:"tokens_used,omitempty" bson:"tokens_used,omitempty" db:"tokens_used"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" bson:"created_at" db:"created_at"`
}

// NewMessage creates a message stamped with the current time
func NewMessage(role Role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// Validate validates the message
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return errors.New("role must be one of user, assistant, system")
	}
	return nil
}

// ProviderKind names a supported vendor backend
type ProviderKind string

const (
	ProviderOpenAI    ProviderKind = "openai"
	ProviderGemini    ProviderKind = "gemini"
	ProviderAnthropic ProviderKind = "anthropic"
	ProviderGroq      ProviderKind = "groq"
)

// ProviderKinds lists every supported provider in display order
var ProviderKinds = []ProviderKind{ProviderOpenAI, ProviderGemini, ProviderAnthropic, ProviderGroq}

// ParseProviderKind resolves a provider name case-insensitively
func ParseProviderKind(name string) (ProviderKind, bool) {
	kind := ProviderKind(strings.ToLower(strings.TrimSpace(name)))
	for _, k := range ProviderKinds {
		if k == kind {
			return k, true
		}
	}
	return "", false
}

// DisplayName returns the vendor name used in error messages
func (k ProviderKind) DisplayName() string {
	switch k {
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderGemini:
		return "Gemini"
	case ProviderAnthropic:
		return "Anthropic"
	case ProviderGroq:
		return "Groq"
	}
	return string(k)
}

// ProviderConfig binds a provider kind to a credential and model.
// It is immutable once an adapter has been built from it.
type ProviderConfig struct {
	Kind       ProviderKind `json:"provider"`
	Credential string       `json:"-"`
	Model      string       `json:"model"`
}

// Validate validates the provider configuration
func (c ProviderConfig) Validate() error {
	if c.Kind == "" {
		return errors.New("provider is required")
	}
	if c.Credential == "" {
		return errors.New("api_key is required")
	}
	if c.Model == "" {
		return errors.New("model is required")
	}
	return nil
}
