package repositories

import (
	"context"
	"errors"

	"github.com/satriahrh/chatgate/domain/entities"
)

// ErrNotFound is returned when a record does not exist or belongs to another user
var ErrNotFound = errors.New("record not found")

// SessionRepository defines data access methods for durable chat sessions
type SessionRepository interface {
	Create(ctx context.Context, userID, title string, modelUsed *string) (*entities.SessionRecord, error)
	GetByID(ctx context.Context, userID, id string) (*entities.SessionRecord, error)
	// ListByUser returns non-archived sessions, most recent activity first
	ListByUser(ctx context.Context, userID string, limit int) ([]*entities.SessionRecord, error)
	Update(ctx context.Context, userID, id string, patch entities.SessionPatch) (*entities.SessionRecord, error)
	Archive(ctx context.Context, userID, id string) error
	// Delete removes the session and all of its messages
	Delete(ctx context.Context, userID, id string) error
}

// MessageRepository defines data access methods for durable messages
type MessageRepository interface {
	// Save stores the message and bumps the owning session's activity counters
	Save(ctx context.Context, message *entities.MessageRecord) error
	GetByID(ctx context.Context, id string) (*entities.MessageRecord, error)
	// ListBySession returns messages oldest first
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*entities.MessageRecord, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context, sessionID string) error
}

// APIKeyRepository defines data access methods for stored provider credentials
type APIKeyRepository interface {
	ListByUser(ctx context.Context, userID string) ([]*entities.APIKey, error)
	GetActive(ctx context.Context, userID string, provider entities.ProviderKind) (*entities.APIKey, error)
	// Save inserts or replaces the key for userID and provider
	Save(ctx context.Context, userID string, provider entities.ProviderKind, key string) (*entities.APIKey, error)
	Delete(ctx context.Context, userID, id string) error
}

// SettingsRepository defines data access methods for per-user settings
type SettingsRepository interface {
	Get(ctx context.Context, userID string) (*entities.UserSettings, error)
	// Update applies patch, creating default settings first when none exist
	Update(ctx context.Context, userID string, patch entities.SettingsPatch) (*entities.UserSettings, error)
}

// Store bundles the repositories of one durable backend
type Store struct {
	Sessions SessionRepository
	Messages MessageRepository
	APIKeys  APIKeyRepository
	Settings SettingsRepository

	// Close releases the backend's resources
	Close func(ctx context.Context) error
}
