package entities

import "time"

// Settings defaults applied when a user has no stored settings yet
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2048
)

// APIKey represents a stored provider credential
type APIKey struct {
	ID        string       `json:"id" bson:"_id" db:"id"`
	UserID    string       `json:"user_id" bson:"user_id" db:"user_id"`
	Provider  ProviderKind `json:"provider" bson:"provider" db:"provider"`
	Key       string       `json:"-" bson:"api_key" db:"api_key"`
	IsActive  bool         `json:"is_active" bson:"is_active" db:"is_active"`
	CreatedAt time.Time    `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// UserSettings represents per-user preferences
type UserSettings struct {
	ID                 string    `json:"id" bson:"_id" db:"id"`
	UserID             string    `json:"user_id" bson:"user_id" db:"user_id"`
	DefaultTemperature float64   `json:"default_temperature" bson:"default_temperature" db:"default_temperature"`
	DefaultMaxTokens   int       `json:"default_max_tokens" bson:"default_max_tokens" db:"default_max_tokens"`
	SidebarCollapsed   bool      `json:"sidebar_collapsed" bson:"sidebar_collapsed" db:"sidebar_collapsed"`
	UpdatedAt          time.Time `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// NewUserSettings creates settings with defaults for a user
func NewUserSettings(userID string) *UserSettings {
	return &UserSettings{
		UserID:             userID,
		DefaultTemperature: DefaultTemperature,
		DefaultMaxTokens:   DefaultMaxTokens,
		UpdatedAt:          time.Now().UTC(),
	}
}

// SettingsPatch carries optional settings updates
type SettingsPatch struct {
	DefaultTemperature *float64 `json:"default_temperature"`
	DefaultMaxTokens   *int     `json:"default_max_tokens"`
	SidebarCollapsed   *bool    `json:"sidebar_collapsed"`
}

// Apply copies the set fields of p onto s
func (p SettingsPatch) Apply(s *UserSettings) {
	if p.DefaultTemperature != nil {
		s.DefaultTemperature = *p.DefaultTemperature
	}
	if p.DefaultMaxTokens != nil {
		s.DefaultMaxTokens = *p.DefaultMaxTokens
	}
	if p.SidebarCollapsed != nil {
		s.SidebarCollapsed = *p.SidebarCollapsed
	}
	s.UpdatedAt = time.Now().UTC()
}
