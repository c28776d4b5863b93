package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/chatgate/domain/entities"
	"github.com/satriahrh/chatgate/domain/repositories"
)

type APIKeyRepository struct {
	db *sql.DB
}

const apiKeyColumns = `id, user_id, provider, api_key, is_active, created_at, updated_at`

func scanAPIKey(row rowScanner) (*entities.APIKey, error) {
	var k entities.APIKey
	var provider, createdAt, updatedAt string
	var active int

	if err := row.Scan(&k.ID, &k.UserID, &provider, &k.Key, &active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	k.Provider = entities.ProviderKind(provider)
	k.IsActive = active == 1
	k.CreatedAt = parseTime(createdAt)
	k.UpdatedAt = parseTime(updatedAt)
	return &k, nil
}

// ListByUser implements repositories.APIKeyRepository
func (r *APIKeyRepository) ListByUser(ctx context.Context, userID string) ([]*entities.APIKey, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+apiKeyColumns+` FROM user_api_keys WHERE user_id = ? ORDER BY provider
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query api keys: %w", err)
	}
	defer rows.Close()

	keys := []*entities.APIKey{}
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// GetActive implements repositories.APIKeyRepository
func (r *APIKeyRepository) GetActive(ctx context.Context, userID string, provider entities.ProviderKind) (*entities.APIKey, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+apiKeyColumns+` FROM user_api_keys
		WHERE user_id = ? AND provider = ? AND is_active = 1
	`, userID, string(provider))

	key, err := scanAPIKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query api key: %w", err)
	}
	return key, nil
}

// Save implements repositories.APIKeyRepository
func (r *APIKeyRepository) Save(ctx context.Context, userID string, provider entities.ProviderKind, apiKey string) (*entities.APIKey, error) {
	now := formatTime(time.Now())
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_api_keys (`+apiKeyColumns+`)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(user_id, provider) DO UPDATE SET
			api_key = excluded.api_key,
			is_active = 1,
			updated_at = excluded.updated_at
	`, uuid.NewString(), userID, string(provider), apiKey, now, now)
	if err != nil {
		return nil, fmt.Errorf("upsert api key: %w", err)
	}
	return r.GetActive(ctx, userID, provider)
}

// Delete implements repositories.APIKeyRepository
func (r *APIKeyRepository) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM user_api_keys WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	return requireAffected(result)
}

type SettingsRepository struct {
	db *sql.DB
}

// Get implements repositories.SettingsRepository
func (r *SettingsRepository) Get(ctx context.Context, userID string) (*entities.UserSettings, error) {
	var s entities.UserSettings
	var collapsed int
	var updatedAt string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, default_temperature, default_max_tokens, sidebar_collapsed, updated_at
		FROM user_settings WHERE user_id = ?
	`, userID).Scan(&s.ID, &s.UserID, &s.DefaultTemperature, &s.DefaultMaxTokens, &collapsed, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}

	s.SidebarCollapsed = collapsed == 1
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

// Update implements repositories.SettingsRepository
func (r *SettingsRepository) Update(ctx context.Context, userID string, patch entities.SettingsPatch) (*entities.UserSettings, error) {
	settings, err := r.Get(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		settings = entities.NewUserSettings(userID)
		settings.ID = uuid.NewString()
	} else if err != nil {
		return nil, err
	}
	patch.Apply(settings)

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO user_settings (id, user_id, default_temperature, default_max_tokens, sidebar_collapsed, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			default_temperature = excluded.default_temperature,
			default_max_tokens = excluded.default_max_tokens,
			sidebar_collapsed = excluded.sidebar_collapsed,
			updated_at = excluded.updated_at
	`, settings.ID, userID, settings.DefaultTemperature, settings.DefaultMaxTokens,
		boolToInt(settings.SidebarCollapsed), formatTime(settings.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("upsert settings: %w", err)
	}
	return settings, nil
}
