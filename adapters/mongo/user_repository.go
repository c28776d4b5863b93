package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/satriahrh/chatgate/domain/entities"
	"github.com/satriahrh/chatgate/domain/repositories"
)

const (
	apiKeysCollection  = "user_api_keys"
	settingsCollection = "user_settings"
)

type APIKeyRepository struct {
	collection *mongo.Collection
}

// NewAPIKeyRepository creates a new MongoDB API key repository
func NewAPIKeyRepository(db *mongo.Database) *APIKeyRepository {
	return &APIKeyRepository{collection: db.Collection(apiKeysCollection)}
}

func (r *APIKeyRepository) indexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "provider", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
}

// ListByUser implements repositories.APIKeyRepository
func (r *APIKeyRepository) ListByUser(ctx context.Context, userID string) ([]*entities.APIKey, error) {
	opts := options.Find().SetSort(bson.D{{Key: "provider", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer cursor.Close(ctx)

	keys := []*entities.APIKey{}
	if err := cursor.All(ctx, &keys); err != nil {
		return nil, fmt.Errorf("failed to decode api keys: %w", err)
	}
	return keys, nil
}

// GetActive implements repositories.APIKeyRepository
func (r *APIKeyRepository) GetActive(ctx context.Context, userID string, provider entities.ProviderKind) (*entities.APIKey, error) {
	var key entities.APIKey
	filter := bson.M{"user_id": userID, "provider": provider, "is_active": true}
	if err := r.collection.FindOne(ctx, filter).Decode(&key); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	return &key, nil
}

// Save implements repositories.APIKeyRepository
func (r *APIKeyRepository) Save(ctx context.Context, userID string, provider entities.ProviderKind, apiKey string) (*entities.APIKey, error) {
	now := time.Now().UTC()
	filter := bson.M{"user_id": userID, "provider": provider}
	update := bson.M{
		"$set": bson.M{"api_key": apiKey, "is_active": true, "updated_at": now},
		"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID().Hex(),
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var key entities.APIKey
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&key); err != nil {
		return nil, fmt.Errorf("failed to save api key: %w", err)
	}
	return &key, nil
}

// Delete implements repositories.APIKeyRepository
func (r *APIKeyRepository) Delete(ctx context.Context, userID, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	if result.DeletedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

type SettingsRepository struct {
	collection *mongo.Collection
}

// NewSettingsRepository creates a new MongoDB settings repository
func NewSettingsRepository(db *mongo.Database) *SettingsRepository {
	return &SettingsRepository{collection: db.Collection(settingsCollection)}
}

func (r *SettingsRepository) indexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
}

// Get implements repositories.SettingsRepository
func (r *SettingsRepository) Get(ctx context.Context, userID string) (*entities.UserSettings, error) {
	var settings entities.UserSettings
	if err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&settings); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &settings, nil
}

// Update implements repositories.SettingsRepository
func (r *SettingsRepository) Update(ctx context.Context, userID string, patch entities.SettingsPatch) (*entities.UserSettings, error) {
	settings, err := r.Get(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		settings = entities.NewUserSettings(userID)
		settings.ID = primitive.NewObjectID().Hex()
	} else if err != nil {
		return nil, err
	}
	patch.Apply(settings)

	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"user_id": userID}, settings, opts); err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	return settings, nil
}
