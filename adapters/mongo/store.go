package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/satriahrh/chatgate/domain/repositories"
)

// NewStore connects to MongoDB and returns the repositories backed by it
func NewStore(ctx context.Context, uri, dbName string, logger *zap.Logger) (*repositories.Store, error) {
	client, err := NewClient(ctx, uri, dbName, logger)
	if err != nil {
		return nil, err
	}

	store := NewStoreFromDatabase(client.Database, logger)
	store.Close = client.Close
	return store, nil
}

// NewStoreFromDatabase builds the repositories on an existing database and ensures their indexes
func NewStoreFromDatabase(db *mongo.Database, logger *zap.Logger) *repositories.Store {
	sessions := NewSessionRepository(db, logger)
	messages := NewMessageRepository(db, logger)
	apiKeys := NewAPIKeyRepository(db)
	settings := NewSettingsRepository(db)

	ensureIndexes(db, logger, map[string][]mongo.IndexModel{
		sessionsCollection: sessions.indexes(),
		messagesCollection: messages.indexes(),
		apiKeysCollection:  apiKeys.indexes(),
		settingsCollection: settings.indexes(),
	})

	return &repositories.Store{
		Sessions: sessions,
		Messages: messages,
		APIKeys:  apiKeys,
		Settings: settings,
		Close:    func(context.Context) error { return nil },
	}
}

func ensureIndexes(db *mongo.Database, logger *zap.Logger, models map[string][]mongo.IndexModel) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for name, indexes := range models {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			logger.Error("Failed to create indexes", zap.String("collection", name), zap.Error(err))
			continue
		}
		logger.Debug("Indexes created", zap.String("collection", name))
	}
}
