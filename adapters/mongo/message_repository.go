package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/chatgate/domain/entities"
	"github.com/satriahrh/chatgate/domain/repositories"
)

const messagesCollection = "chat_messages"

type MessageRepository struct {
	collection *mongo.Collection
	sessions   *mongo.Collection
	logger     *zap.Logger
}

// NewMessageRepository creates a new MongoDB message repository
func NewMessageRepository(db *mongo.Database, logger *zap.Logger) *MessageRepository {
	return &MessageRepository{
		collection: db.Collection(messagesCollection),
		sessions:   db.Collection(sessionsCollection),
		logger:     logger,
	}
}

func (r *MessageRepository) indexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "created_at", Value: 1}}},
	}
}

// Save implements repositories.MessageRepository
func (r *MessageRepository) Save(ctx context.Context, message *entities.MessageRecord) error {
	if message == nil {
		return errors.New("message cannot be nil")
	}
	if err := message.Validate(); err != nil {
		return err
	}
	if message.ID == "" {
		message.ID = primitive.NewObjectID().Hex()
	}

	if _, err := r.collection.InsertOne(ctx, message); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	update := bson.M{
		"$inc": bson.M{"message_count": 1},
		"$set": bson.M{"last_message_at": message.CreatedAt},
	}
	if _, err := r.sessions.UpdateOne(ctx, bson.M{"_id": message.SessionID}, update); err != nil {
		r.logger.Warn("Failed to bump session activity", zap.Error(err), zap.String("session_id", message.SessionID))
	}
	return nil
}

// GetByID implements repositories.MessageRepository
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*entities.MessageRecord, error) {
	var message entities.MessageRecord
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&message); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	return &message, nil
}

// ListBySession implements repositories.MessageRepository
func (r *MessageRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]*entities.MessageRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer cursor.Close(ctx)

	messages := []*entities.MessageRecord{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return messages, nil
}

// Delete implements repositories.MessageRepository
func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if result.DeletedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// Clear implements repositories.MessageRepository
func (r *MessageRepository) Clear(ctx context.Context, sessionID string) error {
	if _, err := r.collection.DeleteMany(ctx, bson.M{"session_id": sessionID}); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	if _, err := r.sessions.UpdateOne(ctx, bson.M{"_id": sessionID}, bson.M{"$set": bson.M{"message_count": 0}}); err != nil {
		r.logger.Warn("Failed to reset message count", zap.Error(err), zap.String("session_id", sessionID))
	}
	return nil
}
