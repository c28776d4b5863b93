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
	"go.uber.org/zap"

	"github.com/satriahrh/chatgate/domain/entities"
	"github.com/satriahrh/chatgate/domain/repositories"
)

const (
	sessionsCollection = "chat_sessions"
	defaultListLimit   = 50
)

type SessionRepository struct {
	collection *mongo.Collection
	messages   *mongo.Collection
	logger     *zap.Logger
}

// NewSessionRepository creates a new MongoDB session repository
func NewSessionRepository(db *mongo.Database, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		collection: db.Collection(sessionsCollection),
		messages:   db.Collection(messagesCollection),
		logger:     logger,
	}
}

func (r *SessionRepository) indexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_archived", Value: 1}, {Key: "last_message_at", Value: -1}}},
	}
}

// Create implements repositories.SessionRepository
func (r *SessionRepository) Create(ctx context.Context, userID, title string, modelUsed *string) (*entities.SessionRecord, error) {
	session := entities.NewSessionRecord(userID, title, modelUsed)
	if err := session.Validate(); err != nil {
		return nil, err
	}
	session.ID = primitive.NewObjectID().Hex()

	if _, err := r.collection.InsertOne(ctx, session); err != nil {
		r.logger.Error("Failed to create session", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	r.logger.Debug("Session created",
		zap.String("session_id", session.ID),
		zap.String("user_id", userID))

	return session, nil
}

// GetByID implements repositories.SessionRepository
func (r *SessionRepository) GetByID(ctx context.Context, userID, id string) (*entities.SessionRecord, error) {
	var session entities.SessionRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return &session, nil
}

// ListByUser implements repositories.SessionRepository
func (r *SessionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*entities.SessionRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	filter := bson.M{"user_id": userID, "is_archived": false}
	opts := options.Find().
		SetSort(bson.D{{Key: "last_message_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer cursor.Close(ctx)

	sessions := []*entities.SessionRecord{}
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}
	return sessions, nil
}

// Update implements repositories.SessionRepository
func (r *SessionRepository) Update(ctx context.Context, userID, id string, patch entities.SessionPatch) (*entities.SessionRecord, error) {
	session, err := r.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(session)

	update := bson.M{
		"$set": bson.M{
			"title":      session.Title,
			"model_used": session.ModelUsed,
			"updated_at": session.UpdatedAt,
		},
	}
	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "user_id": userID}, update); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	return session, nil
}

// Archive implements repositories.SessionRepository
func (r *SessionRepository) Archive(ctx context.Context, userID, id string) error {
	update := bson.M{"$set": bson.M{"is_archived": true, "updated_at": time.Now().UTC()}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "user_id": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to archive session: %w", err)
	}
	if result.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// Delete implements repositories.SessionRepository
func (r *SessionRepository) Delete(ctx context.Context, userID, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if result.DeletedCount == 0 {
		return repositories.ErrNotFound
	}

	if _, err := r.messages.DeleteMany(ctx, bson.M{"session_id": id}); err != nil {
		r.logger.Error("Failed to delete session messages", zap.Error(err), zap.String("session_id", id))
		return fmt.Errorf("failed to delete session messages: %w", err)
	}
	return nil
}
