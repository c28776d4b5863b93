package mongo

import (
	"context"
	"errors"
	"os"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/chatgate/domain/entities"
	"github.com/satriahrh/chatgate/domain/repositories"
)

// TestStore_Integration requires a running MongoDB instance (skipped if MONGODB_URI is not set)
func TestStore_Integration(t *testing.T) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		t.Skip("Skipping MongoDB integration test - MONGODB_URI not set")
	}

	ctx := context.Background()
	logger, _ := zap.NewDevelopment()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(ctx)

	testDB := client.Database("chatgate_test")
	defer testDB.Drop(ctx)

	store := NewStoreFromDatabase(testDB, logger)

	t.Run("SessionLifecycle", func(t *testing.T) {
		model := "gpt-4o"
		session, err := store.Sessions.Create(ctx, "user-1", "", &model)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if session.Title != entities.DefaultSessionTitle {
			t.Errorf("Expected default title, got %s", session.Title)
		}

		if _, err := store.Sessions.GetByID(ctx, "user-2", session.ID); !errors.Is(err, repositories.ErrNotFound) {
			t.Errorf("Expected ErrNotFound for another user, got %v", err)
		}

		title := "Renamed"
		updated, err := store.Sessions.Update(ctx, "user-1", session.ID, entities.SessionPatch{Title: &title})
		if err != nil {
			t.Fatalf("Failed to update session: %v", err)
		}
		if updated.Title != "Renamed" {
			t.Errorf("Expected title Renamed, got %s", updated.Title)
		}

		if err := store.Sessions.Archive(ctx, "user-1", session.ID); err != nil {
			t.Fatalf("Failed to archive session: %v", err)
		}
		list, err := store.Sessions.ListByUser(ctx, "user-1", 10)
		if err != nil {
			t.Fatalf("Failed to list sessions: %v", err)
		}
		if len(list) != 0 {
			t.Errorf("Archived sessions should not be listed, got %d", len(list))
		}
	})

	t.Run("MessagesBumpSession", func(t *testing.T) {
		session, err := store.Sessions.Create(ctx, "user-3", "Chat", nil)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}

		for _, content := range []string{"hi", "hello"} {
			msg := entities.NewMessageRecord(session.ID, entities.NewMessage(entities.RoleUser, content))
			if err := store.Messages.Save(ctx, msg); err != nil {
				t.Fatalf("Failed to save message: %v", err)
			}
		}

		messages, err := store.Messages.ListBySession(ctx, session.ID, 0)
		if err != nil {
			t.Fatalf("Failed to list messages: %v", err)
		}
		if len(messages) != 2 || messages[0].Content != "hi" {
			t.Errorf("Expected messages oldest first, got %+v", messages)
		}

		reloaded, _ := store.Sessions.GetByID(ctx, "user-3", session.ID)
		if reloaded.MessageCount != 2 {
			t.Errorf("Expected message_count 2, got %d", reloaded.MessageCount)
		}

		if err := store.Sessions.Delete(ctx, "user-3", session.ID); err != nil {
			t.Fatalf("Failed to delete session: %v", err)
		}
		messages, _ = store.Messages.ListBySession(ctx, session.ID, 0)
		if len(messages) != 0 {
			t.Errorf("Deleting a session should remove its messages, got %d", len(messages))
		}
	})

	t.Run("APIKeyUpsert", func(t *testing.T) {
		if _, err := store.APIKeys.Save(ctx, "user-4", entities.ProviderOpenAI, "sk-1"); err != nil {
			t.Fatalf("Failed to save key: %v", err)
		}
		if _, err := store.APIKeys.Save(ctx, "user-4", entities.ProviderOpenAI, "sk-2"); err != nil {
			t.Fatalf("Failed to replace key: %v", err)
		}

		keys, _ := store.APIKeys.ListByUser(ctx, "user-4")
		if len(keys) != 1 {
			t.Fatalf("Expected 1 key per provider, got %d", len(keys))
		}
		active, err := store.APIKeys.GetActive(ctx, "user-4", entities.ProviderOpenAI)
		if err != nil || active.Key != "sk-2" {
			t.Errorf("Expected replaced key sk-2, got %v / %v", active, err)
		}
	})

	t.Run("SettingsDefaults", func(t *testing.T) {
		collapsed := true
		settings, err := store.Settings.Update(ctx, "user-5", entities.SettingsPatch{SidebarCollapsed: &collapsed})
		if err != nil {
			t.Fatalf("Failed to update settings: %v", err)
		}
		if settings.DefaultMaxTokens != entities.DefaultMaxTokens || !settings.SidebarCollapsed {
			t.Errorf("Unexpected settings %+v", settings)
		}
	})
}
