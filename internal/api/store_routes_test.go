package api

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/satriahrh/chatgate/adapters/sqlite"
	"github.com/satriahrh/chatgate/domain/entities"
	"github.com/satriahrh/chatgate/domain/repositories"
	"github.com/satriahrh/chatgate/usecase"
)

func newStore(t *testing.T) *repositories.Store {
	t.Helper()
	store, err := sqlite.NewStore(sqlite.MemoryPath, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close(context.Background()) })
	return store
}

func TestStoreRoutes_AbsentWithoutStore(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodGet, "/api/db/sessions", "user-1", nil)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestStoreRoutes_Sessions(t *testing.T) {
	s := newTestServer(t, newStore(t))

	rec := s.do(t, http.MethodPost, "/api/db/sessions", "user-1", map[string]string{})
	expectStatus(t, rec, http.StatusOK)
	var created entities.SessionRecord
	decode(t, rec, &created)
	if created.ID == "" || created.Title != "New Chat" || created.UserID != "user-1" {
		t.Errorf("Unexpected session %+v", created)
	}

	rec = s.do(t, http.MethodGet, "/api/db/sessions/"+created.ID, "user-1", nil)
	expectStatus(t, rec, http.StatusOK)

	rec = s.do(t, http.MethodGet, "/api/db/sessions/"+created.ID, "user-2", nil)
	expectStatus(t, rec, http.StatusNotFound)

	rec = s.do(t, http.MethodPut, "/api/db/sessions/"+created.ID, "user-1", map[string]string{"title": "Renamed"})
	expectStatus(t, rec, http.StatusOK)
	var updated struct {
		Message string                 `json:"message"`
		Data    entities.SessionRecord `json:"data"`
	}
	decode(t, rec, &updated)
	if updated.Message != "Session updated" || updated.Data.Title != "Renamed" {
		t.Errorf("Unexpected update response %+v", updated)
	}

	rec = s.do(t, http.MethodGet, "/api/db/sessions", "user-1", nil)
	expectStatus(t, rec, http.StatusOK)
	var list []entities.SessionRecord
	decode(t, rec, &list)
	if len(list) != 1 {
		t.Errorf("Expected 1 session, got %d", len(list))
	}

	rec = s.do(t, http.MethodPost, "/api/db/sessions/"+created.ID+"/archive", "user-1", nil)
	expectStatus(t, rec, http.StatusOK)
	var archived MessageResponse
	decode(t, rec, &archived)
	if archived.Message != "Session archived" {
		t.Errorf("Unexpected archive response %+v", archived)
	}

	rec = s.do(t, http.MethodGet, "/api/db/sessions", "user-1", nil)
	decode(t, rec, &list)
	if len(list) != 0 {
		t.Errorf("Archived sessions should not be listed, got %d", len(list))
	}

	rec = s.do(t, http.MethodDelete, "/api/db/sessions/"+created.ID, "user-2", nil)
	expectStatus(t, rec, http.StatusNotFound)
	rec = s.do(t, http.MethodDelete, "/api/db/sessions/"+created.ID, "user-1", nil)
	expectStatus(t, rec, http.StatusOK)
}

func TestStoreRoutes_MessagesOwnership(t *testing.T) {
	s := newTestServer(t, newStore(t))

	rec := s.do(t, http.MethodPost, "/api/db/sessions", "owner", map[string]string{"title": "mine"})
	var owned entities.SessionRecord
	decode(t, rec, &owned)

	rec = s.do(t, http.MethodPost, "/api/db/messages", "owner", map[string]interface{}{
		"session_id":  owned.ID,
		"role":        "user",
		"content":     "hello",
		"tokens_used": 3,
	})
	expectStatus(t, rec, http.StatusOK)
	var saved entities.MessageRecord
	decode(t, rec, &saved)
	if saved.ID == "" || saved.TokensUsed == nil || *saved.TokensUsed != 3 {
		t.Errorf("Unexpected saved message %+v", saved)
	}

	forbidden := []struct {
		name   string
		method string
		path   string
		body   interface{}
	}{
		{"list messages", http.MethodGet, "/api/db/sessions/" + owned.ID + "/messages", nil},
		{"clear session", http.MethodPost, "/api/db/sessions/" + owned.ID + "/clear", nil},
		{"save message", http.MethodPost, "/api/db/messages", map[string]string{"session_id": owned.ID, "role": "user", "content": "intruder"}},
		{"delete message", http.MethodDelete, "/api/db/messages/" + saved.ID, nil},
	}
	for _, tc := range forbidden {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, tc.method, tc.path, "intruder", tc.body)
			expectStatus(t, rec, http.StatusForbidden)
			var errResp ErrorResponse
			decode(t, rec, &errResp)
			if errResp.Message != "Session not found or unauthorized" {
				t.Errorf("Unexpected message %s", errResp.Message)
			}
		})
	}

	rec = s.do(t, http.MethodPost, "/api/db/messages", "owner", map[string]string{"session_id": owned.ID, "role": "robot", "content": "beep"})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = s.do(t, http.MethodGet, "/api/db/sessions/"+owned.ID+"/messages", "owner", nil)
	expectStatus(t, rec, http.StatusOK)
	var messages []entities.MessageRecord
	decode(t, rec, &messages)
	if len(messages) != 1 || messages[0].Content != "hello" {
		t.Errorf("Unexpected messages %+v", messages)
	}

	rec = s.do(t, http.MethodDelete, "/api/db/messages/"+saved.ID, "owner", nil)
	expectStatus(t, rec, http.StatusOK)
	rec = s.do(t, http.MethodDelete, "/api/db/messages/"+saved.ID, "owner", nil)
	expectStatus(t, rec, http.StatusNotFound)

	rec = s.do(t, http.MethodPost, "/api/db/sessions/"+owned.ID+"/clear", "owner", nil)
	expectStatus(t, rec, http.StatusOK)
}

func TestStoreRoutes_Settings(t *testing.T) {
	s := newTestServer(t, newStore(t))

	rec := s.do(t, http.MethodGet, "/api/db/settings", "user-1", nil)
	expectStatus(t, rec, http.StatusNotFound)

	rec = s.do(t, http.MethodPut, "/api/db/settings", "user-1", map[string]interface{}{"default_temperature": 0.3})
	expectStatus(t, rec, http.StatusOK)

	rec = s.do(t, http.MethodPut, "/api/db/settings?sidebar_collapsed=true", "user-1", nil)
	expectStatus(t, rec, http.StatusOK)

	rec = s.do(t, http.MethodGet, "/api/db/settings", "user-1", nil)
	expectStatus(t, rec, http.StatusOK)
	var settings entities.UserSettings
	decode(t, rec, &settings)
	if settings.DefaultTemperature != 0.3 || !settings.SidebarCollapsed || settings.DefaultMaxTokens != entities.DefaultMaxTokens {
		t.Errorf("Unexpected settings %+v", settings)
	}

	rec = s.do(t, http.MethodPut, "/api/db/settings?default_max_tokens=lots", "user-1", nil)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestStoreRoutes_APIKeys(t *testing.T) {
	s := newTestServer(t, newStore(t))

	rec := s.do(t, http.MethodPost, "/api/db/api-keys", "user-1", map[string]string{"provider": "openai"})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = s.do(t, http.MethodPost, "/api/db/api-keys", "user-1", map[string]string{"provider": "cohere", "api_key": "k"})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = s.do(t, http.MethodPost, "/api/db/api-keys?provider=openai&api_key=sk-secret-value", "user-1", nil)
	expectStatus(t, rec, http.StatusOK)
	if strings.Contains(rec.Body.String(), "sk-secret-value") {
		t.Error("Stored key should not be echoed back")
	}
	var saved struct {
		Data entities.APIKey `json:"data"`
	}
	decode(t, rec, &saved)

	rec = s.do(t, http.MethodGet, "/api/db/api-keys", "user-1", nil)
	expectStatus(t, rec, http.StatusOK)
	var keys []entities.APIKey
	decode(t, rec, &keys)
	if len(keys) != 1 || keys[0].Provider != entities.ProviderOpenAI {
		t.Errorf("Unexpected keys %+v", keys)
	}

	rec = s.do(t, http.MethodDelete, "/api/db/api-keys/"+saved.Data.ID, "user-2", nil)
	expectStatus(t, rec, http.StatusNotFound)
	rec = s.do(t, http.MethodDelete, "/api/db/api-keys/"+saved.Data.ID, "user-1", nil)
	expectStatus(t, rec, http.StatusOK)
}

func TestChatMirrorsIntoStore(t *testing.T) {
	store := newStore(t)
	s := newTestServer(t, store,
		usecase.WithPersistence(store.Sessions, store.Messages),
		usecase.WithCredentialStore(store.APIKeys))

	rec := s.do(t, http.MethodPost, "/api/db/api-keys", "user-1", map[string]string{"provider": "groq", "api_key": "gsk-stored"})
	expectStatus(t, rec, http.StatusOK)

	// no api_key: the stored one is used
	rec = s.do(t, http.MethodPost, "/api/configure", "user-1", map[string]string{"provider": "groq", "model": "llama3"})
	expectStatus(t, rec, http.StatusOK)
	var configured ConfigureResponse
	decode(t, rec, &configured)
	if configured.RecordID == "" {
		t.Fatal("Expected configure to create a durable session")
	}

	rec = s.do(t, http.MethodPost, "/api/chat", "user-1", map[string]string{"message": "remember me"})
	expectStatus(t, rec, http.StatusOK)

	rec = s.do(t, http.MethodGet, "/api/db/sessions/"+configured.RecordID+"/messages", "user-1", nil)
	expectStatus(t, rec, http.StatusOK)
	var messages []entities.MessageRecord
	decode(t, rec, &messages)
	if len(messages) != 2 {
		t.Fatalf("Expected the exchange to be mirrored, got %d messages", len(messages))
	}
	if messages[0].Role != entities.RoleUser || messages[1].Content != "Echo: remember me" {
		t.Errorf("Unexpected mirrored messages %+v", messages)
	}
	if messages[1].Model == nil || *messages[1].Model != "llama3" {
		t.Errorf("Expected assistant message to carry the model, got %v", messages[1].Model)
	}
}
