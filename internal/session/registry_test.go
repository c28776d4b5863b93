package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/satriahrh/chatgate/adapters/llm"
	"github.com/satriahrh/chatgate/domain/entities"
)

func mockProvider(kind entities.ProviderKind, model string) *llm.MockProvider {
	return llm.NewMockProvider(entities.ProviderConfig{Kind: kind, Model: model})
}

func exchange(n int) (entities.Message, entities.Message) {
	return entities.NewMessage(entities.RoleUser, fmt.Sprintf("q%d", n)),
		entities.NewMessage(entities.RoleAssistant, fmt.Sprintf("a%d", n))
}

func TestRegistry_ConfigureAndLookup(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Lookup("u1", "s1"); ok {
		t.Fatal("Expected no session before configure")
	}

	provider := mockProvider(entities.ProviderOpenAI, "gpt-4o")
	r.Configure("u1", "s1", provider)

	snap, ok := r.Lookup("u1", "s1")
	if !ok {
		t.Fatal("Expected session after configure")
	}
	if snap.Provider != provider {
		t.Error("Expected configured provider in snapshot")
	}
	if len(snap.History) != 0 {
		t.Errorf("Expected empty history, got %d", len(snap.History))
	}
	if snap.Generation == "" {
		t.Error("Expected a generation on configured session")
	}
}

func TestRegistry_DefaultSessionID(t *testing.T) {
	r := NewRegistry()
	r.Configure("u1", "", mockProvider(entities.ProviderGroq, "m"))

	if _, ok := r.Lookup("u1", DefaultSessionID); !ok {
		t.Error("Empty session id should resolve to the default session")
	}
}

func TestRegistry_ReconfigureDiscardsHistory(t *testing.T) {
	r := NewRegistry()
	r.Configure("u1", "s1", mockProvider(entities.ProviderOpenAI, "m1"))
	u, a := exchange(1)
	r.AppendExchange("u1", "s1", u, a)

	replacement := mockProvider(entities.ProviderAnthropic, "m2")
	r.Configure("u1", "s1", replacement)

	snap, _ := r.Lookup("u1", "s1")
	if len(snap.History) != 0 {
		t.Errorf("Expected history discarded on reconfigure, got %d messages", len(snap.History))
	}
	if snap.Provider != replacement {
		t.Error("Expected the replacement provider")
	}
}

func TestRegistry_SnapshotIsolation(t *testing.T) {
	r := NewRegistry()
	r.Configure("u1", "s1", mockProvider(entities.ProviderOpenAI, "m1"))
	u, a := exchange(1)
	r.AppendExchange("u1", "s1", u, a)

	snap, _ := r.Lookup("u1", "s1")
	snap.History[0].Content = "mutated"
	snap.History = append(snap.History, u)

	again, _ := r.Lookup("u1", "s1")
	if again.History[0].Content != "q1" {
		t.Errorf("Snapshot mutation leaked into registry: %q", again.History[0].Content)
	}
	if len(again.History) != 2 {
		t.Errorf("Expected 2 messages, got %d", len(again.History))
	}
}

func TestRegistry_AbsentSessionOperationsAreNoOps(t *testing.T) {
	r := NewRegistry()
	u, a := exchange(1)

	r.AppendExchange("u1", "missing", u, a)
	r.ClearHistory("u1", "missing")
	if r.SetRecordID(Session{Key: NewKey("u1", "missing")}, "rec") {
		t.Error("SetRecordID should report absent session")
	}
	if r.Len() != 0 {
		t.Errorf("No session should have been created, got %d", r.Len())
	}
}

func TestRegistry_ClearHistoryKeepsProvider(t *testing.T) {
	r := NewRegistry()
	provider := mockProvider(entities.ProviderGemini, "gemini-2.0-flash")
	r.Configure("u1", "s1", provider)
	u, a := exchange(1)
	r.AppendExchange("u1", "s1", u, a)

	r.ClearHistory("u1", "s1")

	snap, ok := r.Lookup("u1", "s1")
	if !ok {
		t.Fatal("Session should survive clear")
	}
	if len(snap.History) != 0 {
		t.Errorf("Expected empty history, got %d", len(snap.History))
	}
	if snap.Provider != provider {
		t.Error("Provider should be retained after clear")
	}
}

func TestRegistry_CommitExchangeGeneration(t *testing.T) {
	r := NewRegistry()
	r.Configure("u1", "s1", mockProvider(entities.ProviderOpenAI, "m1"))
	snap, _ := r.Lookup("u1", "s1")

	u, a := exchange(1)
	if !r.CommitExchange(snap, u, a) {
		t.Fatal("Commit against current generation should succeed")
	}

	r.Configure("u1", "s1", mockProvider(entities.ProviderOpenAI, "m2"))
	u2, a2 := exchange(2)
	if r.CommitExchange(snap, u2, a2) {
		t.Error("Commit against a replaced session should be dropped")
	}

	current, _ := r.Lookup("u1", "s1")
	if len(current.History) != 0 {
		t.Errorf("Reconfigured session should stay empty, got %d", len(current.History))
	}
}

func TestRegistry_SetRecordIDGeneration(t *testing.T) {
	r := NewRegistry()
	first := r.Configure("u1", "s1", mockProvider(entities.ProviderOpenAI, "m1"))
	second := r.Configure("u1", "s1", mockProvider(entities.ProviderOpenAI, "m2"))

	if r.SetRecordID(first, "rec-1") {
		t.Error("Record of a replaced session should not be bound")
	}
	if !r.SetRecordID(second, "rec-2") {
		t.Fatal("Record of the current session should be bound")
	}

	current, _ := r.Lookup("u1", "s1")
	if current.RecordID != "rec-2" {
		t.Errorf("Expected rec-2, got %q", current.RecordID)
	}
}

func TestRegistry_CommitSurvivesClear(t *testing.T) {
	r := NewRegistry()
	r.Configure("u1", "s1", mockProvider(entities.ProviderOpenAI, "m1"))
	snap, _ := r.Lookup("u1", "s1")

	r.ClearHistory("u1", "s1")
	u, a := exchange(1)
	if !r.CommitExchange(snap, u, a) {
		t.Error("Clearing keeps the session, commit should still land")
	}
}

func TestRegistry_ListSessionsIsPerUser(t *testing.T) {
	r := NewRegistry()
	r.Configure("u1", "a", mockProvider(entities.ProviderOpenAI, "gpt-4o"))
	r.Configure("u1", "b", mockProvider(entities.ProviderGroq, "llama"))
	r.Configure("u2", "a", mockProvider(entities.ProviderGemini, "gemini"))
	u, a := exchange(1)
	r.AppendExchange("u1", "b", u, a)

	sessions := r.ListSessions("u1")
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions for u1, got %d", len(sessions))
	}

	byID := map[string]Summary{}
	for _, s := range sessions {
		byID[s.SessionID] = s
	}
	if byID["a"].Provider != entities.ProviderOpenAI || byID["a"].Model != "gpt-4o" {
		t.Errorf("Unexpected summary for a: %+v", byID["a"])
	}
	if byID["b"].MessageCount != 2 {
		t.Errorf("Expected 2 messages in b, got %d", byID["b"].MessageCount)
	}

	if got := r.ListSessions("nobody"); len(got) != 0 {
		t.Errorf("Expected no sessions, got %d", len(got))
	}
}

func TestRegistry_UsersAreIsolated(t *testing.T) {
	r := NewRegistry()
	r.Configure("u1", "s1", mockProvider(entities.ProviderOpenAI, "m1"))

	if _, ok := r.Lookup("u2", "s1"); ok {
		t.Error("Another user's session must not be visible")
	}
}

func TestRegistry_ConcurrentAppendsAreNotLost(t *testing.T) {
	r := NewRegistry()
	r.Configure("u1", "s1", mockProvider(entities.ProviderOpenAI, "m1"))

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			snap, _ := r.Lookup("u1", "s1")
			u, a := exchange(n)
			r.CommitExchange(snap, u, a)
		}(i)
	}
	wg.Wait()

	snap, _ := r.Lookup("u1", "s1")
	if len(snap.History) != workers*2 {
		t.Fatalf("Expected %d messages, got %d", workers*2, len(snap.History))
	}
	for i := 0; i < len(snap.History); i += 2 {
		if snap.History[i].Role != entities.RoleUser || snap.History[i+1].Role != entities.RoleAssistant {
			t.Fatalf("Exchange at %d is interleaved", i)
		}
		if snap.History[i].Content[1:] != snap.History[i+1].Content[1:] {
			t.Fatalf("Exchange at %d pairs %q with %q", i, snap.History[i].Content, snap.History[i+1].Content)
		}
	}
}

func TestRegistry_ConcurrentDistinctKeys(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", n%10)
			sessionID := fmt.Sprintf("s-%d", n)
			r.Configure(user, sessionID, mockProvider(entities.ProviderOpenAI, "m"))
			u, a := exchange(n)
			r.AppendExchange(user, sessionID, u, a)
			_ = r.ListSessions(user)
		}(i)
	}
	wg.Wait()

	if r.Len() != 100 {
		t.Errorf("Expected 100 sessions, got %d", r.Len())
	}
	if got := len(r.ListSessions("user-3")); got != 10 {
		t.Errorf("Expected 10 sessions for user-3, got %d", got)
	}
}
