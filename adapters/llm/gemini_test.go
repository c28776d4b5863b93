package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/satriahrh/chatgate/domain"
	"github.com/satriahrh/chatgate/domain/entities"
)

type fakeContinuation struct {
	id       int
	seed     []*genai.Content
	messages []string
	wait     bool
}

func (c *fakeContinuation) SendMessage(ctx context.Context, message string) (string, error) {
	if c.wait {
		<-ctx.Done()
		return "", ctx.Err()
	}
	c.messages = append(c.messages, message)
	return fmt.Sprintf("continuation-%d seeded=%d turn=%d", c.id, len(c.seed), len(c.messages)), nil
}

type fakeStarter struct {
	started []*fakeContinuation
	err     error
	wait    bool
}

func (s *fakeStarter) start(ctx context.Context, history []*genai.Content) (Continuation, error) {
	if s.err != nil {
		return nil, s.err
	}
	c := &fakeContinuation{id: len(s.started) + 1, seed: history, wait: s.wait}
	s.started = append(s.started, c)
	return c, nil
}

var geminiConfig = entities.ProviderConfig{Kind: entities.ProviderGemini, Credential: "key", Model: "gemini-2.0-flash"}

func TestGeminiProvider_ReusesContinuationOnEmptyHistory(t *testing.T) {
	starter := &fakeStarter{}
	provider := NewGeminiProviderWithStarter(geminiConfig, starter.start, Options{})

	if provider.HasContinuation() {
		t.Fatal("Provider should start without a continuation")
	}

	first, err := provider.Chat(context.Background(), "hi", nil)
	if err != nil {
		t.Fatalf("First chat failed: %v", err)
	}
	second, err := provider.Chat(context.Background(), "again", []entities.Message{})
	if err != nil {
		t.Fatalf("Second chat failed: %v", err)
	}

	if provider.ContinuationStarts() != 1 {
		t.Fatalf("Expected 1 continuation, got %d", provider.ContinuationStarts())
	}
	if first != "continuation-1 seeded=0 turn=1" || second != "continuation-1 seeded=0 turn=2" {
		t.Errorf("Expected both turns on the same continuation, got %q and %q", first, second)
	}
	if got := starter.started[0].messages; len(got) != 2 || got[0] != "hi" || got[1] != "again" {
		t.Errorf("Only new messages should be submitted, got %v", got)
	}
}

func TestGeminiProvider_NonEmptyHistoryResetsContinuation(t *testing.T) {
	starter := &fakeStarter{}
	provider := NewGeminiProviderWithStarter(geminiConfig, starter.start, Options{})

	_, _ = provider.Chat(context.Background(), "hi", nil)
	_, _ = provider.Chat(context.Background(), "again", nil)

	history := []entities.Message{
		entities.NewMessage(entities.RoleUser, "q1"),
		entities.NewMessage(entities.RoleAssistant, "a1"),
		entities.NewMessage(entities.RoleSystem, "note"),
	}
	reply, err := provider.Chat(context.Background(), "third", history)
	if err != nil {
		t.Fatalf("Third chat failed: %v", err)
	}

	if provider.ContinuationStarts() != 2 {
		t.Fatalf("Expected continuation reset, got %d starts", provider.ContinuationStarts())
	}
	if reply != "continuation-2 seeded=3 turn=1" {
		t.Errorf("Expected reply from reseeded continuation, got %q", reply)
	}

	seed := starter.started[1].seed
	wantRoles := []string{genai.RoleUser, genai.RoleModel, genai.RoleModel}
	for i, content := range seed {
		if content.Role != wantRoles[i] {
			t.Errorf("Seed turn %d: expected role %s, got %s", i, wantRoles[i], content.Role)
		}
	}
	if seed[0].Parts[0].Text != "q1" {
		t.Errorf("Expected seeded text q1, got %q", seed[0].Parts[0].Text)
	}
}

func TestGeminiProvider_FirstCallSeedsHistory(t *testing.T) {
	starter := &fakeStarter{}
	provider := NewGeminiProviderWithStarter(geminiConfig, starter.start, Options{})

	history := []entities.Message{entities.NewMessage(entities.RoleUser, "earlier")}
	if _, err := provider.Chat(context.Background(), "now", history); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if len(starter.started) != 1 || len(starter.started[0].seed) != 1 {
		t.Errorf("Expected one continuation seeded with one turn")
	}
}

func TestGeminiProvider_StartFailure(t *testing.T) {
	starter := &fakeStarter{err: errors.New("permission denied")}
	provider := NewGeminiProviderWithStarter(geminiConfig, starter.start, Options{})

	_, err := provider.Chat(context.Background(), "hi", nil)
	var providerErr *domain.ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("Expected ProviderError, got %v", err)
	}
	if providerErr.Vendor != "Gemini" {
		t.Errorf("Expected vendor Gemini, got %s", providerErr.Vendor)
	}
	if provider.HasContinuation() {
		t.Error("Failed start should not leave a continuation behind")
	}
}

func TestGeminiProvider_FailedReseedDropsContinuation(t *testing.T) {
	starter := &fakeStarter{}
	provider := NewGeminiProviderWithStarter(geminiConfig, starter.start, Options{})
	ctx := context.Background()

	if _, err := provider.Chat(ctx, "one", nil); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	starter.err = errors.New("unavailable")
	override := []entities.Message{entities.NewMessage(entities.RoleUser, "earlier")}
	if _, err := provider.Chat(ctx, "two", override); err == nil {
		t.Fatal("Expected reseed failure")
	}
	if provider.HasContinuation() {
		t.Error("Failed reseed should not keep the previous continuation")
	}

	starter.err = nil
	reply, err := provider.Chat(ctx, "three", nil)
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if reply != "continuation-2 seeded=0 turn=1" {
		t.Errorf("Expected a fresh continuation, got %q", reply)
	}
	if provider.ContinuationStarts() != 2 {
		t.Errorf("Expected 2 starts, got %d", provider.ContinuationStarts())
	}
}

func TestGeminiProvider_Timeout(t *testing.T) {
	starter := &fakeStarter{wait: true}
	provider := NewGeminiProviderWithStarter(geminiConfig, starter.start, Options{Timeout: 20 * time.Millisecond})

	_, err := provider.Chat(context.Background(), "hi", nil)
	var providerErr *domain.ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("Expected ProviderError, got %v", err)
	}
	if !providerErr.Timeout {
		t.Error("Deadline expiry should surface as a timeout")
	}
}

func TestToGeminiHistory(t *testing.T) {
	contents := toGeminiHistory(nil)
	if len(contents) != 0 {
		t.Errorf("Expected empty history, got %d", len(contents))
	}
}
