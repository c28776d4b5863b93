package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/satriahrh/chatgate/domain/entities"
)

// MockCall records one call made to a MockProvider
type MockCall struct {
	Message string
	History []entities.Message
}

// MockProvider is an in-process ChatProvider for development and tests
type MockProvider struct {
	cfg entities.ProviderConfig

	// Reply builds the response; defaults to echoing the message
	Reply func(message string, history []entities.Message) (string, error)

	mu    sync.Mutex
	calls []MockCall
}

// NewMockProvider creates a new mock provider
func NewMockProvider(cfg entities.ProviderConfig) *MockProvider {
	return &MockProvider{cfg: cfg}
}

// Config implements repositories.ChatProvider
func (m *MockProvider) Config() entities.ProviderConfig {
	return m.cfg
}

// Chat implements repositories.ChatProvider
func (m *MockProvider) Chat(ctx context.Context, message string, history []entities.Message) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{
		Message: message,
		History: append([]entities.Message(nil), history...),
	})
	reply := m.Reply
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if reply != nil {
		return reply(message, history)
	}
	return fmt.Sprintf("Echo: %s", message), nil
}

// Calls returns every call made so far
func (m *MockProvider) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}
