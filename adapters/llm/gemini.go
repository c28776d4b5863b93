package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/chatgate/domain"
	"github.com/satriahrh/chatgate/domain/entities"
)

// Continuation is a vendor-held conversation that remembers earlier turns
type Continuation interface {
	SendMessage(ctx context.Context, message string) (string, error)
}

// ContinuationStarter opens a fresh continuation seeded with history
type ContinuationStarter func(ctx context.Context, history []*genai.Content) (Continuation, error)

// GeminiProvider implements ChatProvider using Gemini's stateful chat API.
//
// The provider owns at most one active continuation. A new one is started,
// seeded with the translated history, when none exists yet or when the caller
// supplies a non-empty history. An empty history reuses the active continuation.
type GeminiProvider struct {
	cfg     entities.ProviderConfig
	start   ContinuationStarter
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	active Continuation
	starts int
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(cfg entities.ProviderConfig, opts Options) (*GeminiProvider, error) {
	opts = opts.withDefaults()

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.Credential,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.HTTPClient != nil {
		clientConfig.HTTPClient = opts.HTTPClient
	}
	if u := opts.baseURL(cfg.Kind); u != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: u}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, domain.NewProviderError(cfg.Kind.DisplayName(), fmt.Errorf("failed to create Gemini client: %w", err))
	}

	start := func(ctx context.Context, history []*genai.Content) (Continuation, error) {
		chat, err := client.Chats.Create(ctx, cfg.Model, nil, history)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat: %w", err)
		}
		return &genaiContinuation{chat: chat}, nil
	}

	return NewGeminiProviderWithStarter(cfg, start, opts), nil
}

// NewGeminiProviderWithStarter creates a Gemini provider that opens continuations with start
func NewGeminiProviderWithStarter(cfg entities.ProviderConfig, start ContinuationStarter, opts Options) *GeminiProvider {
	opts = opts.withDefaults()
	return &GeminiProvider{
		cfg:     cfg,
		start:   start,
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
}

// Config implements repositories.ChatProvider
func (p *GeminiProvider) Config() entities.ProviderConfig {
	return p.cfg
}

// Chat implements repositories.ChatProvider
func (p *GeminiProvider) Chat(ctx context.Context, message string, history []entities.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, cancel := withCallTimeout(ctx, p.timeout)
	defer cancel()

	vendor := p.cfg.Kind.DisplayName()

	if p.active == nil || len(history) > 0 {
		// a supplied history always retires the current continuation
		p.active = nil
		continuation, err := p.start(ctx, toGeminiHistory(history))
		if err != nil {
			p.logger.Error("Failed to start Gemini continuation", zap.Error(err))
			return "", domain.NewProviderError(vendor, err)
		}
		p.active = continuation
		p.starts++

		p.logger.Debug("Gemini continuation started",
			zap.String("model", p.cfg.Model),
			zap.Int("seeded_turns", len(history)))
	}

	reply, err := p.active.SendMessage(ctx, message)
	if err != nil {
		p.logger.Error("Failed to send message in Gemini continuation", zap.Error(err))
		return "", domain.NewProviderError(vendor, err)
	}

	return reply, nil
}

// HasContinuation reports whether a continuation is currently active
func (p *GeminiProvider) HasContinuation() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active != nil
}

// ContinuationStarts returns how many continuations the provider has opened
func (p *GeminiProvider) ContinuationStarts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.starts
}

type genaiContinuation struct {
	chat *genai.Chat
}

func (c *genaiContinuation) SendMessage(ctx context.Context, message string) (string, error) {
	resp, err := c.chat.SendMessage(ctx, genai.Part{Text: message})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", errEmptyResponse
	}
	return text, nil
}

// toGeminiHistory converts chat history to Gemini turns; only user stays user, everything else is the model
func toGeminiHistory(messages []entities.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := genai.Role(genai.RoleModel)
		if msg.Role == entities.RoleUser {
			role = genai.RoleUser
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return contents
}
