package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/satriahrh/chatgate/domain"
	"github.com/satriahrh/chatgate/domain/entities"
)

// CompletionProvider implements ChatProvider for stateless-history vendors.
// Every call resubmits the whole history followed by the new user turn.
type CompletionProvider struct {
	cfg         entities.ProviderConfig
	model       llms.Model
	mapRole     func(entities.Role) llms.ChatMessageType
	callOptions []llms.CallOption
	timeout     time.Duration
	logger      *zap.Logger
}

// NewOpenAIProvider creates a provider for OpenAI chat completions
func NewOpenAIProvider(cfg entities.ProviderConfig, opts Options) (*CompletionProvider, error) {
	opts = opts.withDefaults()
	model, err := newOpenAIModel(cfg, opts)
	if err != nil {
		return nil, domain.NewProviderError(cfg.Kind.DisplayName(), err)
	}

	return &CompletionProvider{
		cfg:     cfg,
		model:   model,
		mapRole: openAIRole,
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}, nil
}

// NewGroqProvider creates a provider for Groq's OpenAI-compatible endpoint
func NewGroqProvider(cfg entities.ProviderConfig, opts Options) (*CompletionProvider, error) {
	opts = opts.withDefaults()
	model, err := newOpenAIModel(cfg, opts)
	if err != nil {
		return nil, domain.NewProviderError(cfg.Kind.DisplayName(), err)
	}

	return &CompletionProvider{
		cfg:     cfg,
		model:   model,
		mapRole: openAIRole,
		callOptions: []llms.CallOption{
			llms.WithTemperature(groqTemperature),
			llms.WithMaxTokens(cappedMaxTokens),
		},
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}, nil
}

// NewAnthropicProvider creates a provider for Anthropic messages with a fixed output cap
func NewAnthropicProvider(cfg entities.ProviderConfig, opts Options) (*CompletionProvider, error) {
	opts = opts.withDefaults()

	anthropicOpts := []anthropic.Option{
		anthropic.WithToken(cfg.Credential),
		anthropic.WithModel(cfg.Model),
	}
	if u := opts.baseURL(cfg.Kind); u != "" {
		anthropicOpts = append(anthropicOpts, anthropic.WithBaseURL(u))
	}
	if opts.HTTPClient != nil {
		anthropicOpts = append(anthropicOpts, anthropic.WithHTTPClient(opts.HTTPClient))
	}

	model, err := anthropic.New(anthropicOpts...)
	if err != nil {
		return nil, domain.NewProviderError(cfg.Kind.DisplayName(), fmt.Errorf("failed to create Anthropic client: %w", err))
	}

	return &CompletionProvider{
		cfg:         cfg,
		model:       model,
		mapRole:     anthropicRole,
		callOptions: []llms.CallOption{llms.WithMaxTokens(cappedMaxTokens)},
		timeout:     opts.Timeout,
		logger:      opts.Logger,
	}, nil
}

func newOpenAIModel(cfg entities.ProviderConfig, opts Options) (*openai.LLM, error) {
	openaiOpts := []openai.Option{
		openai.WithToken(cfg.Credential),
		openai.WithModel(cfg.Model),
	}
	if u := opts.baseURL(cfg.Kind); u != "" {
		openaiOpts = append(openaiOpts, openai.WithBaseURL(u))
	}
	if opts.HTTPClient != nil {
		openaiOpts = append(openaiOpts, openai.WithHTTPClient(opts.HTTPClient))
	}

	model, err := openai.New(openaiOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Kind.DisplayName(), err)
	}
	return model, nil
}

// Config implements repositories.ChatProvider
func (p *CompletionProvider) Config() entities.ProviderConfig {
	return p.cfg
}

// Chat implements repositories.ChatProvider
func (p *CompletionProvider) Chat(ctx context.Context, message string, history []entities.Message) (string, error) {
	ctx, cancel := withCallTimeout(ctx, p.timeout)
	defer cancel()

	vendor := p.cfg.Kind.DisplayName()
	contents := toMessageContents(history, message, p.mapRole)

	resp, err := p.model.GenerateContent(ctx, contents, p.callOptions...)
	if err != nil {
		p.logger.Error("Vendor call failed",
			zap.String("provider", string(p.cfg.Kind)),
			zap.String("model", p.cfg.Model),
			zap.Error(err))
		return "", domain.NewProviderError(vendor, err)
	}

	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", domain.NewProviderError(vendor, errEmptyResponse)
	}

	reply := resp.Choices[0].Content
	p.logger.Debug("Vendor call completed",
		zap.String("provider", string(p.cfg.Kind)),
		zap.String("user_message", preview(message)),
		zap.String("response_preview", preview(reply)),
		zap.Int("history_length", len(history)))

	return reply, nil
}

// toMessageContents normalises history into ordered turns and appends message as the final user turn
func toMessageContents(history []entities.Message, message string, mapRole func(entities.Role) llms.ChatMessageType) []llms.MessageContent {
	contents := make([]llms.MessageContent, 0, len(history)+1)
	for _, msg := range history {
		contents = append(contents, llms.TextParts(mapRole(msg.Role), msg.Content))
	}
	return append(contents, llms.TextParts(llms.ChatMessageTypeHuman, message))
}

func openAIRole(role entities.Role) llms.ChatMessageType {
	switch role {
	case entities.RoleAssistant:
		return llms.ChatMessageTypeAI
	case entities.RoleSystem:
		return llms.ChatMessageTypeSystem
	default:
		return llms.ChatMessageTypeHuman
	}
}

// anthropicRole keeps user turns and treats every other role as the assistant
func anthropicRole(role entities.Role) llms.ChatMessageType {
	if role == entities.RoleUser {
		return llms.ChatMessageTypeHuman
	}
	return llms.ChatMessageTypeAI
}
