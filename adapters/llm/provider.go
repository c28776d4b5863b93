package llm

import (
	"context"
	"errors"
	"net/http"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/satriahrh/chatgate/domain"
	"github.com/satriahrh/chatgate/domain/entities"
	"github.com/satriahrh/chatgate/domain/repositories"
)

const (
	defaultTimeout = 60 * time.Second

	// Groq and Anthropic replies are capped at this many tokens
	cappedMaxTokens = 512
	groqTemperature = 0.7

	groqBaseURL = "https://api.groq.com/openai/v1"
)

var errEmptyResponse = errors.New("no content in response")

// Options configures how provider adapters reach their vendors
type Options struct {
	// BaseURLs overrides the vendor endpoint per provider kind
	BaseURLs map[entities.ProviderKind]string
	// HTTPClient is used for every vendor call when set
	HTTPClient *http.Client
	// Timeout bounds a single vendor call
	Timeout time.Duration
	Logger  *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

func (o Options) baseURL(kind entities.ProviderKind) string {
	if u, ok := o.BaseURLs[kind]; ok && u != "" {
		return u
	}
	if kind == entities.ProviderGroq {
		return groqBaseURL
	}
	return ""
}

// NewProvider builds the adapter matching cfg.Kind.
// The kind is matched case-insensitively; unknown kinds fail before anything is constructed.
func NewProvider(cfg entities.ProviderConfig, opts Options) (repositories.ChatProvider, error) {
	kind, ok := entities.ParseProviderKind(string(cfg.Kind))
	if !ok {
		return nil, &domain.UnsupportedProviderError{Provider: string(cfg.Kind)}
	}
	cfg.Kind = kind
	opts = opts.withDefaults()

	switch kind {
	case entities.ProviderOpenAI:
		return asProvider(NewOpenAIProvider(cfg, opts))
	case entities.ProviderGroq:
		return asProvider(NewGroqProvider(cfg, opts))
	case entities.ProviderAnthropic:
		return asProvider(NewAnthropicProvider(cfg, opts))
	case entities.ProviderGemini:
		return asProvider(NewGeminiProvider(cfg, opts))
	}
	return nil, &domain.UnsupportedProviderError{Provider: string(cfg.Kind)}
}

// asProvider keeps a failed constructor from leaking a typed nil into the interface
func asProvider[P repositories.ChatProvider](p P, err error) (repositories.ChatProvider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

// NewFactory returns a ProviderFactory bound to opts
func NewFactory(opts Options) repositories.ProviderFactory {
	return func(cfg entities.ProviderConfig) (repositories.ChatProvider, error) {
		return NewProvider(cfg, opts)
	}
}

func withCallTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

const previewRunes = 50

func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	return string([]rune(s)[:previewRunes])
}
