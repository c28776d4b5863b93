package repositories

import (
	"context"

	"github.com/satriahrh/chatgate/domain/entities"
)

// ChatProvider abstracts any chat/LLM vendor backend
type ChatProvider interface {
	// Chat sends message after history and returns the model's reply
	Chat(ctx context.Context, message string, history []entities.Message) (string, error)
	// Config returns the configuration the provider was built from
	Config() entities.ProviderConfig
}

// ProviderFactory builds a ChatProvider for a configuration
type ProviderFactory func(cfg entities.ProviderConfig) (ChatProvider, error)
