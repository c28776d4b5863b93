package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/chatgate/domain"
	"github.com/satriahrh/chatgate/domain/entities"
	"github.com/satriahrh/chatgate/domain/repositories"
	"github.com/satriahrh/chatgate/internal/session"
)

const persistTimeout = 5 * time.Second

// ConfigureInput is the request to bind a provider to a session
type ConfigureInput struct {
	Provider  string
	APIKey    string
	Model     string
	SessionID string
}

// ConfigureResult describes the session that was configured
type ConfigureResult struct {
	Provider  entities.ProviderKind
	Model     string
	SessionID string
	RecordID  string
}

// ChatInput is one user turn
type ChatInput struct {
	Message   string
	SessionID string
	// History replaces the stored history for this provider call only
	History []entities.Message
}

// Defaults describes the server-side default provider
type Defaults struct {
	HasDefault         bool                    `json:"has_default"`
	DefaultProvider    *string                 `json:"default_provider"`
	DefaultModel       *string                 `json:"default_model"`
	AvailableProviders []entities.ProviderKind `json:"available_providers"`
}

// ChatService orchestrates provider configuration and chat exchanges
type ChatService struct {
	registry *session.Registry
	factory  repositories.ProviderFactory
	logger   *zap.Logger

	sessions repositories.SessionRepository
	messages repositories.MessageRepository
	apiKeys  repositories.APIKeyRepository

	defaultKind        entities.ProviderKind
	defaultModel       string
	defaultCredentials map[entities.ProviderKind]string
}

// Option configures a ChatService
type Option func(*ChatService)

// WithPersistence mirrors configured sessions and their exchanges into durable storage
func WithPersistence(sessions repositories.SessionRepository, messages repositories.MessageRepository) Option {
	return func(s *ChatService) {
		s.sessions = sessions
		s.messages = messages
	}
}

// WithCredentialStore lets configure fall back to the user's stored active key
func WithCredentialStore(apiKeys repositories.APIKeyRepository) Option {
	return func(s *ChatService) {
		s.apiKeys = apiKeys
	}
}

// WithDefaultCredential registers a server-side credential for kind
func WithDefaultCredential(kind entities.ProviderKind, model, credential string) Option {
	return func(s *ChatService) {
		if credential == "" {
			return
		}
		if s.defaultKind == "" {
			s.defaultKind = kind
			s.defaultModel = model
		}
		s.defaultCredentials[kind] = credential
	}
}

// NewChatService creates a new chat service
func NewChatService(registry *session.Registry, factory repositories.ProviderFactory, logger *zap.Logger, opts ...Option) *ChatService {
	s := &ChatService{
		registry:           registry,
		factory:            factory,
		logger:             logger,
		defaultCredentials: make(map[entities.ProviderKind]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configure builds a provider and installs it for the session, discarding previous history
func (s *ChatService) Configure(ctx context.Context, userID string, in ConfigureInput) (*ConfigureResult, error) {
	if userID == "" {
		return nil, &domain.UnresolvedIdentityError{}
	}
	if strings.TrimSpace(in.Provider) == "" {
		return nil, domain.NewValidationError("provider", "Missing required fields: provider, api_key, model")
	}
	if strings.TrimSpace(in.Model) == "" {
		return nil, domain.NewValidationError("model", "Missing required fields: provider, api_key, model")
	}

	kind, ok := entities.ParseProviderKind(in.Provider)
	if !ok {
		return nil, &domain.UnsupportedProviderError{Provider: in.Provider}
	}

	credential := s.resolveCredential(ctx, userID, kind, in.APIKey)
	if credential == "" {
		return nil, domain.NewValidationError("api_key", "Missing required fields: provider, api_key, model")
	}

	provider, err := s.factory(entities.ProviderConfig{Kind: kind, Credential: credential, Model: in.Model})
	if err != nil {
		return nil, err
	}

	snap := s.registry.Configure(userID, in.SessionID, provider)

	result := &ConfigureResult{
		Provider:  kind,
		Model:     in.Model,
		SessionID: snap.Key.SessionID,
	}

	if s.sessions != nil {
		model := in.Model
		record, err := s.sessions.Create(ctx, userID, entities.DefaultSessionTitle, &model)
		if err != nil {
			s.logger.Warn("Failed to create durable session",
				zap.String("userID", userID),
				zap.String("sessionID", snap.Key.SessionID),
				zap.Error(err))
		} else if s.registry.SetRecordID(snap, record.ID) {
			result.RecordID = record.ID
		} else {
			s.logger.Info("Session reconfigured before its record was bound",
				zap.String("userID", userID),
				zap.String("sessionID", snap.Key.SessionID),
				zap.String("recordID", record.ID))
		}
	}

	s.logger.Info("Session configured",
		zap.String("userID", userID),
		zap.String("sessionID", snap.Key.SessionID),
		zap.String("provider", string(kind)),
		zap.String("model", in.Model))

	return result, nil
}

func (s *ChatService) resolveCredential(ctx context.Context, userID string, kind entities.ProviderKind, supplied string) string {
	if supplied = strings.TrimSpace(supplied); supplied != "" {
		return supplied
	}

	if s.apiKeys != nil {
		key, err := s.apiKeys.GetActive(ctx, userID, kind)
		switch {
		case err == nil && key.Key != "":
			return key.Key
		case err != nil && !errors.Is(err, repositories.ErrNotFound):
			s.logger.Warn("Failed to read stored API key",
				zap.String("userID", userID),
				zap.String("provider", string(kind)),
				zap.Error(err))
		}
	}

	return s.defaultCredentials[kind]
}

// prepare validates a chat turn and snapshots the session it targets
func (s *ChatService) prepare(userID string, in ChatInput) (session.Session, []entities.Message, error) {
	if userID == "" {
		return session.Session{}, nil, &domain.UnresolvedIdentityError{}
	}
	if in.Message == "" {
		return session.Session{}, nil, domain.NewValidationError("message", "Message is required")
	}

	snap, ok := s.registry.Lookup(userID, in.SessionID)
	if !ok {
		return session.Session{}, nil, &domain.SessionNotConfiguredError{SessionID: session.NewKey(userID, in.SessionID).SessionID}
	}

	history := snap.History
	if len(in.History) > 0 {
		history = in.History
	}
	return snap, history, nil
}

// Send runs one blocking exchange and returns the reply
func (s *ChatService) Send(ctx context.Context, userID string, in ChatInput) (string, error) {
	snap, history, err := s.prepare(userID, in)
	if err != nil {
		return "", err
	}

	reply, err := snap.Provider.Chat(ctx, in.Message, history)
	if err != nil {
		s.logger.Error("Provider call failed",
			zap.String("userID", userID),
			zap.String("sessionID", snap.Key.SessionID),
			zap.Error(err))
		return "", err
	}

	s.commit(ctx, snap, in.Message, reply)
	return reply, nil
}

// commit appends the exchange to the session and mirrors it to durable storage
func (s *ChatService) commit(ctx context.Context, snap session.Session, message, reply string) {
	model := snap.Provider.Config().Model
	userMsg := entities.NewMessage(entities.RoleUser, message)
	assistantMsg := entities.NewMessage(entities.RoleAssistant, reply)
	assistantMsg.Model = &model

	if !s.registry.CommitExchange(snap, userMsg, assistantMsg) {
		s.logger.Warn("Session replaced during exchange, reply not committed",
			zap.String("userID", snap.Key.UserID),
			zap.String("sessionID", snap.Key.SessionID))
		return
	}

	if s.messages == nil || snap.RecordID == "" {
		return
	}

	// persist even when the caller has gone away
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	for _, msg := range []entities.Message{userMsg, assistantMsg} {
		if err := s.messages.Save(ctx, entities.NewMessageRecord(snap.RecordID, msg)); err != nil {
			s.logger.Warn("Failed to persist message",
				zap.String("recordID", snap.RecordID),
				zap.String("role", string(msg.Role)),
				zap.Error(err))
		}
	}
}

// History returns a copy of the session's history
func (s *ChatService) History(userID, sessionID string) ([]entities.Message, error) {
	snap, err := s.lookup(userID, sessionID)
	if err != nil {
		return nil, err
	}
	return snap.History, nil
}

// Clear empties the session's history and keeps its provider
func (s *ChatService) Clear(userID, sessionID string) (string, error) {
	snap, err := s.lookup(userID, sessionID)
	if err != nil {
		return "", err
	}
	s.registry.ClearHistory(userID, snap.Key.SessionID)
	return snap.Key.SessionID, nil
}

// ListSessions returns the user's live sessions
func (s *ChatService) ListSessions(userID string) ([]session.Summary, error) {
	if userID == "" {
		return nil, &domain.UnresolvedIdentityError{}
	}
	return s.registry.ListSessions(userID), nil
}

func (s *ChatService) lookup(userID, sessionID string) (session.Session, error) {
	if userID == "" {
		return session.Session{}, &domain.UnresolvedIdentityError{}
	}
	snap, ok := s.registry.Lookup(userID, sessionID)
	if !ok {
		return session.Session{}, &domain.SessionNotFoundError{SessionID: session.NewKey(userID, sessionID).SessionID}
	}
	return snap, nil
}

// Defaults reports the server-side default provider, if any
func (s *ChatService) Defaults() Defaults {
	d := Defaults{AvailableProviders: AvailableProviders()}
	if s.defaultKind == "" {
		return d
	}
	provider := string(s.defaultKind)
	model := s.defaultModel
	d.HasDefault = true
	d.DefaultProvider = &provider
	d.DefaultModel = &model
	return d
}

// AvailableProviders lists every provider kind that can be configured
func AvailableProviders() []entities.ProviderKind {
	return append([]entities.ProviderKind(nil), entities.ProviderKinds...)
}
