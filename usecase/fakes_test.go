package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/satriahrh/chatgate/domain/entities"
	"github.com/satriahrh/chatgate/domain/repositories"
)

type fakeAPIKeys struct {
	keys map[entities.ProviderKind]string
}

func (f *fakeAPIKeys) ListByUser(ctx context.Context, userID string) ([]*entities.APIKey, error) {
	return nil, nil
}

func (f *fakeAPIKeys) GetActive(ctx context.Context, userID string, provider entities.ProviderKind) (*entities.APIKey, error) {
	key, ok := f.keys[provider]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &entities.APIKey{UserID: userID, Provider: provider, Key: key, IsActive: true}, nil
}

func (f *fakeAPIKeys) Save(ctx context.Context, userID string, provider entities.ProviderKind, key string) (*entities.APIKey, error) {
	f.keys[provider] = key
	return &entities.APIKey{UserID: userID, Provider: provider, Key: key, IsActive: true}, nil
}

func (f *fakeAPIKeys) Delete(ctx context.Context, userID, id string) error {
	return nil
}

// fakeStore is a minimal session and message store
type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]*entities.SessionRecord
	messages []*entities.MessageRecord
	failSave bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]*entities.SessionRecord)}
}

type fakeSessions struct{ *fakeStore }

type fakeMessages struct{ *fakeStore }

func (f *fakeStore) persistence() Option {
	return WithPersistence(fakeSessions{f}, fakeMessages{f})
}

func (f fakeSessions) Create(ctx context.Context, userID, title string, modelUsed *string) (*entities.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record := entities.NewSessionRecord(userID, title, modelUsed)
	record.ID = fmt.Sprintf("rec-%d", len(f.sessions)+1)
	f.sessions[record.ID] = record
	return record, nil
}

func (f fakeSessions) GetByID(ctx context.Context, userID, id string) (*entities.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.sessions[id]
	if !ok || record.UserID != userID {
		return nil, repositories.ErrNotFound
	}
	return record, nil
}

func (f fakeSessions) ListByUser(ctx context.Context, userID string, limit int) ([]*entities.SessionRecord, error) {
	return nil, nil
}

func (f fakeSessions) Update(ctx context.Context, userID, id string, patch entities.SessionPatch) (*entities.SessionRecord, error) {
	return nil, repositories.ErrNotFound
}

func (f fakeSessions) Archive(ctx context.Context, userID, id string) error {
	return nil
}

func (f fakeSessions) Delete(ctx context.Context, userID, id string) error {
	return nil
}

func (f fakeMessages) Save(ctx context.Context, message *entities.MessageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errors.New("disk full")
	}
	f.messages = append(f.messages, message)
	return nil
}

func (f fakeMessages) ListBySession(ctx context.Context, sessionID string, limit int) ([]*entities.MessageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*entities.MessageRecord
	for _, m := range f.messages {
		if m.SessionID == sessionID {
			result = append(result, m)
		}
	}
	return result, nil
}

func (f fakeMessages) GetByID(ctx context.Context, id string) (*entities.MessageRecord, error) {
	return nil, repositories.ErrNotFound
}

func (f fakeMessages) Delete(ctx context.Context, id string) error {
	return nil
}

func (f fakeMessages) Clear(ctx context.Context, sessionID string) error {
	return nil
}
