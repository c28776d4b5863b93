package session

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/satriahrh/chatgate/domain/entities"
	"github.com/satriahrh/chatgate/domain/repositories"
)

// DefaultSessionID is used when a request does not name a session
const DefaultSessionID = "default"

const shardCount = 32

// Key identifies a session; sessions are never shared across users
type Key struct {
	UserID    string
	SessionID string
}

// NewKey builds a key, falling back to the default session id
func NewKey(userID, sessionID string) Key {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	return Key{UserID: userID, SessionID: sessionID}
}

func (k Key) hash() uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(k.UserID)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(k.SessionID)
	return d.Sum64()
}

// Session is a point-in-time copy of a registry entry
type Session struct {
	Key        Key
	Provider   repositories.ChatProvider
	History    []entities.Message
	RecordID   string
	Generation string
}

// Summary describes a session for listings
type Summary struct {
	SessionID    string                `json:"session_id"`
	Provider     entities.ProviderKind `json:"provider"`
	Model        string                `json:"model"`
	MessageCount int                   `json:"message_count"`
}

type entry struct {
	provider   repositories.ChatProvider
	history    []entities.Message
	recordID   string
	generation string
}

type shard struct {
	mu      sync.RWMutex
	entries map[Key]*entry
}

// Registry holds the live sessions of every user.
// Operations on one key are linearizable; different keys rarely share a lock.
type Registry struct {
	shards [shardCount]*shard
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &shard{entries: make(map[Key]*entry)}
	}
	return r
}

func (r *Registry) shardFor(key Key) *shard {
	return r.shards[key.hash()%shardCount]
}

// Configure installs provider for the key, replacing any previous session and its history
func (r *Registry) Configure(userID, sessionID string, provider repositories.ChatProvider) Session {
	key := NewKey(userID, sessionID)
	s := r.shardFor(key)

	e := &entry{
		provider:   provider,
		history:    []entities.Message{},
		generation: uuid.NewString(),
	}

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()

	return Session{Key: key, Provider: provider, History: []entities.Message{}, Generation: e.generation}
}

// Lookup returns a snapshot of the session
func (r *Registry) Lookup(userID, sessionID string) (Session, bool) {
	key := NewKey(userID, sessionID)
	s := r.shardFor(key)

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[key]
	if !exists {
		return Session{}, false
	}

	return Session{
		Key:        key,
		Provider:   e.provider,
		History:    append([]entities.Message(nil), e.history...),
		RecordID:   e.recordID,
		Generation: e.generation,
	}, true
}

// AppendExchange appends a user/assistant pair to the session; absent sessions are ignored
func (r *Registry) AppendExchange(userID, sessionID string, userMsg, assistantMsg entities.Message) {
	key := NewKey(userID, sessionID)
	s := r.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, exists := s.entries[key]; exists {
		e.history = append(e.history, userMsg, assistantMsg)
	}
}

// CommitExchange appends the pair only if the session is still the one snap was taken from.
// It returns false when the session was removed or reconfigured in between.
func (r *Registry) CommitExchange(snap Session, userMsg, assistantMsg entities.Message) bool {
	s := r.shardFor(snap.Key)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[snap.Key]
	if !exists || e.generation != snap.Generation {
		return false
	}
	e.history = append(e.history, userMsg, assistantMsg)
	return true
}

// ClearHistory empties the history and keeps the provider; absent sessions are ignored
func (r *Registry) ClearHistory(userID, sessionID string) {
	key := NewKey(userID, sessionID)
	s := r.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, exists := s.entries[key]; exists {
		e.history = []entities.Message{}
	}
}

// SetRecordID binds a durable session record to the session snap was taken from.
// It returns false when the session was removed or reconfigured in between.
func (r *Registry) SetRecordID(snap Session, recordID string) bool {
	s := r.shardFor(snap.Key)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[snap.Key]
	if !exists || e.generation != snap.Generation {
		return false
	}
	e.recordID = recordID
	return true
}

// ListSessions returns a summary of every session owned by userID, in no particular order
func (r *Registry) ListSessions(userID string) []Summary {
	summaries := []Summary{}
	for _, s := range r.shards {
		s.mu.RLock()
		for key, e := range s.entries {
			if key.UserID != userID {
				continue
			}
			cfg := e.provider.Config()
			summaries = append(summaries, Summary{
				SessionID:    key.SessionID,
				Provider:     cfg.Kind,
				Model:        cfg.Model,
				MessageCount: len(e.history),
			})
		}
		s.mu.RUnlock()
	}
	return summaries
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}
