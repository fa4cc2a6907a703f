// Package session holds per-visitor conversation state. Nothing here is
// global: each request carries its own Context.
package session

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/jonboulle/clockwork"

	"github.com/ekaya-inc/ekaya-ask/pkg/models"
)

// Roles of a Message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string               `json:"role"`
	Content string               `json:"content"`
	Bundle  *models.ResultBundle `json:"bundle,omitempty"`
	At      time.Time            `json:"at"`
}

// Store keeps the bounded history of every session. Sessions idle for
// longer than the TTL are dropped.
type Store struct {
	histories   *ttlcache.Cache[string, []Message]
	maxMessages int
	clock       clockwork.Clock

	mu sync.Mutex
}

// NewStore creates a Store. maxMessages <= 0 keeps every message.
func NewStore(ttl time.Duration, maxMessages int, clock clockwork.Clock) *Store {
	histories := ttlcache.New(ttlcache.WithTTL[string, []Message](ttl))
	go histories.Start()
	return &Store{histories: histories, maxMessages: maxMessages, clock: clock}
}

// Context returns the context of the session identified by key.
func (s *Store) Context(key string) *Context {
	return &Context{Key: key, store: s}
}

// Close stops the expiry loop.
func (s *Store) Close() {
	s.histories.Stop()
}

func (s *Store) append(key string, msgs ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var history []Message
	if item := s.histories.Get(key); item != nil {
		history = item.Value()
	}

	now := s.clock.Now()
	next := make([]Message, 0, len(history)+len(msgs))
	next = append(next, history...)
	for _, m := range msgs {
		if m.At.IsZero() {
			m.At = now
		}
		next = append(next, m)
	}
	if s.maxMessages > 0 && len(next) > s.maxMessages {
		next = next[len(next)-s.maxMessages:]
	}
	s.histories.Set(key, next, ttlcache.DefaultTTL)
}

func (s *Store) messages(key string) []Message {
	item := s.histories.Get(key)
	if item == nil {
		return nil
	}
	// Stored slices are never mutated in place, so sharing is safe.
	return item.Value()
}

func (s *Store) clear(key string) {
	s.histories.Delete(key)
}

// Context is the state of one session handed through the pipeline. A nil
// *Context is valid and records nothing.
type Context struct {
	Key   string
	store *Store
}

// Record appends a question and the answer given to it.
func (c *Context) Record(question string, bundle *models.ResultBundle) {
	if c == nil || c.store == nil {
		return
	}
	c.store.append(c.Key,
		Message{Role: RoleUser, Content: question},
		Message{Role: RoleAssistant, Content: bundle.Summary, Bundle: bundle},
	)
}

// History returns the session's messages, oldest first.
func (c *Context) History() []Message {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.messages(c.Key)
}

// Clear forgets the session's history.
func (c *Context) Clear() {
	if c == nil || c.store == nil {
		return
	}
	c.store.clear(c.Key)
}
