// Package memstore provides in-memory adapters for local development and
// tests, where a Redis or PostgreSQL backend would be overkill.
package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	domainsession "github.com/brightcart/storefront/internal/domain/session"
	"github.com/brightcart/storefront/internal/ports"
)

type entry struct {
	rec       domainsession.Record
	expiresAt time.Time
}

// TokenStore is a process-local token store. Entries honor the configured
// TTL so dev behavior matches the Redis-backed store.
type TokenStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

var _ ports.TokenStore = (*TokenStore)(nil)

// NewTokenStore creates an in-memory token store with the given record TTL.
func NewTokenStore(ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = 168 * time.Hour
	}
	return &TokenStore{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *TokenStore) Save(_ context.Context, rec domainsession.Record) error {
	if rec.ID == "" {
		return errors.New("session ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[rec.ID] = entry{rec: rec, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *TokenStore) Get(_ context.Context, id string) (domainsession.Record, error) {
	if id == "" {
		return domainsession.Record{}, ports.ErrNotFound
	}

	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return domainsession.Record{}, ports.ErrNotFound
	}

	if s.now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, id)
		s.mu.Unlock()
		return domainsession.Record{}, ports.ErrNotFound
	}

	return e.rec, nil
}

func (s *TokenStore) Delete(_ context.Context, id string) error {
	if id == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

func (s *TokenStore) IDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	ids := make([]string, 0, len(s.entries))
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Notifier is an in-memory notice queue matching the Redis-backed one.
type Notifier struct {
	mu      sync.Mutex
	notices map[string][]ports.Notice
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier creates an in-memory notice queue.
func NewNotifier() *Notifier {
	return &Notifier{notices: make(map[string][]ports.Notice)}
}

func (n *Notifier) Push(_ context.Context, sessionID string, notice ports.Notice) {
	if sessionID == "" {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices[sessionID] = append(n.notices[sessionID], notice)
}

func (n *Notifier) Drain(_ context.Context, sessionID string) []ports.Notice {
	if sessionID == "" {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.notices[sessionID]
	delete(n.notices, sessionID)
	return out
}
