// Package redis provides Redis-based adapters for the storefront gateway.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domainsession "github.com/brightcart/storefront/internal/domain/session"
	"github.com/brightcart/storefront/internal/ports"
	"github.com/redis/go-redis/v9"
)

// TokenStore is a Redis-based token store for production use.
// Records expire after the configured session TTL; a corrupt record reads
// as absent and is removed, so storage corruption never surfaces past the
// store boundary.
type TokenStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// TokenStoreOptions groups construction parameters for TokenStore.
type TokenStoreOptions struct {
	Client redis.UniversalClient
	Prefix string
	TTL    time.Duration
}

// NewTokenStore creates a new Redis-based token store.
func NewTokenStore(opts TokenStoreOptions) *TokenStore {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "session:"
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 168 * time.Hour
	}
	return &TokenStore{
		client: opts.Client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *TokenStore) Save(ctx context.Context, rec domainsession.Record) error {
	if rec.ID == "" {
		return errors.New("session ID cannot be empty")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}

	return s.client.Set(ctx, s.prefix+rec.ID, data, s.ttl).Err()
}

func (s *TokenStore) Get(ctx context.Context, id string) (domainsession.Record, error) {
	if id == "" {
		return domainsession.Record{}, ErrNotFound
	}

	key := s.prefix + id
	data, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainsession.Record{}, ErrNotFound
		}
		return domainsession.Record{}, fmt.Errorf("redis get: %w", err)
	}

	var rec domainsession.Record
	if unmarshalErr := json.Unmarshal([]byte(data), &rec); unmarshalErr != nil {
		// Corrupt record: clear it and report absent rather than failing.
		if deleteErr := s.Delete(ctx, id); deleteErr != nil {
			return domainsession.Record{}, fmt.Errorf("cleanup corrupt session record: %w", deleteErr)
		}
		return domainsession.Record{}, ErrNotFound
	}

	return rec, nil
}

func (s *TokenStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil // Nothing to delete
	}

	return s.client.Del(ctx, s.prefix+id).Err()
}

// IDs lists identifiers of stored sessions via SCAN. The listing is a
// point-in-time approximation, which is sufficient for the revalidation
// sweep: a session missed this tick is picked up on the next.
func (s *TokenStore) IDs(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, iter.Val()[len(s.prefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return ids, nil
}

// ErrNotFound aliases the shared store sentinel for callers holding the
// concrete adapter type.
var ErrNotFound = ports.ErrNotFound
