// Package postgres provides a PostgreSQL-backed token store for deployments
// that already run Postgres and do not want a Redis dependency.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domainsession "github.com/brightcart/storefront/internal/domain/session"
	apperrors "github.com/brightcart/storefront/internal/errors"
	"github.com/brightcart/storefront/internal/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TokenStore persists session records in the sessions table. Token and
// profile are stored as JSONB; expires_at enforces the session TTL on read
// so Postgres behaves like the TTL-bearing Redis store.
type TokenStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// TokenStoreOptions groups construction parameters for TokenStore.
type TokenStoreOptions struct {
	Pool *pgxpool.Pool
	TTL  time.Duration
}

var _ ports.TokenStore = (*TokenStore)(nil)

// NewTokenStore creates a PostgreSQL-backed token store.
func NewTokenStore(opts TokenStoreOptions) (*TokenStore, error) {
	if opts.Pool == nil {
		return nil, errors.New("pool is required")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 168 * time.Hour
	}
	return &TokenStore{pool: opts.Pool, ttl: ttl}, nil
}

func (s *TokenStore) Save(ctx context.Context, rec domainsession.Record) error {
	if rec.ID == "" {
		return errors.New("session ID cannot be empty")
	}

	token, err := json.Marshal(rec.Token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	profile, err := json.Marshal(rec.User)
	if err != nil {
		return fmt.Errorf("marshal user profile: %w", err)
	}

	const q = `
		INSERT INTO sessions (id, token, user_profile, updated_at, expires_at)
		VALUES ($1, $2, $3, now(), now() + $4)
		ON CONFLICT (id) DO UPDATE
		SET token = EXCLUDED.token,
		    user_profile = EXCLUDED.user_profile,
		    updated_at = now(),
		    expires_at = EXCLUDED.expires_at`
	if _, err := s.pool.Exec(ctx, q, rec.ID, token, profile, s.ttl); err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

func (s *TokenStore) Get(ctx context.Context, id string) (domainsession.Record, error) {
	if id == "" {
		return domainsession.Record{}, ports.ErrNotFound
	}

	const q = `
		SELECT token, user_profile
		FROM sessions
		WHERE id = $1 AND expires_at > now()`

	var token, profile []byte
	err := s.pool.QueryRow(ctx, q, id).Scan(&token, &profile)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainsession.Record{}, ports.ErrNotFound
		}
		return domainsession.Record{}, apperrors.MapDBError(err)
	}

	rec := domainsession.Record{ID: id}
	if len(token) > 0 {
		if err := json.Unmarshal(token, &rec.Token); err != nil {
			// Corrupt record: clear it and report absent rather than failing.
			if deleteErr := s.Delete(ctx, id); deleteErr != nil {
				return domainsession.Record{}, fmt.Errorf("cleanup corrupt session record: %w", deleteErr)
			}
			return domainsession.Record{}, ports.ErrNotFound
		}
	}
	if len(profile) > 0 {
		if err := json.Unmarshal(profile, &rec.User); err != nil {
			if deleteErr := s.Delete(ctx, id); deleteErr != nil {
				return domainsession.Record{}, fmt.Errorf("cleanup corrupt session record: %w", deleteErr)
			}
			return domainsession.Record{}, ports.ErrNotFound
		}
	}
	return rec, nil
}

func (s *TokenStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

func (s *TokenStore) IDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM sessions WHERE expires_at > now()`)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.MapDBError(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return ids, nil
}

// PurgeExpired removes rows past their expiry. Redis handles this with key
// TTLs; Postgres needs an explicit sweep, run alongside revalidation.
func (s *TokenStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, apperrors.MapDBError(err)
	}
	return tag.RowsAffected(), nil
}
