package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ducphamhoang/momentum-sync/internal/core"
)

// TokenStore manages OAuth token persistence. At most one token row
// exists per (user, provider) pair.
type TokenStore struct {
	db *DB
}

// NewTokenStore creates a new token store
func NewTokenStore(db *DB) *TokenStore {
	return &TokenStore{db: db}
}

// Get retrieves the token for a (user, provider) pair
func (s *TokenStore) Get(ctx context.Context, userID, provider string) (*core.OAuthToken, error) {
	token := &core.OAuthToken{}
	var scopes string

	err := s.db.conn.QueryRowContext(ctx, `
		SELECT user_id, provider, access_token, refresh_token, expires_at,
		       scopes, created_at, updated_at
		FROM oauth_tokens WHERE user_id = ? AND provider = ?
	`, userID, provider).Scan(
		&token.UserID, &token.Provider, &token.AccessToken,
		&token.RefreshToken, &token.ExpiresAt, &scopes,
		&token.CreatedAt, &token.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, core.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query token: %w", err)
	}

	if err := json.Unmarshal([]byte(scopes), &token.Scopes); err != nil {
		return nil, fmt.Errorf("decode scopes: %w", err)
	}

	return token, nil
}

// Put inserts or replaces the token for its (user, provider) pair.
// The replace is a single statement, so a concurrent refresh cannot
// observe a half-written row.
func (s *TokenStore) Put(ctx context.Context, token *core.OAuthToken) error {
	now := time.Now().UTC()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = now
	}
	token.UpdatedAt = now

	scopes, err := json.Marshal(token.Scopes)
	if err != nil {
		return fmt.Errorf("encode scopes: %w", err)
	}

	_, err = s.db.conn.ExecContext(ctx, `
		INSERT INTO oauth_tokens (
		    user_id, provider, access_token, refresh_token, expires_at,
		    scopes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, provider) DO UPDATE SET
		    access_token = excluded.access_token,
		    refresh_token = excluded.refresh_token,
		    expires_at = excluded.expires_at,
		    scopes = excluded.scopes,
		    updated_at = excluded.updated_at
	`,
		token.UserID, token.Provider, token.AccessToken, token.RefreshToken,
		token.ExpiresAt, string(scopes), token.CreatedAt, token.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store token: %w", err)
	}

	return nil
}

// Delete removes the token for a (user, provider) pair. Deleting an
// absent token is not an error.
func (s *TokenStore) Delete(ctx context.Context, userID, provider string) error {
	_, err := s.db.conn.ExecContext(ctx,
		"DELETE FROM oauth_tokens WHERE user_id = ? AND provider = ?",
		userID, provider)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}
