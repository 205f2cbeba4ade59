// Package auth manages the OAuth credential lifecycle for task providers.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/ducphamhoang/momentum-sync/internal/core"
	"github.com/ducphamhoang/momentum-sync/internal/logging"
)

// RefreshSkew is the buffer before expiry at which a token is
// refreshed. It prevents races where a token expires mid-request.
const RefreshSkew = 5 * time.Minute

// defaultTokenLifetime applies when the platform reports no expiry.
const defaultTokenLifetime = time.Hour

// TokenStore is the credential persistence the manager depends on.
// At most one token exists per (user, provider) pair.
type TokenStore interface {
	Get(ctx context.Context, userID, provider string) (*core.OAuthToken, error)
	Put(ctx context.Context, token *core.OAuthToken) error
	Delete(ctx context.Context, userID, provider string) error
}

// ProviderConfig holds the OAuth endpoints for one provider.
type ProviderConfig struct {
	OAuth     *oauth2.Config
	RevokeURL string // empty means the platform has no revocation endpoint
}

// Manager issues authorization URLs, exchanges codes, refreshes
// near-expiry tokens, and revokes on disconnect.
//
// The read-then-refresh sequence in ValidAccessToken is not serialized:
// concurrent callers may both refresh. The refresh is idempotent at the
// platform and the last writer wins in storage, so this is tolerated.
type Manager struct {
	store      TokenStore
	configs    map[string]ProviderConfig
	httpClient *http.Client
}

// NewManager creates a credential manager. The config map is built once
// at construction; providers cannot be added later.
func NewManager(store TokenStore, configs map[string]ProviderConfig) *Manager {
	return &Manager{
		store:   store,
		configs: configs,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (m *Manager) config(provider string) (ProviderConfig, error) {
	cfg, ok := m.configs[provider]
	if !ok {
		return ProviderConfig{}, fmt.Errorf("%w: %s", core.ErrUnknownProvider, provider)
	}
	return cfg, nil
}

// AuthorizationURL returns the URL the user visits to grant access.
// The userID rides along as opaque state. Offline access and a forced
// consent prompt guarantee a refresh token even on re-authorization.
func (m *Manager) AuthorizationURL(userID, provider string) (string, error) {
	cfg, err := m.config(provider)
	if err != nil {
		return "", err
	}
	return cfg.OAuth.AuthCodeURL(userID, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// ExchangeCode performs the one-time authorization-code exchange and
// persists the resulting token pair.
func (m *Manager) ExchangeCode(ctx context.Context, code, userID, provider string) (*core.OAuthToken, error) {
	cfg, err := m.config(provider)
	if err != nil {
		return nil, err
	}

	tok, err := cfg.OAuth.Exchange(ctx, code)
	if err != nil {
		return nil, core.NewAuthError(provider, fmt.Errorf("exchange code: %w", err))
	}
	if tok.AccessToken == "" {
		return nil, core.NewAuthError(provider, errors.New("platform returned no access token"))
	}

	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(defaultTokenLifetime)
	}

	token := &core.OAuthToken{
		UserID:       userID,
		Provider:     provider,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiresAt,
		Scopes:       cfg.OAuth.Scopes,
	}

	if err := m.store.Put(ctx, token); err != nil {
		return nil, fmt.Errorf("persist token: %w", err)
	}

	logging.WithFields(map[string]interface{}{
		"user":     userID,
		"provider": provider,
	}).Info("authorized")

	return token, nil
}

// RefreshAccessToken rotates the access token and expiry using the
// stored refresh token. The refresh token is kept unless the platform
// issues a new one. Refreshing without a stored refresh token is a
// fatal auth error.
func (m *Manager) RefreshAccessToken(ctx context.Context, userID, provider string) (*core.OAuthToken, error) {
	cfg, err := m.config(provider)
	if err != nil {
		return nil, err
	}

	stored, err := m.store.Get(ctx, userID, provider)
	if err != nil {
		if errors.Is(err, core.ErrTokenNotFound) {
			return nil, core.NewAuthError(provider, errors.New("no stored token to refresh"))
		}
		return nil, fmt.Errorf("load token: %w", err)
	}
	if stored.RefreshToken == "" {
		return nil, core.NewAuthError(provider, errors.New("no refresh token; reconnect required"))
	}

	src := cfg.OAuth.TokenSource(ctx, &oauth2.Token{RefreshToken: stored.RefreshToken})
	fresh, err := src.Token()
	if err != nil {
		return nil, core.NewAuthError(provider, fmt.Errorf("refresh: %w", err))
	}

	stored.AccessToken = fresh.AccessToken
	stored.ExpiresAt = fresh.Expiry
	if stored.ExpiresAt.IsZero() {
		stored.ExpiresAt = time.Now().Add(defaultTokenLifetime)
	}
	if fresh.RefreshToken != "" {
		stored.RefreshToken = fresh.RefreshToken
	}

	if err := m.store.Put(ctx, stored); err != nil {
		return nil, fmt.Errorf("persist refreshed token: %w", err)
	}

	logging.WithFields(map[string]interface{}{
		"user":     userID,
		"provider": provider,
	}).Debug("access token refreshed")

	return stored, nil
}

// RevokeToken revokes the credential at the platform (best effort) and
// deletes it locally. Local state never retains a token the user
// believes disconnected, even if the remote revoke fails.
func (m *Manager) RevokeToken(ctx context.Context, userID, provider string) error {
	cfg, err := m.config(provider)
	if err != nil {
		return err
	}

	stored, err := m.store.Get(ctx, userID, provider)
	if err != nil {
		if errors.Is(err, core.ErrTokenNotFound) {
			return nil
		}
		return fmt.Errorf("load token: %w", err)
	}

	if cfg.RevokeURL != "" {
		if err := m.revokeRemote(ctx, cfg.RevokeURL, stored.AccessToken); err != nil {
			logging.WithFields(map[string]interface{}{
				"user":     userID,
				"provider": provider,
			}).Warn("remote revoke failed: %v", err)
		}
	}

	if err := m.store.Delete(ctx, userID, provider); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}

	return nil
}

func (m *Manager) revokeRemote(ctx context.Context, revokeURL, accessToken string) error {
	form := url.Values{"token": {accessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, revokeURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// ValidAccessToken returns a bearer token guaranteed to outlive the
// skew buffer, refreshing transparently when the stored one is near
// expiry.
func (m *Manager) ValidAccessToken(ctx context.Context, userID, provider string) (string, error) {
	stored, err := m.store.Get(ctx, userID, provider)
	if err != nil {
		if errors.Is(err, core.ErrTokenNotFound) {
			return "", core.NewAuthError(provider, errors.New("account not connected"))
		}
		return "", fmt.Errorf("load token: %w", err)
	}

	if !stored.ExpiresWithin(RefreshSkew) {
		return stored.AccessToken, nil
	}

	refreshed, err := m.RefreshAccessToken(ctx, userID, provider)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// Connected reports whether a token exists for the pair.
func (m *Manager) Connected(ctx context.Context, userID, provider string) (bool, error) {
	_, err := m.store.Get(ctx, userID, provider)
	if errors.Is(err, core.ErrTokenNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
