package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/ducphamhoang/momentum-sync/internal/core"
	"github.com/ducphamhoang/momentum-sync/internal/testutil"
)

const testProvider = "google_tasks"

// fakeOAuthServer serves the token endpoint of a pretend platform.
type fakeOAuthServer struct {
	srv *httptest.Server

	tokenRequests int
	accessToken   string
	refreshToken  string // returned in token responses when non-empty
	expiresIn     int
	failWith      int // non-zero: respond with this HTTP status
}

func newFakeOAuthServer(t *testing.T) *fakeOAuthServer {
	t.Helper()
	f := &fakeOAuthServer{accessToken: "fresh-access", expiresIn: 3600}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenRequests++
		if f.failWith != 0 {
			http.Error(w, "denied", f.failWith)
			return
		}
		resp := map[string]interface{}{
			"access_token": f.accessToken,
			"token_type":   "Bearer",
			"expires_in":   f.expiresIn,
		}
		if f.refreshToken != "" {
			resp["refresh_token"] = f.refreshToken
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeOAuthServer) config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:9876/callback",
		Scopes:       []string{"tasks"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  f.srv.URL + "/auth",
			TokenURL: f.srv.URL + "/token",
		},
	}
}

func newTestManager(t *testing.T, oauthCfg *oauth2.Config, revokeURL string) (*Manager, *testutil.MemoryTokenStore) {
	t.Helper()
	store := testutil.NewMemoryTokenStore()
	mgr := NewManager(store, map[string]ProviderConfig{
		testProvider: {OAuth: oauthCfg, RevokeURL: revokeURL},
	})
	return mgr, store
}

func TestManager_AuthorizationURL(t *testing.T) {
	f := newFakeOAuthServer(t)
	mgr, _ := newTestManager(t, f.config(), "")

	rawURL, err := mgr.AuthorizationURL("user1", testProvider)
	if err != nil {
		t.Fatalf("AuthorizationURL() error = %v", err)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}

	q := parsed.Query()
	if q.Get("state") != "user1" {
		t.Errorf("state = %q, want userID as opaque state", q.Get("state"))
	}
	if q.Get("access_type") != "offline" {
		t.Errorf("access_type = %q, want offline", q.Get("access_type"))
	}
	// Forced consent guarantees a refresh token on re-authorization
	if !strings.Contains(rawURL, "consent") && q.Get("approval_prompt") != "force" {
		t.Errorf("url %q should force a consent prompt", rawURL)
	}
}

func TestManager_AuthorizationURL_UnknownProvider(t *testing.T) {
	f := newFakeOAuthServer(t)
	mgr, _ := newTestManager(t, f.config(), "")

	if _, err := mgr.AuthorizationURL("user1", "nope"); err == nil {
		t.Error("AuthorizationURL() should fail for unknown provider")
	}
}

func TestManager_ExchangeCode(t *testing.T) {
	f := newFakeOAuthServer(t)
	f.accessToken = "first-access"
	f.refreshToken = "first-refresh"
	mgr, store := newTestManager(t, f.config(), "")

	ctx := context.Background()
	token, err := mgr.ExchangeCode(ctx, "auth-code", "user1", testProvider)
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	if token.AccessToken != "first-access" || token.RefreshToken != "first-refresh" {
		t.Errorf("ExchangeCode() = %+v, token mismatch", token)
	}
	if time.Until(token.ExpiresAt) < 50*time.Minute {
		t.Errorf("ExpiresAt = %v, want ~1h out", token.ExpiresAt)
	}

	stored, err := store.Get(ctx, "user1", testProvider)
	if err != nil {
		t.Fatalf("token was not persisted: %v", err)
	}
	if stored.AccessToken != "first-access" {
		t.Errorf("persisted AccessToken = %q", stored.AccessToken)
	}
}

func TestManager_ExchangeCode_NoAccessToken(t *testing.T) {
	f := newFakeOAuthServer(t)
	f.accessToken = ""
	mgr, _ := newTestManager(t, f.config(), "")

	_, err := mgr.ExchangeCode(context.Background(), "auth-code", "user1", testProvider)
	if !core.IsAuthError(err) {
		t.Errorf("ExchangeCode() error = %v, want auth error when no access token returned", err)
	}
}

func TestManager_RefreshAccessToken(t *testing.T) {
	f := newFakeOAuthServer(t)
	f.accessToken = "rotated-access"
	mgr, store := newTestManager(t, f.config(), "")

	ctx := context.Background()
	store.Put(ctx, &core.OAuthToken{
		UserID:       "user1",
		Provider:     testProvider,
		AccessToken:  "old-access",
		RefreshToken: "the-refresh",
		ExpiresAt:    time.Now().Add(time.Minute),
	})

	token, err := mgr.RefreshAccessToken(ctx, "user1", testProvider)
	if err != nil {
		t.Fatalf("RefreshAccessToken() error = %v", err)
	}

	if token.AccessToken != "rotated-access" {
		t.Errorf("AccessToken = %q, want rotated-access", token.AccessToken)
	}
	// Platform issued no new refresh token, so the old one is kept
	if token.RefreshToken != "the-refresh" {
		t.Errorf("RefreshToken = %q, want original kept", token.RefreshToken)
	}

	stored, _ := store.Get(ctx, "user1", testProvider)
	if stored.AccessToken != "rotated-access" {
		t.Error("refreshed token was not persisted")
	}
}

func TestManager_RefreshAccessToken_RotatesRefreshToken(t *testing.T) {
	f := newFakeOAuthServer(t)
	f.refreshToken = "new-refresh"
	mgr, store := newTestManager(t, f.config(), "")

	ctx := context.Background()
	store.Put(ctx, &core.OAuthToken{
		UserID:       "user1",
		Provider:     testProvider,
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		ExpiresAt:    time.Now().Add(time.Minute),
	})

	token, err := mgr.RefreshAccessToken(ctx, "user1", testProvider)
	if err != nil {
		t.Fatalf("RefreshAccessToken() error = %v", err)
	}
	if token.RefreshToken != "new-refresh" {
		t.Errorf("RefreshToken = %q, want platform-issued new-refresh", token.RefreshToken)
	}
}

func TestManager_RefreshAccessToken_NoStoredToken(t *testing.T) {
	f := newFakeOAuthServer(t)
	mgr, _ := newTestManager(t, f.config(), "")

	_, err := mgr.RefreshAccessToken(context.Background(), "user1", testProvider)
	if !core.IsAuthError(err) {
		t.Errorf("RefreshAccessToken() error = %v, want auth error for absent token", err)
	}
}

func TestManager_RefreshAccessToken_NoRefreshToken(t *testing.T) {
	f := newFakeOAuthServer(t)
	mgr, store := newTestManager(t, f.config(), "")

	ctx := context.Background()
	store.Put(ctx, &core.OAuthToken{
		UserID:      "user1",
		Provider:    testProvider,
		AccessToken: "access-only",
		ExpiresAt:   time.Now().Add(time.Minute),
	})

	_, err := mgr.RefreshAccessToken(ctx, "user1", testProvider)
	if !core.IsAuthError(err) {
		t.Errorf("RefreshAccessToken() error = %v, want auth error without refresh token", err)
	}
}

func TestManager_ValidAccessToken_FreshTokenReturnedUnchanged(t *testing.T) {
	f := newFakeOAuthServer(t)
	mgr, store := newTestManager(t, f.config(), "")

	ctx := context.Background()
	store.Put(ctx, &core.OAuthToken{
		UserID:      "user1",
		Provider:    testProvider,
		AccessToken: "still-good",
		ExpiresAt:   time.Now().Add(time.Hour),
	})

	got, err := mgr.ValidAccessToken(ctx, "user1", testProvider)
	if err != nil {
		t.Fatalf("ValidAccessToken() error = %v", err)
	}
	if got != "still-good" {
		t.Errorf("ValidAccessToken() = %q, want stored token unchanged", got)
	}
	if f.tokenRequests != 0 {
		t.Errorf("token endpoint hit %d times, want 0 for a fresh token", f.tokenRequests)
	}
}

func TestManager_ValidAccessToken_RefreshesWithinSkew(t *testing.T) {
	f := newFakeOAuthServer(t)
	f.accessToken = "skew-refreshed"
	mgr, store := newTestManager(t, f.config(), "")

	ctx := context.Background()
	// Expires in 3 minutes: inside the 5-minute skew buffer
	store.Put(ctx, &core.OAuthToken{
		UserID:       "user1",
		Provider:     testProvider,
		AccessToken:  "nearly-dead",
		RefreshToken: "the-refresh",
		ExpiresAt:    time.Now().Add(3 * time.Minute),
	})

	got, err := mgr.ValidAccessToken(ctx, "user1", testProvider)
	if err != nil {
		t.Fatalf("ValidAccessToken() error = %v", err)
	}
	if got != "skew-refreshed" {
		t.Errorf("ValidAccessToken() = %q, want refreshed token", got)
	}
	if f.tokenRequests != 1 {
		t.Errorf("token endpoint hit %d times, want exactly 1 refresh", f.tokenRequests)
	}
}

func TestManager_ValidAccessToken_NotConnected(t *testing.T) {
	f := newFakeOAuthServer(t)
	mgr, _ := newTestManager(t, f.config(), "")

	_, err := mgr.ValidAccessToken(context.Background(), "user1", testProvider)
	if !core.IsAuthError(err) {
		t.Errorf("ValidAccessToken() error = %v, want auth error when not connected", err)
	}
}

func TestManager_RevokeToken_DeletesLocallyEvenIfRemoteFails(t *testing.T) {
	f := newFakeOAuthServer(t)

	revoke := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer revoke.Close()

	mgr, store := newTestManager(t, f.config(), revoke.URL)

	ctx := context.Background()
	store.Put(ctx, &core.OAuthToken{
		UserID:      "user1",
		Provider:    testProvider,
		AccessToken: "to-revoke",
		ExpiresAt:   time.Now().Add(time.Hour),
	})

	if err := mgr.RevokeToken(ctx, "user1", testProvider); err != nil {
		t.Fatalf("RevokeToken() error = %v", err)
	}

	if _, err := store.Get(ctx, "user1", testProvider); err != core.ErrTokenNotFound {
		t.Error("local token must be deleted even when remote revoke fails")
	}
}

func TestManager_RevokeToken_CallsRevokeEndpoint(t *testing.T) {
	f := newFakeOAuthServer(t)

	var revokedToken string
	revoke := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		revokedToken = r.Form.Get("token")
	}))
	defer revoke.Close()

	mgr, store := newTestManager(t, f.config(), revoke.URL)

	ctx := context.Background()
	store.Put(ctx, &core.OAuthToken{
		UserID:      "user1",
		Provider:    testProvider,
		AccessToken: "to-revoke",
		ExpiresAt:   time.Now().Add(time.Hour),
	})

	if err := mgr.RevokeToken(ctx, "user1", testProvider); err != nil {
		t.Fatalf("RevokeToken() error = %v", err)
	}
	if revokedToken != "to-revoke" {
		t.Errorf("revoke endpoint received token %q, want to-revoke", revokedToken)
	}
}

func TestManager_RevokeToken_AbsentIsNoop(t *testing.T) {
	f := newFakeOAuthServer(t)
	mgr, _ := newTestManager(t, f.config(), "")

	if err := mgr.RevokeToken(context.Background(), "user1", testProvider); err != nil {
		t.Errorf("RevokeToken() of absent token error = %v", err)
	}
}
