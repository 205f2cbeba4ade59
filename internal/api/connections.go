package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ducphamhoang/momentum-sync/internal/core"
	"github.com/ducphamhoang/momentum-sync/internal/providers/googletasks"
)

func (s *Server) handleAuthURL(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")

	url, err := s.auth.AuthorizationURL(userID(r), providerName)
	if errors.Is(err, core.ErrUnknownProvider) {
		s.respondError(w, http.StatusNotFound, "unknown provider: "+providerName)
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

// handleOAuthCallback completes the authorization-code flow. The user
// id rides in the state parameter set by handleAuthURL.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errMsg := q.Get("error"); errMsg != "" {
		s.respondError(w, http.StatusBadRequest, "authorization denied: "+errMsg)
		return
	}

	code := q.Get("code")
	state := q.Get("state")
	if code == "" || state == "" {
		s.respondError(w, http.StatusBadRequest, "missing code or state")
		return
	}

	// Google's redirect carries no provider param; other providers must
	// append one to their redirect URL.
	providerName := q.Get("provider")
	if providerName == "" {
		providerName = googletasks.ProviderName
	}

	if _, err := s.auth.ExchangeCode(r.Context(), code, state, providerName); err != nil {
		if core.IsAuthError(err) {
			s.respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":   "connected",
		"provider": providerName,
	})
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")

	connected, err := s.auth.Connected(r.Context(), userID(r), providerName)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"provider":  providerName,
		"connected": connected,
	})
}

// handleDisconnect revokes the provider credential. Remote revocation
// is best effort; local deletion always happens.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")

	err := s.auth.RevokeToken(r.Context(), userID(r), providerName)
	if errors.Is(err, core.ErrUnknownProvider) {
		s.respondError(w, http.StatusNotFound, "unknown provider: "+providerName)
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":   "disconnected",
		"provider": providerName,
	})
}
