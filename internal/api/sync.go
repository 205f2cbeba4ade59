package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ducphamhoang/momentum-sync/internal/core"
)

// handleSync runs one pull-then-push reconciliation synchronously and
// returns its result. Partial failures come back as 200 with the error
// list populated.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")

	result, err := s.engine.SyncUserTasks(r.Context(), userID(r), providerName)
	if errors.Is(err, core.ErrUnknownProvider) {
		s.respondError(w, http.StatusNotFound, "unknown provider: "+providerName)
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}
