package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/store"
)

type internalValidateRequest struct {
	Token     string `json:"token"`
	ProjectID string `json:"project_id"`
}

type internalValidateResponse struct {
	UserID string `json:"user_id"`
}

// handleInternalValidate is called by the terminal proxy, never by a
// browser: it verifies the access token, verifies that the token's user
// owns the project, and bumps last_connection_at on success (§4.7, §4.8
// connect-sequence step 2).
func (s *Server) handleInternalValidate(w http.ResponseWriter, r *http.Request) {
	var req internalValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	userID, err := s.auth.VerifyAccessToken(req.Token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	p, err := s.store.GetProjectForUser(r.Context(), req.ProjectID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid token or project")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := s.store.TouchLastConnection(r.Context(), p.ID, time.Now().UTC()); err != nil {
		s.log.Printf("internal validate: touch last_connection_at failed for project %s: %v", p.ID, err)
	}
	writeJSON(w, http.StatusOK, internalValidateResponse{UserID: userID})
}
