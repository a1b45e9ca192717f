package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/model"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/perr"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/store"
)

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r)
	projects, err := s.store.ListProjectsForUser(r.Context(), userID)
	if err != nil {
		writePerrError(w, perr.Backend("list projects failed", err))
		return
	}
	out := make([]model.ProjectSummary, 0, len(projects))
	for _, p := range projects {
		out = append(out, model.ProjectSummary{
			ID:        p.ID,
			Name:      p.Name,
			Status:    p.Status,
			CreatedAt: p.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type createProjectRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r)
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	p, err := s.orch.CreateProject(r.Context(), userID, req.Name)
	if err != nil {
		writePerrError(w, err)
		return
	}
	d := s.toDetail(p)
	d.SSHPrivateKey = p.SSHPrivateKey
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r)
	id := chi.URLParam(r, "id")
	p, err := s.store.GetProjectForUser(r.Context(), id, userID)
	if err != nil {
		writePerrError(w, mapStoreNotFound(err))
		return
	}
	writeJSON(w, http.StatusOK, s.toDetail(p))
}

// handleBackupStatus returns last-backup and last-snapshot timestamps plus
// the current snapshot image reference (§4.7).
func (s *Server) handleBackupStatus(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r)
	id := chi.URLParam(r, "id")
	p, err := s.store.GetProjectForUser(r.Context(), id, userID)
	if err != nil {
		writePerrError(w, mapStoreNotFound(err))
		return
	}
	type backupStatus struct {
		LastSnapshotAt   *string `json:"last_snapshot_at,omitempty"`
		LastBackupAt     *string `json:"last_backup_at,omitempty"`
		SnapshotImageRef string  `json:"snapshot_image_ref,omitempty"`
	}
	resp := backupStatus{SnapshotImageRef: p.SnapshotImageRef}
	if p.LastSnapshotAt != nil {
		v := p.LastSnapshotAt.Format(time.RFC3339)
		resp.LastSnapshotAt = &v
	}
	if p.LastBackupAt != nil {
		v := p.LastBackupAt.Format(time.RFC3339)
		resp.LastBackupAt = &v
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r)
	id := chi.URLParam(r, "id")
	p, err := s.store.GetProjectForUser(r.Context(), id, userID)
	if err != nil {
		writePerrError(w, mapStoreNotFound(err))
		return
	}
	if err := s.orch.DeleteProject(r.Context(), p); err != nil {
		writePerrError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleStopProject also serves /projects/{id}/snapshot, which the API
// table specifies as an alias for stop (the stop saga snapshots before
// stopping, §4.5).
func (s *Server) handleStopProject(w http.ResponseWriter, r *http.Request) {
	s.withOwnedProject(w, r, func(p model.Project) (model.Project, error) {
		return s.orch.StopProject(r.Context(), p)
	})
}

// handleStartProject also serves /projects/{id}/restore, an alias for
// start (the start saga always restores from the selected image, §4.5).
func (s *Server) handleStartProject(w http.ResponseWriter, r *http.Request) {
	s.withOwnedProject(w, r, func(p model.Project) (model.Project, error) {
		return s.orch.StartProject(r.Context(), p)
	})
}

// withOwnedProject loads the project scoped to the caller, runs action,
// and writes back the detail view — every lifecycle handler follows this
// same load-then-act shape.
func (s *Server) withOwnedProject(w http.ResponseWriter, r *http.Request, action func(model.Project) (model.Project, error)) {
	userID := userIDFromContext(r)
	id := chi.URLParam(r, "id")
	p, err := s.store.GetProjectForUser(r.Context(), id, userID)
	if err != nil {
		writePerrError(w, mapStoreNotFound(err))
		return
	}
	updated, err := action(p)
	if err != nil {
		writePerrError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toDetail(updated))
}

// mapStoreNotFound is the ownership-concealment boundary (§4.7 "not owned
// or absent" both surface identical 404s); any other store failure is a
// genuine backend error.
func mapStoreNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return perr.NotFound("project not found")
	}
	return perr.Backend("project lookup failed", err)
}

// toDetail builds the full-detail view. ssh_port and terminal_url are only
// populated while the project is running (§3 invariant).
func (s *Server) toDetail(p model.Project) model.ProjectDetail {
	d := model.ProjectDetail{
		ID:               p.ID,
		Name:             p.Name,
		Status:           p.Status,
		SnapshotImageRef: p.SnapshotImageRef,
		CreatedAt:        p.CreatedAt.Format(time.RFC3339),
		LastActiveAt:     p.LastActiveAt.Format(time.RFC3339),
	}
	if p.Status == model.StatusRunning {
		if p.SSHHostPort != 0 {
			port := p.SSHHostPort
			d.SSHHostPort = &port
		}
		d.TerminalURL = fmt.Sprintf("%s/terminal/%s", s.termProxyBaseURL, p.ID)
	}
	if p.LastSnapshotAt != nil {
		v := p.LastSnapshotAt.Format(time.RFC3339)
		d.LastSnapshotAt = &v
	}
	if p.LastBackupAt != nil {
		v := p.LastBackupAt.Format(time.RFC3339)
		d.LastBackupAt = &v
	}
	return d
}
