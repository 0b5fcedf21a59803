package handler

import (
	"net/http"

	"fleetforge/internal/domain"
	"fleetforge/internal/service"
)

// ReleaseHandler handles release requests
type ReleaseHandler struct {
	svc *service.ReleaseService
}

// NewReleaseHandler creates a new release handler
func NewReleaseHandler(svc *service.ReleaseService) *ReleaseHandler {
	return &ReleaseHandler{svc: svc}
}

// Register adds the release routes to mux
func (h *ReleaseHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/releases", h.ListReleases)
	mux.HandleFunc("POST /api/releases", h.CreateRelease)
	mux.HandleFunc("GET /api/releases/{id}", h.GetRelease)
	mux.HandleFunc("PUT /api/releases/{id}", h.UpdateRelease)
	mux.HandleFunc("DELETE /api/releases/{id}", h.DeleteRelease)
}

// ListReleases returns all releases
func (h *ReleaseHandler) ListReleases(w http.ResponseWriter, r *http.Request) {
	releases, err := h.svc.ListReleases(r.Context())
	if err != nil {
		writeServiceError(w, r, "Failed to list releases", err)
		return
	}
	if releases == nil {
		releases = []*domain.Release{}
	}
	writeJSON(w, releases, http.StatusOK)
}

// GetRelease returns a single release
func (h *ReleaseHandler) GetRelease(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	release, err := h.svc.GetRelease(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "Failed to get release", err)
		return
	}
	writeJSON(w, release, http.StatusOK)
}

// CreateRelease creates a new release
func (h *ReleaseHandler) CreateRelease(w http.ResponseWriter, r *http.Request) {
	var release domain.Release
	if !decodeJSON(w, r, &release) {
		return
	}
	release.ID = 0
	if err := h.svc.CreateRelease(r.Context(), &release); err != nil {
		writeServiceError(w, r, "Failed to create release", err)
		return
	}
	writeJSON(w, release, http.StatusCreated)
}

// UpdateRelease applies a partial release update
func (h *ReleaseHandler) UpdateRelease(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var upd service.ReleaseUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	release, err := h.svc.UpdateRelease(r.Context(), id, upd)
	if err != nil {
		writeServiceError(w, r, "Failed to update release", err)
		return
	}
	writeJSON(w, release, http.StatusOK)
}

// DeleteRelease removes a release
func (h *ReleaseHandler) DeleteRelease(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteRelease(r.Context(), id); err != nil {
		writeServiceError(w, r, "Failed to delete release", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
