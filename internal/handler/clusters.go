package handler

import (
	"encoding/json"
	"net/http"

	"fleetforge/internal/domain"
	"fleetforge/internal/service"
)

// ClusterHandler handles cluster, attribute and network group requests
type ClusterHandler struct {
	svc *service.ClusterService
}

// NewClusterHandler creates a new cluster handler
func NewClusterHandler(svc *service.ClusterService) *ClusterHandler {
	return &ClusterHandler{svc: svc}
}

// Register adds the cluster routes to mux
func (h *ClusterHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/clusters", h.ListClusters)
	mux.HandleFunc("POST /api/clusters", h.CreateCluster)
	mux.HandleFunc("GET /api/clusters/{id}", h.GetCluster)
	mux.HandleFunc("PUT /api/clusters/{id}", h.UpdateCluster)
	mux.HandleFunc("DELETE /api/clusters/{id}", h.DeleteCluster)

	mux.HandleFunc("GET /api/clusters/{id}/attributes", h.GetAttributes)
	mux.HandleFunc("PUT /api/clusters/{id}/attributes", h.UpdateAttributes)

	mux.HandleFunc("GET /api/clusters/{id}/networks", h.ListNetworks)
	mux.HandleFunc("POST /api/clusters/{id}/networks", h.CreateNetwork)
	mux.HandleFunc("DELETE /api/networks/{id}", h.DeleteNetwork)
}

// ListClusters returns all clusters
func (h *ClusterHandler) ListClusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.svc.ListClusters(r.Context())
	if err != nil {
		writeServiceError(w, r, "Failed to list clusters", err)
		return
	}
	if clusters == nil {
		clusters = []*domain.Cluster{}
	}
	writeJSON(w, clusters, http.StatusOK)
}

// GetCluster returns a single cluster
func (h *ClusterHandler) GetCluster(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	cluster, err := h.svc.GetCluster(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "Failed to get cluster", err)
		return
	}
	writeJSON(w, cluster, http.StatusOK)
}

// CreateCluster creates a new cluster
func (h *ClusterHandler) CreateCluster(w http.ResponseWriter, r *http.Request) {
	var cluster domain.Cluster
	if !decodeJSON(w, r, &cluster) {
		return
	}
	cluster.ID = 0
	if err := h.svc.CreateCluster(r.Context(), &cluster); err != nil {
		writeServiceError(w, r, "Failed to create cluster", err)
		return
	}
	writeJSON(w, cluster, http.StatusCreated)
}

// UpdateCluster applies a partial cluster update
func (h *ClusterHandler) UpdateCluster(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var upd service.ClusterUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	cluster, err := h.svc.UpdateCluster(r.Context(), id, upd)
	if err != nil {
		writeServiceError(w, r, "Failed to update cluster", err)
		return
	}
	writeJSON(w, cluster, http.StatusOK)
}

// DeleteCluster removes a cluster and detaches its nodes
func (h *ClusterHandler) DeleteCluster(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteCluster(r.Context(), id); err != nil {
		writeServiceError(w, r, "Failed to delete cluster", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAttributes returns the cluster attributes
func (h *ClusterHandler) GetAttributes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	attrs, err := h.svc.GetAttributes(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "Failed to get attributes", err)
		return
	}
	writeJSON(w, attrs, http.StatusOK)
}

// UpdateAttributes replaces the editable attributes
func (h *ClusterHandler) UpdateAttributes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body map[string]json.RawMessage
	if !decodeJSON(w, r, &body) {
		return
	}
	attrs, err := h.svc.UpdateAttributes(r.Context(), id, body)
	if err != nil {
		writeServiceError(w, r, "Failed to update attributes", err)
		return
	}
	writeJSON(w, attrs, http.StatusOK)
}

// ListNetworks returns the network groups of a cluster
func (h *ClusterHandler) ListNetworks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	groups, err := h.svc.ListNetworks(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "Failed to list networks", err)
		return
	}
	if groups == nil {
		groups = []*domain.NetworkGroup{}
	}
	writeJSON(w, groups, http.StatusOK)
}

// CreateNetwork adds a network group to a cluster
func (h *ClusterHandler) CreateNetwork(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var group domain.NetworkGroup
	if !decodeJSON(w, r, &group) {
		return
	}
	group.ID = 0
	if err := h.svc.CreateNetwork(r.Context(), id, &group); err != nil {
		writeServiceError(w, r, "Failed to create network", err)
		return
	}
	writeJSON(w, group, http.StatusCreated)
}

// DeleteNetwork removes a network group
func (h *ClusterHandler) DeleteNetwork(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteNetwork(r.Context(), id); err != nil {
		writeServiceError(w, r, "Failed to delete network", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
