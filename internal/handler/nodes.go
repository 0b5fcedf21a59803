package handler

import (
	"net/http"
	"strconv"
	"strings"

	"fleetforge/internal/domain"
	"fleetforge/internal/service"
)

// NodeHandler handles node and topology API requests
type NodeHandler struct {
	svc *service.NodeService
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(svc *service.NodeService) *NodeHandler {
	return &NodeHandler{svc: svc}
}

// Register adds the node routes to mux
func (h *NodeHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/nodes", h.ListNodes)
	mux.HandleFunc("POST /api/nodes", h.RegisterNode)
	mux.HandleFunc("PUT /api/nodes", h.UpdateNodes)
	mux.HandleFunc("GET /api/nodes/{id}", h.GetNode)
	mux.HandleFunc("PUT /api/nodes/{id}", h.UpdateNode)
	mux.HandleFunc("DELETE /api/nodes/{id}", h.DeleteNode)

	mux.HandleFunc("GET /api/nodes/{id}/interfaces", h.GetInterfaces)
	mux.HandleFunc("PUT /api/nodes/{id}/interfaces", h.ApplyAssignment)
	mux.HandleFunc("PUT /api/nodes/interfaces", h.ApplyAssignmentCollection)
	mux.HandleFunc("POST /api/nodes/interfaces/validate", h.ValidateAssignment)
	mux.HandleFunc("POST /api/nodes/interfaces/resolve", h.ResolveConflicts)
}

// ListNodes returns all nodes, optionally filtered by cluster_id
func (h *NodeHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	var clusterID *int64
	if raw := r.URL.Query().Get("cluster_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, "Invalid cluster_id", err.Error(), http.StatusBadRequest)
			return
		}
		clusterID = &id
	}

	nodes, err := h.svc.ListNodes(r.Context(), clusterID)
	if err != nil {
		writeServiceError(w, r, "Failed to list nodes", err)
		return
	}
	if nodes == nil {
		nodes = []*domain.Node{}
	}
	writeJSON(w, nodes, http.StatusOK)
}

// GetNode returns a single node with its interfaces
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	node, err := h.svc.GetNode(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "Failed to get node", err)
		return
	}
	writeJSON(w, node, http.StatusOK)
}

// RegisterNode creates a node reported by a bootstrap agent
func (h *NodeHandler) RegisterNode(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	node, err := h.svc.RegisterNode(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, "Failed to register node", err)
		return
	}
	writeJSON(w, node, http.StatusCreated)
}

// UpdateNode applies a partial update to one node
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var upd service.NodeUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	node, err := h.svc.UpdateNode(r.Context(), id, upd)
	if err != nil {
		writeServiceError(w, r, "Failed to update node", err)
		return
	}
	writeJSON(w, node, http.StatusOK)
}

// UpdateNodes applies a list of partial updates in one transaction
func (h *NodeHandler) UpdateNodes(w http.ResponseWriter, r *http.Request) {
	var updates []service.NodeUpdate
	if !decodeJSON(w, r, &updates) {
		return
	}
	nodes, err := h.svc.UpdateNodes(r.Context(), updates)
	if err != nil {
		writeServiceError(w, r, "Failed to update nodes", err)
		return
	}
	writeJSON(w, nodes, http.StatusOK)
}

// DeleteNode decommissions a node
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteNode(r.Context(), id); err != nil {
		writeServiceError(w, r, "Failed to delete node", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetInterfaces returns the node's interfaces. The ETag carries the
// node's topology version for a later conditional PUT.
func (h *NodeHandler) GetInterfaces(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	nics, version, err := h.svc.GetInterfaces(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "Failed to get interfaces", err)
		return
	}
	w.Header().Set("ETag", formatETag(version))
	writeJSON(w, nics, http.StatusOK)
}

// ApplyAssignment replaces the assignments of one node's interfaces. The
// body is the list of interfaces with their requested networks.
func (h *NodeHandler) ApplyAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var version *int64
	if raw := r.Header.Get("If-Match"); raw != "" {
		v, err := parseETag(raw)
		if err != nil {
			writeError(w, "Invalid If-Match header", err.Error(), http.StatusBadRequest)
			return
		}
		version = &v
	}

	var ifaces []domain.InterfaceProposal
	if !decodeJSON(w, r, &ifaces) {
		return
	}
	proposal := domain.NodeProposal{NodeID: id, Interfaces: ifaces}
	if err := h.svc.ApplyAssignment(r.Context(), proposal, version); err != nil {
		writeServiceError(w, r, "Failed to assign networks", err)
		return
	}

	nics, current, err := h.svc.GetInterfaces(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "Failed to get interfaces", err)
		return
	}
	w.Header().Set("ETag", formatETag(current))
	writeJSON(w, nics, http.StatusOK)
}

// ApplyAssignmentCollection applies proposals for several nodes atomically
func (h *NodeHandler) ApplyAssignmentCollection(w http.ResponseWriter, r *http.Request) {
	var proposals []domain.NodeProposal
	if !decodeJSON(w, r, &proposals) {
		return
	}
	if err := h.svc.ApplyAssignmentCollection(r.Context(), proposals); err != nil {
		writeServiceError(w, r, "Failed to assign networks", err)
		return
	}
	writeJSON(w, map[string]int{"nodes": len(proposals)}, http.StatusOK)
}

// ValidateAssignment reports whether proposals stay within allowed networks
func (h *NodeHandler) ValidateAssignment(w http.ResponseWriter, r *http.Request) {
	var proposals []domain.NodeProposal
	if !decodeJSON(w, r, &proposals) {
		return
	}
	valid, err := h.svc.ValidateAssignment(r.Context(), proposals)
	if err != nil {
		writeServiceError(w, r, "Failed to validate assignment", err)
		return
	}
	writeJSON(w, map[string]bool{"valid": valid}, http.StatusOK)
}

// ResolveConflicts is reserved for automatic remediation
func (h *NodeHandler) ResolveConflicts(w http.ResponseWriter, r *http.Request) {
	var proposals []domain.NodeProposal
	if !decodeJSON(w, r, &proposals) {
		return
	}
	if err := h.svc.ResolveConflicts(r.Context(), proposals); err != nil {
		writeServiceError(w, r, "Failed to resolve conflicts", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func formatETag(version int64) string {
	return strconv.Quote(strconv.FormatInt(version, 10))
}

// parseETag accepts a quoted or bare version, with or without a weak prefix
func parseETag(raw string) (int64, error) {
	tag := strings.TrimPrefix(strings.TrimSpace(raw), "W/")
	tag = strings.Trim(tag, `"`)
	return strconv.ParseInt(tag, 10, 64)
}
