package handler

import (
	"net/http"

	"fleetforge/internal/domain"
	"fleetforge/internal/service"
)

// NotificationHandler handles notification requests
type NotificationHandler struct {
	svc *service.NotificationService
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// Register adds the notification routes to mux
func (h *NotificationHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/notifications", h.ListNotifications)
	mux.HandleFunc("PUT /api/notifications", h.UpdateNotifications)
	mux.HandleFunc("GET /api/notifications/{id}", h.GetNotification)
	mux.HandleFunc("PUT /api/notifications/{id}", h.UpdateNotification)
}

// ListNotifications returns all notifications, newest first
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	notes, err := h.svc.ListNotifications(r.Context())
	if err != nil {
		writeServiceError(w, r, "Failed to list notifications", err)
		return
	}
	if notes == nil {
		notes = []*domain.Notification{}
	}
	writeJSON(w, notes, http.StatusOK)
}

// GetNotification returns a single notification
func (h *NotificationHandler) GetNotification(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	n, err := h.svc.GetNotification(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "Failed to get notification", err)
		return
	}
	writeJSON(w, n, http.StatusOK)
}

// UpdateNotification changes the status of one notification
func (h *NotificationHandler) UpdateNotification(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	n, err := h.svc.UpdateStatus(r.Context(), id, body.Status)
	if err != nil {
		writeServiceError(w, r, "Failed to update notification", err)
		return
	}
	writeJSON(w, n, http.StatusOK)
}

// UpdateNotifications applies a list of status changes in one transaction
func (h *NotificationHandler) UpdateNotifications(w http.ResponseWriter, r *http.Request) {
	var updates []service.NotificationUpdate
	if !decodeJSON(w, r, &updates) {
		return
	}
	notes, err := h.svc.UpdateStatuses(r.Context(), updates)
	if err != nil {
		writeServiceError(w, r, "Failed to update notifications", err)
		return
	}
	writeJSON(w, notes, http.StatusOK)
}
