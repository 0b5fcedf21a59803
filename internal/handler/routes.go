package handler

import (
	"net/http"

	"fleetforge/internal/service"
)

// API bundles the services behind the REST surface
type API struct {
	Nodes         *service.NodeService
	Clusters      *service.ClusterService
	Releases      *service.ReleaseService
	Notifications *service.NotificationService

	// Events serves GET /events when set
	Events http.Handler
}

// NewMux registers every API route on a fresh mux
func NewMux(api API) *http.ServeMux {
	mux := http.NewServeMux()

	NewNodeHandler(api.Nodes).Register(mux)
	NewClusterHandler(api.Clusters).Register(mux)
	NewReleaseHandler(api.Releases).Register(mux)
	NewNotificationHandler(api.Notifications).Register(mux)

	if api.Events != nil {
		mux.Handle("GET /events", api.Events)
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	})
	return mux
}
