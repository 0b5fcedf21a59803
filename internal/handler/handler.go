package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/containerd/errdefs"

	"fleetforge/internal/logging"
	"fleetforge/internal/service"
	"fleetforge/internal/topology"
)

// Error response structure
type ErrorResponse struct {
	Error   string                    `json:"error"`
	Details string                    `json:"details,omitempty"`
	Reason  *topology.ValidationError `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.WithComponent("http").WithError(err).Warn("Failed to encode JSON")
	}
}

func writeError(w http.ResponseWriter, error, details string, statusCode int) {
	writeJSON(w, ErrorResponse{Error: error, Details: details}, statusCode)
}

// writeServiceError maps an error class to a status code. Unclassified
// errors are internal and their text is only logged.
func writeServiceError(w http.ResponseWriter, r *http.Request, action string, err error) {
	status := statusFromError(err)
	resp := ErrorResponse{Error: action, Details: err.Error()}

	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		resp.Error = svcErr.Msg
		resp.Details = ""
	}
	if verr, ok := topology.AsValidationError(err); ok {
		resp.Reason = verr
	}

	logger := requestLogger(r).WithError(err)
	if status == http.StatusInternalServerError {
		logger.Error(action)
		resp.Details = ""
	} else {
		logger.Info(action)
	}
	writeJSON(w, resp, status)
}

func statusFromError(err error) int {
	switch {
	case errdefs.IsInvalidArgument(err):
		return http.StatusBadRequest
	case errdefs.IsNotFound(err):
		return http.StatusNotFound
	case errdefs.IsAlreadyExists(err), errdefs.IsConflict(err):
		return http.StatusConflict
	case errdefs.IsFailedPrecondition(err):
		return http.StatusPreconditionFailed
	case errdefs.IsNotImplemented(err):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

// decodeJSON reads the request body into v. It writes the error response
// itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		writeError(w, "Empty request received", "", http.StatusBadRequest)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, "Invalid json received", err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// pathID parses the {name} wildcard as a positive id, writing a 404 when it
// is not one
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, "Not found", "invalid id "+strconv.Quote(r.PathValue(name)), http.StatusNotFound)
		return 0, false
	}
	return id, true
}
