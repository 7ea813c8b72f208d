// Package api provides the HTTP API handlers and routing for the MDM
// dispatch service.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"mdmdispatch/internal/apperrors"
	"mdmdispatch/internal/command"
	"mdmdispatch/internal/devicectl"
	"mdmdispatch/internal/engine"
	"mdmdispatch/internal/health"
	"mdmdispatch/internal/history"
	"mdmdispatch/internal/observability"
)

// maxRequestBodySize limits request body to 1MB to prevent memory exhaustion
const maxRequestBodySize = 1 << 20 // 1 MB

// Submitter accepts command submissions for asynchronous dispatch.
// Implemented by the dispatch engine.
type Submitter interface {
	Submit(deviceToken string, payload command.Payload) (*command.Ack, error)
}

// Handler contains HTTP handlers for the dispatch API
type Handler struct {
	submitter Submitter
	history   *history.Store
	catalog   *command.Catalog
	lister    *devicectl.Lister
	restorer  *devicectl.Restorer
	metrics   *observability.Metrics
	health    *health.Checker
}

// NewHandler creates a new API handler
func NewHandler(cfg RouterConfig) *Handler {
	return &Handler{
		submitter: cfg.Submitter,
		history:   cfg.History,
		catalog:   cfg.Catalog,
		lister:    cfg.Lister,
		restorer:  cfg.Restorer,
		metrics:   cfg.Metrics,
		health:    cfg.HealthChecker,
	}
}

// SubmitCommand handles POST /v1/commands. The submission is acknowledged
// with 202 and the derived CommandUUID; the send happens asynchronously.
func (h *Handler) SubmitCommand(w http.ResponseWriter, r *http.Request) {
	// Limit request body size to prevent memory exhaustion
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req command.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ack, err := h.submitter.Submit(req.DeviceToken, req.Payload)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, ack)
}

// templateSubmission is the body for submitting a catalog template.
type templateSubmission struct {
	DeviceToken string `json:"deviceToken"`
}

// SubmitTemplate handles POST /v1/commands/templates/{type} - submits a
// catalog template to a device.
func (h *Handler) SubmitTemplate(w http.ResponseWriter, r *http.Request) {
	commandType := r.PathValue("type")
	if commandType == "" {
		h.writeError(w, http.StatusBadRequest, "Command type is required")
		return
	}

	template, ok := h.catalog.Get(commandType)
	if !ok {
		h.handleError(w, r, apperrors.NotFound("template", commandType))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req templateSubmission
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ack, err := h.submitter.Submit(req.DeviceToken, template.Instantiate())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, ack)
}

// History handles GET /v1/commands/history - serves the full execution
// history snapshot.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.history.Snapshot())
}

// Templates handles GET /v1/commands/templates
func (h *Handler) Templates(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"templates": h.catalog.Templates(),
	})
}

// ListDevices handles GET /v1/devices - lists attached devices.
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	if h.lister == nil {
		h.writeError(w, http.StatusNotImplemented, "Device listing is not enabled")
		return
	}

	devices, err := h.lister.ListDevices(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if devices == nil {
		devices = []string{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

// restoreRequest is the body for POST /v1/restore.
type restoreRequest struct {
	IPSWPath string `json:"ipswPath"`
	Mode     string `json:"mode"`
}

// Restore handles POST /v1/restore - flashes an OS image onto the attached
// device. Synchronous; the restore tool streams for minutes.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	if h.restorer == nil {
		h.writeError(w, http.StatusNotImplemented, "Restore is not enabled")
		return
	}

	var req restoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	output, err := h.restorer.Restore(r.Context(), req.IPSWPath, devicectl.RestoreMode(req.Mode))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"output": output})
}

// Livez handles GET /livez - liveness probe.
// Returns 200 if the process is alive. Does not check dependencies.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	response := h.health.Liveness(r.Context())
	h.writeJSON(w, http.StatusOK, response)
}

// Readyz handles GET /readyz - readiness probe.
// Returns 200 if the service is ready to accept traffic.
// Returns 503 if the dispatch engine is unavailable.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsHealthy() {
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, response)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// handleError handles errors from the engine with appropriate HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		slog.Error("Internal error", "error", err, "path", r.URL.Path)
	} else {
		slog.Warn("Client error", "error", err, "path", r.URL.Path, "status", status)
	}
	h.writeError(w, status, err.Error())
}

// Verify the engine satisfies the handler's submission contract.
var _ Submitter = (*engine.Engine)(nil)
