package api

import (
	"net/http"

	"mdmdispatch/internal/command"
	"mdmdispatch/internal/devicectl"
	"mdmdispatch/internal/health"
	"mdmdispatch/internal/history"
	"mdmdispatch/internal/observability"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Submitter     Submitter
	History       *history.Store
	Catalog       *command.Catalog
	Metrics       *observability.Metrics
	HealthChecker *health.Checker
	Lister        *devicectl.Lister
	Restorer      *devicectl.Restorer
	APIKey        string
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg)

	mux := http.NewServeMux()

	// Health check endpoints (liveness/readiness probes) - no auth required
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)

	// Command and device endpoints - auth required
	authMiddleware := AuthMiddleware(cfg.APIKey)
	mux.Handle("POST /v1/commands", authMiddleware(http.HandlerFunc(handler.SubmitCommand)))
	mux.Handle("GET /v1/commands/history", authMiddleware(http.HandlerFunc(handler.History)))
	mux.Handle("GET /v1/commands/templates", authMiddleware(http.HandlerFunc(handler.Templates)))
	mux.Handle("POST /v1/commands/templates/{type}", authMiddleware(http.HandlerFunc(handler.SubmitTemplate)))
	mux.Handle("GET /v1/devices", authMiddleware(http.HandlerFunc(handler.ListDevices)))
	mux.Handle("POST /v1/restore", authMiddleware(http.HandlerFunc(handler.Restore)))

	// Apply middleware chain (order matters: outermost first)
	var h http.Handler = mux
	h = ContentTypeMiddleware()(h)
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics)(h)
	}
	h = LoggingMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}
