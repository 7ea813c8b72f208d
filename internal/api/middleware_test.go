package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mdmdispatch/internal/command"
	"mdmdispatch/internal/health"
	"mdmdispatch/internal/history"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()
	const apiKey = "secret-key-123"
	protected := AuthMiddleware(apiKey)(okHandler())

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid key", "Bearer secret-key-123", http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong key", "Bearer wrong-key", http.StatusUnauthorized},
		{"wrong scheme", "Basic secret-key-123", http.StatusUnauthorized},
		{"no scheme", "secret-key-123", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/v1/commands/history", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	t.Parallel()
	open := AuthMiddleware("")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/commands/history", nil)
	rec := httptest.NewRecorder()
	open.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", rec.Code)
	}
}

func TestContentTypeMiddleware(t *testing.T) {
	t.Parallel()
	h := ContentTypeMiddleware()(okHandler())

	tests := []struct {
		name        string
		method      string
		contentType string
		wantStatus  int
	}{
		{"json post", http.MethodPost, "application/json", http.StatusOK},
		{"json with charset", http.MethodPost, "application/json; charset=utf-8", http.StatusOK},
		{"wrong type", http.MethodPost, "text/plain", http.StatusUnsupportedMediaType},
		{"get ignores content type", http.MethodGet, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(tt.method, "/v1/commands", strings.NewReader("{}"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Parallel()
	h := RecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler blew up")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/commands/history", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRouter(t *testing.T) {
	t.Parallel()
	catalog, err := command.LoadCatalog("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	router := NewRouter(RouterConfig{
		Submitter:     &stubSubmitter{},
		History:       history.NewStore(),
		Catalog:       catalog,
		HealthChecker: health.NewChecker(readyOK{}),
		APIKey:        "secret",
	})

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		auth       bool
		wantStatus int
	}{
		{"livez is open", http.MethodGet, "/livez", "", false, http.StatusOK},
		{"readyz is open", http.MethodGet, "/readyz", "", false, http.StatusOK},
		{"commands requires auth", http.MethodPost, "/v1/commands", `{"deviceToken":"tok","payload":{"MessageType":"DeviceLock"}}`, false, http.StatusUnauthorized},
		{"commands with auth", http.MethodPost, "/v1/commands", `{"deviceToken":"tok","payload":{"MessageType":"DeviceLock"}}`, true, http.StatusAccepted},
		{"history with auth", http.MethodGet, "/v1/commands/history", "", true, http.StatusOK},
		{"templates with auth", http.MethodGet, "/v1/commands/templates", "", true, http.StatusOK},
		{"template submit with auth", http.MethodPost, "/v1/commands/templates/DeviceLock", `{"deviceToken":"tok"}`, true, http.StatusAccepted},
		{"method not allowed", http.MethodDelete, "/v1/commands", "", true, http.StatusMethodNotAllowed},
		{"unknown route", http.MethodGet, "/v1/unknown", "", true, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var body *strings.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			} else {
				body = strings.NewReader("")
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			if tt.auth {
				req.Header.Set("Authorization", "Bearer secret")
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("%s %s: status = %d, want %d: %s",
					tt.method, tt.path, rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}
