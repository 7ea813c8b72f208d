package command

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "commands.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write catalog file: %v", err)
	}
	return path
}

func TestLoadCatalog_Defaults(t *testing.T) {
	t.Parallel()

	catalog, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}

	tmpl, ok := catalog.Get("DeviceLock")
	if !ok {
		t.Fatal("expected built-in DeviceLock template")
	}
	if tmpl.Payload["MessageType"] != "DeviceLock" || tmpl.Payload["PIN"] != "1234" {
		t.Errorf("unexpected default payload: %+v", tmpl.Payload)
	}
}

func TestLoadCatalog_FromFile(t *testing.T) {
	t.Parallel()

	path := writeCatalog(t, `
commands:
  - type: DeviceLock
    payload:
      MessageType: DeviceLock
      PIN: "0000"
  - type: DeviceInformation
    payload:
      MessageType: DeviceInformation
  - type: EraseDevice
    payload:
      MessageType: EraseDevice
`)

	catalog, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}

	tmpl, ok := catalog.Get("DeviceLock")
	if !ok {
		t.Fatal("expected DeviceLock template")
	}
	if tmpl.Payload["PIN"] != "0000" {
		t.Errorf("file template should override the default PIN: %+v", tmpl.Payload)
	}

	templates := catalog.Templates()
	if len(templates) != 3 {
		t.Fatalf("expected 3 templates, got %d", len(templates))
	}
	// File order is preserved.
	for i, want := range []string{"DeviceLock", "DeviceInformation", "EraseDevice"} {
		if templates[i].Type != want {
			t.Errorf("templates[%d] = %s, want %s", i, templates[i].Type, want)
		}
	}

	if _, ok := catalog.Get("RestartDevice"); ok {
		t.Error("unexpected template RestartDevice")
	}
}

func TestLoadCatalog_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing type",
			content: `
commands:
  - payload:
      MessageType: DeviceLock
`,
			wantErr: "missing type",
		},
		{
			name: "empty payload",
			content: `
commands:
  - type: DeviceLock
`,
			wantErr: "no payload",
		},
		{
			name: "duplicate type",
			content: `
commands:
  - type: DeviceLock
    payload:
      MessageType: DeviceLock
  - type: DeviceLock
    payload:
      MessageType: DeviceLock
`,
			wantErr: "duplicate",
		},
		{
			name:    "invalid yaml",
			content: "commands: [",
			wantErr: "parse command catalog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadCatalog(writeCatalog(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}

	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestTemplateInstantiate(t *testing.T) {
	t.Parallel()

	catalog, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	tmpl, _ := catalog.Get("DeviceLock")

	p := tmpl.Instantiate()
	p[UUIDKey] = "uuid-1"
	p["PIN"] = "9999"

	fresh, _ := catalog.Get("DeviceLock")
	if fresh.Payload.UUID() != "" {
		t.Error("mutating an instantiated payload leaked a UUID into the catalog")
	}
	if fresh.Payload["PIN"] != "1234" {
		t.Errorf("catalog payload mutated: %+v", fresh.Payload)
	}
}
