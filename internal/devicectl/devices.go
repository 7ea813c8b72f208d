// Package devicectl wraps the libimobiledevice command line tools for
// listing attached devices and restoring OS images. These are plain
// subprocess invocations; the interesting state machine lives in the
// dispatch engine, not here.
package devicectl

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"mdmdispatch/internal/apperrors"
	"mdmdispatch/internal/config"
)

// Lister lists attached iOS devices via idevice_id.
type Lister struct {
	binPath string
	logger  *slog.Logger
}

// NewLister creates a device lister. The binary path comes from
// IDEVICE_ID_PATH, falling back to idevice_id on PATH.
func NewLister() *Lister {
	return &Lister{
		binPath: config.GetEnv("IDEVICE_ID_PATH", "idevice_id"),
		logger:  slog.With("component", "devicectl"),
	}
}

// ListDevices returns the UDIDs of connected devices. An empty list is not
// an error.
func (l *Lister) ListDevices(ctx context.Context) ([]string, error) {
	out, err := exec.CommandContext(ctx, l.binPath, "-l").CombinedOutput()
	if err != nil {
		return nil, apperrors.Internal("devicectl.listDevices",
			fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out))))
	}

	var devices []string
	for _, line := range strings.Split(string(out), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			devices = append(devices, trimmed)
		}
	}

	l.logger.Info("Listed connected devices", "count", len(devices))
	return devices, nil
}
