package devicectl

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"

	"mdmdispatch/internal/apperrors"
	"mdmdispatch/internal/config"
)

// RestoreMode selects between an in-place OS update and a full erase.
type RestoreMode string

const (
	RestoreUpdate RestoreMode = "update"
	RestoreErase  RestoreMode = "erase"
)

func (m RestoreMode) flag() (string, error) {
	switch m {
	case RestoreUpdate:
		return "--update", nil
	case RestoreErase:
		return "--erase", nil
	default:
		return "", apperrors.Validation("mode", fmt.Sprintf("unknown restore mode %q", string(m)))
	}
}

// Restorer drives idevicerestore. At most one restore runs at a time; the
// tool cannot handle concurrent invocations against the same device.
type Restorer struct {
	binPath   string
	logger    *slog.Logger
	restoring atomic.Bool
}

// NewRestorer creates a restorer. The binary path comes from
// IDEVICERESTORE_PATH, falling back to idevicerestore on PATH.
func NewRestorer() *Restorer {
	return &Restorer{
		binPath: config.GetEnv("IDEVICERESTORE_PATH", "idevicerestore"),
		logger:  slog.With("component", "devicectl"),
	}
}

// Restore flashes the given IPSW image and returns the tool's combined
// output. Returns a conflict error if a restore is already in progress.
func (r *Restorer) Restore(ctx context.Context, ipswPath string, mode RestoreMode) (string, error) {
	flag, err := mode.flag()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(ipswPath); err != nil {
		return "", apperrors.Validation("ipswPath", fmt.Sprintf("IPSW file not found: %s", ipswPath))
	}
	if !r.restoring.CompareAndSwap(false, true) {
		return "", apperrors.Conflict("restore", "restore operation already in progress")
	}
	defer r.restoring.Store(false)

	r.logger.Info("Starting restore", "mode", string(mode), "ipsw", ipswPath)

	out, err := exec.CommandContext(ctx, r.binPath, flag, ipswPath).CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		r.logger.Warn("Restore failed", "mode", string(mode), "error", err)
		return output, apperrors.Internal("devicectl.restore", err)
	}

	r.logger.Info("Restore completed", "mode", string(mode))
	return output, nil
}
