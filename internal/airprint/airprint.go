// Package airprint advertises CUPS queues over AirPrint through a
// privileged root helper. The web process runs unprivileged; sudo -n is
// expected to allow exactly the helper's subcommands.
package airprint

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/printerpal/printerpal/internal/cups"
	"github.com/printerpal/printerpal/internal/logging"
)

const (
	ensureTimeout  = 45 * time.Second
	restartTimeout = 5 * time.Second

	// Auto-ensure re-runs when the printer set changes or this much time
	// has passed since the last successful run.
	ensureInterval = 10 * time.Minute
)

// Helper invokes the printerpal-root helper binary.
type Helper struct {
	runner cups.Runner
	path   string
}

// NewHelper returns a Helper using the root helper at path.
func NewHelper(runner cups.Runner, path string) *Helper {
	return &Helper{runner: runner, path: path}
}

// Ensure asks the helper to (re)advertise the current printer set. It
// returns the helper's stdout for display.
func (h *Helper) Ensure(ctx context.Context) (string, error) {
	if _, err := os.Stat(h.path); err != nil {
		return "", fmt.Errorf("root helper not found at %s", h.path)
	}
	res, err := h.runner.Run(ctx, ensureTimeout, "sudo", "-n", h.path, "ensure-airprint")
	if err != nil {
		return "", fmt.Errorf("ensure-airprint: %w", err)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// RestartHost reboots the machine through the helper.
func (h *Helper) RestartHost(ctx context.Context) error {
	if _, err := os.Stat(h.path); err != nil {
		return fmt.Errorf("root helper not found at %s", h.path)
	}
	if _, err := h.runner.Run(ctx, restartTimeout, "sudo", "-n", h.path, "restart-host"); err != nil {
		return fmt.Errorf("restart-host: %w", err)
	}
	return nil
}

// AutoEnsurer re-runs Ensure when the set of printers changes or on a
// ten-minute cadence. Failures are logged and swallowed; AirPrint may not
// be set up in every deployment.
type AutoEnsurer struct {
	helper *Helper

	mu       sync.Mutex
	lastSig  string
	lastTime time.Time
}

// NewAutoEnsurer wraps helper with change-and-cadence gating.
func NewAutoEnsurer(helper *Helper) *AutoEnsurer {
	return &AutoEnsurer{helper: helper}
}

// MaybeEnsure runs Ensure if the sorted printer-name signature differs
// from the last run or the cadence has elapsed. Concurrent callers do not
// wait on each other; whoever holds the lock does the work.
func (a *AutoEnsurer) MaybeEnsure(ctx context.Context, printerNames []string) {
	names := append([]string(nil), printerNames...)
	sort.Strings(names)
	sig := strings.Join(names, ",")

	if !a.mu.TryLock() {
		return
	}
	defer a.mu.Unlock()

	if sig == a.lastSig && time.Since(a.lastTime) <= ensureInterval {
		return
	}
	if _, err := a.helper.Ensure(ctx); err != nil {
		logging.Debug("airprint auto-ensure failed", zap.Error(err))
		return
	}
	a.lastSig = sig
	a.lastTime = time.Now()
}
