// Package power asks the host operating system to power off.
package power

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
)

// ErrUnsupported is returned on platforms where shutdown is not offered.
var ErrUnsupported = errors.New("host shutdown is only supported on windows")

// Runner executes a command to completion.
type Runner func(ctx context.Context, name string, args ...string) error

// Shutdown powers off the host machine.
type Shutdown struct {
	GOOS   string
	Run    Runner
	Logger *slog.Logger
}

// New returns a Shutdown for the running platform.
func New(logger *slog.Logger) *Shutdown {
	if logger == nil {
		logger = slog.Default()
	}
	return &Shutdown{GOOS: runtime.GOOS, Run: run, Logger: logger.With("component", "power")}
}

// Request starts an immediate host shutdown.
func (s *Shutdown) Request(ctx context.Context) error {
	if s.GOOS != "windows" {
		return ErrUnsupported
	}
	if err := s.Run(ctx, "shutdown", "/s", "/t", "0"); err != nil {
		return fmt.Errorf("shutdown command: %w", err)
	}
	return nil
}

// TryRequest is Request for the UI boundary: it fails closed, reporting
// false instead of an error.
func (s *Shutdown) TryRequest(ctx context.Context) bool {
	if err := s.Request(ctx); err != nil {
		s.Logger.Warn("host shutdown failed", "err", err)
		return false
	}
	return true
}

func run(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil && len(out) > 0 {
		return fmt.Errorf("%w: %s", err, out)
	}
	return err
}
