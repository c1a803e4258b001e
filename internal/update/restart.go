package update

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// CommandRestarter launches an installer command for the downloaded package
// and then quits the application. The quit happens even when the installer
// cannot be started: a restart that began is never abandoned.
type CommandRestarter struct {
	// Command is split on whitespace; the package path is appended.
	Command string
	Quit    func()
	Logger  *slog.Logger

	start func(name string, args ...string) error
}

// Restart implements Restarter.
func (r *CommandRestarter) Restart(info Info) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defer func() {
		if r.Quit != nil {
			r.Quit()
		}
	}()

	fields := strings.Fields(r.Command)
	if len(fields) == 0 {
		logger.Warn("no install command configured; quitting without install", "version", info.Version)
		return nil
	}
	if info.Path == "" {
		return errors.New("update package path is empty")
	}
	args := append(fields[1:], info.Path)
	if err := r.launch(fields[0], args...); err != nil {
		return fmt.Errorf("start installer: %w", err)
	}
	logger.Info("installer started", "command", fields[0], "package", info.Path)
	return nil
}

func (r *CommandRestarter) launch(name string, args ...string) error {
	if r.start != nil {
		return r.start(name, args...)
	}
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// The installer outlives this process.
	return cmd.Process.Release()
}
