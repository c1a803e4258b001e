package power

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

func TestUnsupportedPlatform(t *testing.T) {
	called := false
	s := &Shutdown{GOOS: "linux", Logger: slog.Default(), Run: func(context.Context, string, ...string) error {
		called = true
		return nil
	}}
	if err := s.Request(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
	if s.TryRequest(context.Background()) {
		t.Error("TryRequest must be false on unsupported platforms")
	}
	if called {
		t.Error("no command may run on unsupported platforms")
	}
}

func TestWindowsRunsShutdown(t *testing.T) {
	var name string
	var args []string
	s := &Shutdown{GOOS: "windows", Logger: slog.Default(), Run: func(_ context.Context, n string, a ...string) error {
		name, args = n, a
		return nil
	}}
	if !s.TryRequest(context.Background()) {
		t.Fatal("TryRequest = false")
	}
	if name != "shutdown" || len(args) != 3 || args[0] != "/s" || args[2] != "0" {
		t.Errorf("ran %s %v", name, args)
	}
}

func TestCommandFailureFailsClosed(t *testing.T) {
	s := &Shutdown{GOOS: "windows", Logger: slog.Default(), Run: func(context.Context, string, ...string) error {
		return errors.New("access denied")
	}}
	if s.TryRequest(context.Background()) {
		t.Fatal("TryRequest must be false when the command fails")
	}
}
