//go:build unix

package instance

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

func TestAcquireExclusive(t *testing.T) {
	dir := t.TempDir()

	first, err := Acquire(dir)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	// flock conflicts between separate opens, even within one process.
	if _, err := Acquire(dir); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Acquire err = %v, want ErrAlreadyRunning", err)
	}

	if err := first.Release(); err != nil {
		t.Fatal(err)
	}
	again, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	defer again.Release()
}

func TestHolderRecordsPid(t *testing.T) {
	dir := t.TempDir()
	l, err := Acquire(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Release()

	pid, alive := Holder(dir)
	if pid != os.Getpid() || !alive {
		t.Errorf("Holder = %d, %v; want %d, true", pid, alive, os.Getpid())
	}
}

func TestReleaseTwice(t *testing.T) {
	l, err := Acquire(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Release(); err != nil {
		t.Fatal(err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
}

func TestHolderWithoutLockFile(t *testing.T) {
	if pid, alive := Holder(t.TempDir()); pid != 0 || alive {
		t.Errorf("Holder = %d, %v", pid, alive)
	}
}

func TestIsContention(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{unix.EWOULDBLOCK, true},
		{fmt.Errorf("flock: %w", unix.EAGAIN), true},
		{unix.ENOLCK, false},
		{unix.EINVAL, false},
	}
	for _, tt := range tests {
		if got := isContention(tt.err); got != tt.want {
			t.Errorf("isContention(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
