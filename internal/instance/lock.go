// Package instance guarantees a single running control plane per data
// directory. The OS releases the lock when the holder exits, crashes included.
package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const lockFileName = "kiosk.lock"

// ErrAlreadyRunning is returned by Acquire when another process holds the lock.
var ErrAlreadyRunning = errors.New("another kiosk instance is running")

// Lock is a held single-instance lock.
type Lock struct {
	path string
	file *os.File
}

// Acquire takes the lock in dir without waiting. When the lock is held
// elsewhere the error wraps ErrAlreadyRunning and names the holder.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	path := filepath.Join(dir, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	l := &Lock{path: path, file: f}
	if err := l.tryLock(); err != nil {
		f.Close()
		if isContention(err) {
			return nil, fmt.Errorf("%w (%s)", ErrAlreadyRunning, describeHolder(path))
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	l.writeHolder()
	return l, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release drops the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = l.file.Truncate(0) // holder info is advisory
	l.unlock()
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *Lock) writeHolder() {
	_ = l.file.Truncate(0)
	_, _ = l.file.Seek(0, 0)
	fmt.Fprintf(l.file, "pid:%d\ntime:%s\n", os.Getpid(), time.Now().Format(time.RFC3339))
	_ = l.file.Sync()
}

// Holder returns the pid recorded in dir's lock file and whether that
// process still appears to be alive.
func Holder(dir string) (pid int, alive bool) {
	data, err := os.ReadFile(filepath.Join(dir, lockFileName))
	if err != nil {
		return 0, false
	}
	for _, line := range strings.Split(string(data), "\n") {
		if v, ok := strings.CutPrefix(line, "pid:"); ok {
			pid, err = strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return 0, false
			}
			return pid, isProcessAlive(pid)
		}
	}
	return 0, false
}

func describeHolder(path string) string {
	pid, alive := Holder(filepath.Dir(path))
	switch {
	case pid == 0:
		return "holder unknown"
	case !alive:
		return fmt.Sprintf("pid %d, stale", pid)
	default:
		return fmt.Sprintf("pid %d", pid)
	}
}
