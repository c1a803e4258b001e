//go:build unix

package instance

import (
	"errors"

	"golang.org/x/sys/unix"
)

func (l *Lock) tryLock() error {
	return unix.Flock(int(l.file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

// isContention reports whether a flock failure means another holder.
func isContention(err error) bool {
	return errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN)
}

func (l *Lock) unlock() {
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
}

// isProcessAlive sends signal 0, which checks existence without delivering.
func isProcessAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}
