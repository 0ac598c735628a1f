// Package lock implements the single-instance advisory file lock
// (spec §5, §6): at most one vbackup process runs against a host's
// state at a time.
package lock

import (
	"os"

	"golang.org/x/sys/unix"

	vbErrors "vbackup/internal/errors"
)

// DefaultPath is the well-known lock file location named in spec §6.
const DefaultPath = "/run/vbackup.lock"

// Lock holds an acquired advisory exclusive lock on a file.
type Lock struct {
	file *os.File
}

// Acquire opens path (creating it at mode 0600 if absent) and takes a
// non-blocking exclusive flock. Returns a distinguishable error for
// "cannot open the file" versus "another process already holds it" so
// main can map each to its own exit code (spec §6: exit 1 vs exit 2).
func Acquire(path string) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, vbErrors.New(vbErrors.ErrCodeLockUnavailable, "lock", "open", "cannot open lock file").WithCause(err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		return nil, vbErrors.New(vbErrors.ErrCodeLockBusy, "lock", "flock", "another vbackup process is already running").WithCause(err)
	}

	return &Lock{file: file}, nil
}

// Release drops the lock and closes the underlying file descriptor.
func (l *Lock) Release() error {
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		l.file.Close()
		return vbErrors.New(vbErrors.ErrCodeEnvironment, "lock", "unlock", "failed to release lock file").WithCause(err)
	}
	return l.file.Close()
}

// IsUnavailable reports whether err is the "cannot open" class of
// failure (exit code 1), as opposed to "already running" (exit code 2).
func IsUnavailable(err error) bool {
	return vbErrors.IsCode(err, vbErrors.ErrCodeLockUnavailable)
}

// IsBusy reports whether err means another process already holds the lock.
func IsBusy(err error) bool {
	return vbErrors.IsCode(err, vbErrors.ErrCodeLockBusy)
}
