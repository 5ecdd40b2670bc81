//go:build unix

// Package lock provides the exclusive inter-process lock that serializes
// mutating bib commands. It uses advisory flock(2) locks, so the kernel
// releases a lock held by a process that crashes or is killed.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/mesh-intelligence/bib/pkg/types"
)

// FileName is the lock file created inside the data directory.
const FileName = "bib.lock"

// Lock is a held exclusive lock. The zero value is not usable; obtain one
// from Acquire.
type Lock struct {
	path string
	file *os.File
}

// Acquire takes the exclusive lock on path without blocking. If another
// process (or another open handle in this process) holds it, Acquire returns
// an error wrapping types.ErrLocked that names the holder's PID when known.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create lock directory: %w", types.ErrIO, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open lock file: %w", types.ErrIO, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			if pid := holderPID(path); pid > 0 {
				return nil, fmt.Errorf("%w (pid %d)", types.ErrLocked, pid)
			}
			return nil, types.ErrLocked
		}
		return nil, fmt.Errorf("%w: flock: %w", types.ErrIO, err)
	}

	// The PID is informational only; failing to record it is harmless.
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}

	return &Lock{path: path, file: f}, nil
}

// Release drops the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = l.file.Truncate(0)
	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// holderPID reads the PID recorded by the current holder, or 0.
func holderPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
