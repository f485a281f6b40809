// Package runlock provides an advisory per-prefix lock so two concurrent
// runs cannot race on the same artifact files. The lock is a file created
// with O_EXCL beside the run's artifacts; a lock left behind by a dead
// process is reclaimed.
package runlock

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Iron-Ham/megaplan/internal/errors"
	"github.com/Iron-Ham/megaplan/internal/logging"
)

// Lock is a held advisory run lock.
type Lock struct {
	path string
}

// Acquire takes the advisory lock at path. It fails with ErrLockHeld when
// another live process holds the lock; a lock whose recorded pid is no
// longer running is treated as stale and taken over.
func Acquire(path string, logger *logging.Logger) (*Lock, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d %s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
			if cerr := f.Close(); cerr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("failed to write run lock: %w", cerr)
			}
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create run lock: %w", err)
		}

		pid, ok := holderPid(path)
		if ok && processAlive(pid) {
			return nil, fmt.Errorf("%w: %s (pid %d)", errors.ErrLockHeld, path, pid)
		}

		logger.Warn("reclaiming stale run lock", "path", path, "pid", pid)
		if rerr := os.Remove(path); rerr != nil && !os.IsNotExist(rerr) {
			return nil, fmt.Errorf("failed to remove stale run lock: %w", rerr)
		}
	}

	return nil, fmt.Errorf("%w: %s", errors.ErrLockHeld, path)
}

// Release removes the lock file. Releasing an already-removed lock is a
// no-op.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// holderPid reads the pid recorded in an existing lock file. A lock file
// that cannot be parsed reports ok=false and is treated as stale.
func holderPid(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, false
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// processAlive reports whether a process with the pid exists.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
