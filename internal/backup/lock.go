package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/aelpxy/dockup/internal/fault"
)

// RunLock keeps two backup runs from overlapping on one host. The lock is a
// file holding the owner's pid; a lock left by a dead process is reclaimed.
type RunLock struct {
	path string
}

func NewRunLock(lockDir string) *RunLock {
	return &RunLock{path: filepath.Join(lockDir, "run.lock")}
}

func (l *RunLock) Path() string {
	return l.path
}

// Acquire takes the lock without waiting. A live holder yields a LOCKED
// error; failing to create or write the lock file is a CONFIG error.
func (l *RunLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fault.New(fault.KindConfig, "acquire run lock", fmt.Errorf("failed to create lock directory: %w", err))
	}

	for range 2 {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			_, writeErr := fmt.Fprintf(f, "%d\n", os.Getpid())
			closeErr := f.Close()
			if err := errors.Join(writeErr, closeErr); err != nil {
				os.Remove(l.path)
				return fault.New(fault.KindConfig, "acquire run lock", fmt.Errorf("failed to write lock file: %w", err))
			}
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			return fault.New(fault.KindConfig, "acquire run lock", fmt.Errorf("failed to create lock file: %w", err))
		}

		pid, alive := l.Holder()
		if alive {
			return fault.Newf(fault.KindLocked, "acquire run lock", "another run is in progress (pid %d, lock %s)", pid, l.path)
		}
		os.Remove(l.path)
	}

	return fault.Newf(fault.KindLocked, "acquire run lock", "lock %s is contended", l.path)
}

func (l *RunLock) Release() {
	os.Remove(l.path)
}

// Holder reports the pid recorded in the lock file and whether that process
// is still alive.
func (l *RunLock) Holder() (int, bool) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	if err := syscall.Kill(pid, 0); err != nil && !errors.Is(err, syscall.EPERM) {
		return pid, false
	}
	return pid, true
}
