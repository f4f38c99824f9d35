package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
)

// ErrLocked is returned when another run holds the lock.
var ErrLocked = eris.New("run lock held by another process")

// LockMaxAge is how long a lock may be held before it is considered
// abandoned, whether or not its pid is still alive.
const LockMaxAge = 12 * time.Hour

// RunLock is an exclusive lock file guarding against overlapping pipeline
// runs.
type RunLock struct {
	path string
	// Stale describes the abandoned lock that was taken over, if any.
	Stale string
}

// AcquireRunLock creates path exclusively. The file holds the owner pid and
// start time. A lock whose owner is no longer running, or that is older than
// LockMaxAge, is taken over.
func AcquireRunLock(path string) (*RunLock, error) {
	return acquireRunLock(path, time.Now(), LockMaxAge)
}

func acquireRunLock(path string, now time.Time, maxAge time.Duration) (*RunLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, eris.Wrap(err, "runlock: create dir")
	}

	var stale string
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			defer f.Close()
			fmt.Fprintf(f, "pid=%d started=%s\n", os.Getpid(), now.Format(time.RFC3339))
			return &RunLock{path: path, Stale: stale}, nil
		}
		if !os.IsExist(err) {
			return nil, eris.Wrap(err, "runlock: create")
		}

		holder, abandoned := inspectLock(path, now, maxAge)
		if !abandoned {
			return nil, eris.Wrapf(ErrLocked, "runlock: %s (%s)", path, holder)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, eris.Wrap(err, "runlock: remove stale lock")
		}
		if holder != "" {
			stale = holder
		}
	}
	return nil, eris.Wrapf(ErrLocked, "runlock: %s", path)
}

// inspectLock reads the lock at path and reports whether its holder is gone.
func inspectLock(path string, now time.Time, maxAge time.Duration) (string, bool) {
	info, err := os.Stat(path)
	if err != nil {
		// vanished between create and stat; retry the create
		return "", os.IsNotExist(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "unreadable", false
	}
	holder := strings.TrimSpace(string(data))

	var pid int
	var started string
	if _, err := fmt.Sscanf(holder, "pid=%d started=%s", &pid, &started); err != nil {
		// a holder may still be writing its pid
		return holder, now.Sub(info.ModTime()) > time.Minute
	}
	if at, err := time.Parse(time.RFC3339, started); err == nil && now.Sub(at) > maxAge {
		return holder, true
	}
	return holder, !processAlive(pid)
}

// processAlive reports whether pid names a running process. Our own pid is
// always alive.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	if pid == os.Getpid() {
		return true
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	if err == nil || errors.Is(err, syscall.EPERM) {
		return true
	}
	return !errors.Is(err, os.ErrProcessDone) && !errors.Is(err, syscall.ESRCH)
}

// Release removes the lock file.
func (l *RunLock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return eris.Wrap(err, "runlock: release")
	}
	return nil
}
