// Package lock implements the cross-invocation run lock: a marker file whose
// presence means another invocation may be running. A marker older than the
// processing timeout is treated as abandoned by a crashed run and replaced.
//
// Liveness of the previous holder is never checked; only the marker's
// modification time matters.
package lock

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/aatumaykin/cronrunner/internal/logger"
)

// DefaultTimeout is the staleness timeout used when none is configured.
const DefaultTimeout = 600 * time.Second

// Status is the outcome of Acquire.
type Status int

const (
	// Acquired means the caller now holds the lock.
	Acquired Status = iota
	// AlreadyRunning means a fresh marker belongs to another invocation.
	AlreadyRunning
)

func (s Status) String() string {
	if s == Acquired {
		return "acquired"
	}
	return "already_running"
}

// Lock is a file-presence lock with a staleness timeout.
type Lock struct {
	path    string
	timeout time.Duration
	logger  *logger.Logger
	now     func() time.Time
}

// New returns a lock backed by the marker file at path.
func New(path string, timeout time.Duration, log *logger.Logger) *Lock {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Lock{
		path:    path,
		timeout: timeout,
		logger:  log,
		now:     time.Now,
	}
}

// WithClock replaces the time source used for age checks and marker stamps.
func (l *Lock) WithClock(now func() time.Time) *Lock {
	l.now = now
	return l
}

// Path returns the marker file path.
func (l *Lock) Path() string { return l.path }

// Timeout returns the staleness timeout.
func (l *Lock) Timeout() time.Duration { return l.timeout }

// Age reports how old the current marker is. ok is false when there is no marker.
func (l *Lock) Age() (age time.Duration, ok bool, err error) {
	info, err := os.Stat(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrapf(err, "stat lock marker %s", l.path)
	}
	return l.now().Sub(info.ModTime()), true, nil
}

// Acquire takes the lock unless a fresh marker exists. A stale marker is
// deleted first. The marker is created with O_EXCL, so two processes racing
// on an absent marker cannot both win; two processes that both judge the
// same marker stale can still both remove it before one recreates it.
func (l *Lock) Acquire() (Status, error) {
	age, exists, err := l.Age()
	if err != nil {
		return AlreadyRunning, err
	}

	if exists {
		if age < l.timeout {
			l.logger.Debug("lock marker is fresh",
				logger.Field{Key: "path", Value: l.path},
				logger.Field{Key: "age", Value: age.String()})
			return AlreadyRunning, nil
		}

		l.logger.Warn("removing stale lock marker",
			logger.Field{Key: "path", Value: l.path},
			logger.Field{Key: "age", Value: age.String()},
			logger.Field{Key: "timeout", Value: l.timeout.String()})
		if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return AlreadyRunning, errors.Wrapf(err, "remove stale lock marker %s", l.path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return AlreadyRunning, errors.Wrapf(err, "create lock directory %s", filepath.Dir(l.path))
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if errors.Is(err, fs.ErrExist) {
		return AlreadyRunning, nil
	}
	if err != nil {
		return AlreadyRunning, errors.Wrapf(err, "create lock marker %s", l.path)
	}
	if err := file.Close(); err != nil {
		return AlreadyRunning, errors.Wrapf(err, "close lock marker %s", l.path)
	}

	stamp := l.now()
	if err := os.Chtimes(l.path, stamp, stamp); err != nil {
		l.logger.Warn("failed to stamp lock marker", logger.Field{Key: "path", Value: l.path},
			logger.Field{Key: "error", Value: err})
	}

	l.logger.Debug("lock acquired", logger.Field{Key: "path", Value: l.path})
	return Acquired, nil
}

// Release deletes the marker unconditionally. A missing marker is not an error.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, "remove lock marker %s", l.path)
	}
	l.logger.Debug("lock released", logger.Field{Key: "path", Value: l.path})
	return nil
}
