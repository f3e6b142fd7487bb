package syncer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"dubtrack/internal/store"
)

// runLock is an advisory per-job-type lock. Concurrent triggers of the same
// job are tolerated, not prevented; the lock only detects the overlap so it
// can be recorded on the run.
type runLock struct {
	lock *flock.Flock
	held bool
}

func acquireRunLock(dir string, jobType store.JobType) *runLock {
	if strings.TrimSpace(dir) == "" {
		return &runLock{}
	}
	name := fmt.Sprintf("%s.lock", strings.ToLower(string(jobType)))
	lock := flock.New(filepath.Join(dir, name))
	held, err := lock.TryLock()
	if err != nil {
		return &runLock{lock: lock}
	}
	return &runLock{lock: lock, held: held}
}

// Overlapping reports whether another run of the same job type holds the
// lock.
func (l *runLock) Overlapping() bool {
	return l.lock != nil && !l.held
}

func (l *runLock) release() {
	if l.lock != nil && l.held {
		_ = l.lock.Unlock()
	}
}
