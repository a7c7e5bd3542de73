package updater

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// RunLock is the default Lease: an exclusive file lock held for the whole
// run. Besides guarding against a second process updating the same library,
// holding an open file handle keeps the data dir mounted/awake for the
// duration of the run.
type RunLock struct {
	Path string
}

func NewRunLock(dataDir string) *RunLock {
	return &RunLock{Path: filepath.Join(dataDir, "update.lock")}
}

func (l *RunLock) Acquire() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure lock dir: %w", err)
	}

	fl := flock.New(l.Path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", l.Path, err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = fl.Unlock()
		})
	}, nil
}
