package os

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockName = "retrohost.lock"

// Flock is an inter-process lock backed by a lock file.
type Flock struct {
	f *flock.Flock
}

// NewFileLock makes a lock file at path (or in the temp dir when empty).
func NewFileLock(path string) (*Flock, error) {
	if path == "" {
		path = filepath.Join(os.TempDir(), lockName)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0770); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0660)
	if err != nil {
		return nil, err
	}
	_ = f.Close()

	return &Flock{f: flock.New(path)}, nil
}

// DirLock locks a directory with a hidden lock file inside of it.
func DirLock(dir string) (*Flock, error) { return NewFileLock(filepath.Join(dir, "."+lockName)) }

func (f *Flock) Lock() error   { return f.f.Lock() }
func (f *Flock) RLock() error  { return f.f.RLock() }
func (f *Flock) Unlock() error { return f.f.Unlock() }
