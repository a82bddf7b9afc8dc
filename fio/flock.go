package fio

import (
	"path/filepath"

	"github.com/gofrs/flock"
)

type FileLocker interface {
	TryLock() (bool, error)
	Unlock() error
}

const flockName = ".clipring.lock"

var _ FileLocker = (*flock.Flock)(nil)

// NewFlock returns the lock guarding exports into dirPath.
func NewFlock(dirPath string) *flock.Flock {
	return flock.New(filepath.Join(dirPath, flockName))
}
