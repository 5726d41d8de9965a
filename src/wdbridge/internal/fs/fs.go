// Package fs wraps the filesystem operations used by the bridge daemon.
package fs

import (
	"os"

	"go.uber.org/fx"
)

// Module is the Fx module for this package.
var Module = fx.Provide(New)

// BridgeFS wraps the filesystem operations used by wdbridge.
type BridgeFS interface {
	MkdirAll(path string) error
	FileExists(path string) (bool, error)
	Open(name string) (*os.File, error)
	TempFile(dir, pattern string) (*os.File, error)
	Remove(name string) error
}

type fsImpl struct{}

// New creates a new BridgeFS.
func New() BridgeFS {
	return fsImpl{}
}

// MkdirAll creates a directory and all its parents.
func (fsImpl) MkdirAll(path string) error { return os.MkdirAll(path, os.ModePerm) }

// Open opens a file for reading.
func (fsImpl) Open(name string) (*os.File, error) {
	return os.Open(name)
}

func (fsImpl) TempFile(dir, pattern string) (*os.File, error) {
	return os.CreateTemp(dir, pattern)
}

func (fsImpl) Remove(name string) error {
	return os.Remove(name)
}

func (fsImpl) FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}
