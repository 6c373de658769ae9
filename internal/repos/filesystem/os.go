package filesystem

import (
	"io/fs"
	"os"
	"path/filepath"
)

// OSFileSystem implements the read-side filesystem contracts of the repository
// and fetch packages using the operating system primitives.
type OSFileSystem struct{}

// Abs resolves an absolute path.
func (OSFileSystem) Abs(path string) (string, error) {
	return filepath.Abs(path)
}

// EvalSymlinks resolves every symbolic link contained in the path.
func (OSFileSystem) EvalSymlinks(path string) (string, error) {
	return filepath.EvalSymlinks(path)
}

// Stat retrieves file metadata.
func (OSFileSystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// MkdirAll ensures a directory hierarchy exists with the provided permissions.
func (OSFileSystem) MkdirAll(path string, permissions fs.FileMode) error {
	return os.MkdirAll(path, permissions)
}
