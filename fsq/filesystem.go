package fsq

import (
	"os"
	"path/filepath"

	"github.com/995933447/fsq/internal/fsqutil"
)

// File is the handle the engine appends to. It is a scoped resource owned
// exclusively by the ingest path and flushed/closed on every exit path
// before a rename.
type File interface {
	Write(p []byte) (int, error)
	Sync() error
	Close() error
}

// FileSystem is the create/append/rename/remove/stat/scan adapter FSQ
// consumes from its environment. OSFileSystem is the default, production
// implementation; tests may substitute a fake to exercise error paths
// without touching disk.
type FileSystem interface {
	// Create opens path for exclusive append-write, creating it if
	// necessary. Used both for a brand new current file and for
	// reopening an orphaned one during recovery.
	Create(path string) (File, error)
	Rename(oldPath, newPath string) error
	Remove(path string) error
	// Size returns the current byte size of path.
	Size(path string) (int64, error)
	// ScanDir lists basenames directly inside dir, excluding "." and
	// "..", creating dir first if it does not exist.
	ScanDir(dir string) ([]string, error)
	Join(elem ...string) string
}

// OSFileSystem is the default FileSystem, backed by the local disk.
type OSFileSystem struct{}

func (OSFileSystem) Create(path string) (File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (OSFileSystem) Rename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

func (OSFileSystem) Remove(path string) error {
	return os.Remove(path)
}

func (OSFileSystem) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (OSFileSystem) ScanDir(dir string) ([]string, error) {
	if err := fsqutil.MkdirIfNotExist(dir); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (OSFileSystem) Join(elem ...string) string {
	return filepath.Join(elem...)
}
