package storage

import (
	"os"
	"path/filepath"

	"advancedtimer/x/fmtx"
)

// FileStorage stores each slot as one file under root. WriteAtomic
// writes to a temp file in the same directory and renames over the
// target, so a crash mid-write never leaves a slot file truncated or
// half-written — rename within one filesystem is atomic.
type FileStorage struct {
	root string
}

func NewFile(root string) (*FileStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmtx.Errorf("storage: create root: %w", err)
	}
	return &FileStorage{root: root}, nil
}

func (f *FileStorage) path(slot Slot) string {
	return filepath.Join(f.root, string(slot)+".bin")
}

func (f *FileStorage) Read(slot Slot) ([]byte, error) {
	b, err := os.ReadFile(f.path(slot))
	if os.IsNotExist(err) {
		return nil, nil
	}
	return b, err
}

func (f *FileStorage) WriteAtomic(slot Slot, data []byte) error {
	tmp, err := os.CreateTemp(f.root, ".tmp-"+string(slot)+"-*")
	if err != nil {
		return fmtx.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmtx.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmtx.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.path(slot)); err != nil {
		os.Remove(tmpName)
		return fmtx.Errorf("storage: rename: %w", err)
	}
	return nil
}

func (f *FileStorage) Rotate(src, dst Slot) error {
	b, err := f.Read(src)
	if err != nil {
		return err
	}
	return f.WriteAtomic(dst, b)
}

// Open selects a Storage implementation by driver name, mirroring the
// example pack's driver-selectable blob store but sourced from typed
// process configuration rather than environment variables, since the
// kernel process config is itself loaded from a file (services/config).
func Open(driver, dir string) (Storage, error) {
	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "file":
		return NewFile(dir)
	default:
		return nil, fmtx.Errorf("storage: unknown driver %q", driver)
	}
}
