// Package filestore persists picture bytes on a filesystem.
package filestore

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// Store writes files through afero so tests can run on a memory filesystem.
type Store struct {
	fs afero.Fs
}

// New creates a Store on fs.
func New(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

// Save writes data to folder/filename, creating folder when missing. Existing
// files in folder are kept; a file with the same name is replaced atomically.
func (s *Store) Save(ctx context.Context, folder, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if filename == "" || filename != filepath.Base(filename) {
		return "", fmt.Errorf("invalid file name %q", filename)
	}
	if folder == "" {
		folder = "."
	}
	if err := s.fs.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("create folder %s: %w", folder, err)
	}

	dst := filepath.Join(folder, filename)
	tmp, err := afero.TempFile(s.fs, folder, "."+filename+".*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = s.fs.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmp.Name())
		return "", fmt.Errorf("close %s: %w", dst, err)
	}
	if err := s.fs.Rename(tmp.Name(), dst); err != nil {
		_ = s.fs.Remove(tmp.Name())
		return "", fmt.Errorf("rename %s: %w", dst, err)
	}
	return dst, nil
}
