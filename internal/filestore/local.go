package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local stores files in a directory on the local filesystem.
type Local struct {
	dir string
}

// NewLocal creates the directory if needed and returns a store over it.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create file store directory: %w", err)
	}
	return &Local{dir: dir}, nil
}

// Upload writes the stream to a temp file and renames it into place, so a
// name never refers to a partially written file.
func (s *Local) Upload(ctx context.Context, r io.Reader, name string) (string, error) {
	target := filepath.Join(s.dir, filepath.Base(name))

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write file %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close file %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("store file %s: %w", name, err)
	}
	return target, nil
}

// Download opens the stored file.
func (s *Local) Download(ctx context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.dir, filepath.Base(name)))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("open file %s: %w", name, err)
	}
	return f, nil
}

var _ Store = (*Local)(nil)
