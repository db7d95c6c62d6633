// Package filestore defines the blob-store port used for serdes artifacts.
package filestore

import (
	"context"
	"errors"
	"io"
)

// ErrFileNotFound is returned when no file exists under the requested name.
var ErrFileNotFound = errors.New("file not found")

// Store persists opaque files under caller-chosen names.
type Store interface {
	// Upload stores the stream under name and returns the stored location.
	Upload(ctx context.Context, r io.Reader, name string) (string, error)
	// Download opens the file stored under name. The caller closes the
	// returned reader.
	Download(ctx context.Context, name string) (io.ReadCloser, error)
}
