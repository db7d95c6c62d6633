package filestore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestUploadDownloadRoundTrip(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()

	if _, err := s.Upload(ctx, strings.NewReader("artifact bytes"), "serde.jar"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	rc, err := s.Download(ctx, "serde.jar")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "artifact bytes" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestUploadOverwrites(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()

	if _, err := s.Upload(ctx, strings.NewReader("v1"), "f"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Upload(ctx, strings.NewReader("v2"), "f"); err != nil {
		t.Fatal(err)
	}

	rc, err := s.Download(ctx, "f")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "v2" {
		t.Errorf("expected the second upload, got %q", data)
	}
}

func TestDownloadMissingFile(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	_, err = s.Download(context.Background(), "absent")
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

func TestUploadStripsPathComponents(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()

	if _, err := s.Upload(ctx, strings.NewReader("x"), "../../etc/name"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	// stored under the base name only
	rc, err := s.Download(ctx, "name")
	if err != nil {
		t.Fatalf("Download by base name: %v", err)
	}
	rc.Close()
}
