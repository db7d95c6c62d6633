package registry

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/streamforge/schema-registry/internal/compatibility"
)

func addTestSerDes(t *testing.T, r *Registry, name string, serializer bool) *SerDesInfo {
	t.Helper()
	ctx := context.Background()

	fileID, err := r.UploadFile(ctx, strings.NewReader("artifact bytes for "+name))
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	info, err := r.AddSerDes(ctx, SerDes{
		Name:         name,
		ClassName:    "com.example." + name,
		FileID:       fileID,
		IsSerializer: serializer,
	})
	if err != nil {
		t.Fatalf("AddSerDes: %v", err)
	}
	return info
}

func TestUploadFileReturnsGeneratedName(t *testing.T) {
	r := newTestRegistry(t)

	fileID, err := r.UploadFile(context.Background(), strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if _, err := uuid.Parse(fileID); err != nil {
		t.Errorf("expected a UUID file id, got %q", fileID)
	}
}

func TestAddSerDesValidation(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.AddSerDes(context.Background(), SerDes{Name: "incomplete"})
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestGetSerDes(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	info := addTestSerDes(t, r, "json-ser", true)
	got, err := r.GetSerDes(ctx, info.ID)
	if err != nil {
		t.Fatalf("GetSerDes: %v", err)
	}
	if got.ClassName != info.ClassName {
		t.Errorf("expected class %q, got %q", info.ClassName, got.ClassName)
	}

	if _, err := r.GetSerDes(ctx, 9999); !errors.Is(err, ErrSerDesNotFound) {
		t.Errorf("expected ErrSerDesNotFound, got %v", err)
	}
}

func TestMapSchemaWithSerDes(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	if _, err := r.AddSchemaMetadata(ctx, userMetadata("user", compatibility.PolicyNone)); err != nil {
		t.Fatalf("AddSchemaMetadata: %v", err)
	}
	ser := addTestSerDes(t, r, "ser", true)
	deser := addTestSerDes(t, r, "deser", false)

	for _, id := range []int64{ser.ID, deser.ID} {
		if err := r.MapSchemaWithSerDes(ctx, "user", id); err != nil {
			t.Fatalf("MapSchemaWithSerDes(%d): %v", id, err)
		}
	}
	// binding twice is a no-op
	if err := r.MapSchemaWithSerDes(ctx, "user", ser.ID); err != nil {
		t.Fatalf("repeat mapping: %v", err)
	}

	all, err := r.GetSerDesInfos(ctx, "user")
	if err != nil {
		t.Fatalf("GetSerDesInfos: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 bound serdes, got %d", len(all))
	}

	serializers, err := r.GetSerializers(ctx, "user")
	if err != nil {
		t.Fatalf("GetSerializers: %v", err)
	}
	if len(serializers) != 1 || serializers[0].ID != ser.ID {
		t.Errorf("expected only the serializer, got %v", serializers)
	}

	deserializers, err := r.GetDeserializers(ctx, "user")
	if err != nil {
		t.Fatalf("GetDeserializers: %v", err)
	}
	if len(deserializers) != 1 || deserializers[0].ID != deser.ID {
		t.Errorf("expected only the deserializer, got %v", deserializers)
	}
}

func TestMapSchemaWithSerDesErrors(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	ser := addTestSerDes(t, r, "ser", true)
	if err := r.MapSchemaWithSerDes(ctx, "ghost", ser.ID); !errors.Is(err, ErrSchemaNotFound) {
		t.Errorf("expected ErrSchemaNotFound, got %v", err)
	}

	if _, err := r.AddSchemaMetadata(ctx, userMetadata("user", compatibility.PolicyNone)); err != nil {
		t.Fatalf("AddSchemaMetadata: %v", err)
	}
	if err := r.MapSchemaWithSerDes(ctx, "user", 424242); !errors.Is(err, ErrSerDesNotFound) {
		t.Errorf("expected ErrSerDesNotFound, got %v", err)
	}
}

func TestDownloadSerDesFile(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	info := addTestSerDes(t, r, "ser", true)
	rc, err := r.DownloadSerDesFile(ctx, info.ID)
	if err != nil {
		t.Fatalf("DownloadSerDesFile: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "artifact bytes for ser" {
		t.Errorf("unexpected artifact content %q", data)
	}

	if _, err := r.DownloadSerDesFile(ctx, 9999); !errors.Is(err, ErrSerDesNotFound) {
		t.Errorf("expected ErrSerDesNotFound, got %v", err)
	}
}

func TestDownloadFile(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	fileID, err := r.UploadFile(ctx, strings.NewReader("raw artifact"))
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}

	rc, err := r.DownloadFile(ctx, fileID)
	if err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "raw artifact" {
		t.Errorf("unexpected artifact content %q", data)
	}

	if _, err := r.DownloadFile(ctx, "no-such-file"); !errors.Is(err, ErrSerDesNotFound) {
		t.Errorf("expected ErrSerDesNotFound, got %v", err)
	}
}
