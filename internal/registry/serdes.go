package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/streamforge/schema-registry/internal/filestore"
	"github.com/streamforge/schema-registry/internal/storage"
)

// UploadFile stores an artifact stream under a generated name and returns
// that name. The name, not the store's location, is what serdes records
// reference.
func (r *Registry) UploadFile(ctx context.Context, src io.Reader) (string, error) {
	name := uuid.NewString()
	if _, err := r.files.Upload(ctx, src, name); err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	return name, nil
}

// AddSerDes registers a serdes artifact and returns its stored form.
func (r *Registry) AddSerDes(ctx context.Context, sd SerDes) (*SerDesInfo, error) {
	if sd.Name == "" || sd.ClassName == "" || sd.FileID == "" {
		return nil, fmt.Errorf("%w: serdes name, className and fileId are required", ErrConfiguration)
	}

	id, err := r.store.NextID(ctx, storage.NamespaceSerDesInfo)
	if err != nil {
		return nil, fmt.Errorf("allocate serdes id: %w", err)
	}
	rec := &storage.SerDesRecord{
		ID:           id,
		Name:         sd.Name,
		Description:  sd.Description,
		ClassName:    sd.ClassName,
		FileID:       sd.FileID,
		IsSerializer: sd.IsSerializer,
		Timestamp:    time.Now().UnixMilli(),
	}
	if err := r.store.Add(ctx, rec); err != nil {
		return nil, fmt.Errorf("add serdes %q: %w", sd.Name, err)
	}
	return serDesInfo(rec), nil
}

// GetSerDes returns the serdes stored under id.
func (r *Registry) GetSerDes(ctx context.Context, id int64) (*SerDesInfo, error) {
	rec, err := r.store.Get(ctx, storage.Key{
		Namespace: storage.NamespaceSerDesInfo,
		Column:    storage.ColumnID,
		Value:     strconv.FormatInt(id, 10),
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrSerDesNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get serdes %d: %w", id, err)
	}
	return serDesInfo(rec.(*storage.SerDesRecord)), nil
}

// MapSchemaWithSerDes binds a serdes to the named schema. Binding the same
// pair twice is a no-op.
func (r *Registry) MapSchemaWithSerDes(ctx context.Context, schemaName string, serDesID int64) error {
	meta, err := r.getMetadata(ctx, schemaName)
	if err != nil {
		return err
	}
	if _, err := r.GetSerDes(ctx, serDesID); err != nil {
		return err
	}

	rec := &storage.MappingRecord{
		SchemaMetadataID: meta.ID,
		SerDesID:         serDesID,
		Timestamp:        time.Now().UnixMilli(),
	}
	if err := r.store.Add(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrRecordExists) {
			return nil
		}
		return fmt.Errorf("map schema %q to serdes %d: %w", schemaName, serDesID, err)
	}
	return nil
}

// GetSerDesInfos returns every serdes bound to the named schema.
func (r *Registry) GetSerDesInfos(ctx context.Context, schemaName string) ([]*SerDesInfo, error) {
	meta, err := r.getMetadata(ctx, schemaName)
	if err != nil {
		return nil, err
	}

	mappings, err := r.store.Find(ctx, storage.NamespaceSchemaSerDesMapping, []storage.Filter{
		{Column: storage.ColumnSchemaMetadataID, Value: strconv.FormatInt(meta.ID, 10)},
	})
	if err != nil {
		return nil, fmt.Errorf("find serdes mappings for %q: %w", schemaName, err)
	}

	result := make([]*SerDesInfo, 0, len(mappings))
	for _, rec := range mappings {
		mapping := rec.(*storage.MappingRecord)
		info, err := r.GetSerDes(ctx, mapping.SerDesID)
		if err != nil {
			if errors.Is(err, ErrSerDesNotFound) {
				r.logger.Warn("serdes mapping references a missing serdes",
					"schema", schemaName, "serDesId", mapping.SerDesID)
				continue
			}
			return nil, err
		}
		result = append(result, info)
	}
	return result, nil
}

// GetSerializers returns the serializer serdes bound to the named schema.
func (r *Registry) GetSerializers(ctx context.Context, schemaName string) ([]*SerDesInfo, error) {
	return r.serDesByRole(ctx, schemaName, true)
}

// GetDeserializers returns the deserializer serdes bound to the named schema.
func (r *Registry) GetDeserializers(ctx context.Context, schemaName string) ([]*SerDesInfo, error) {
	return r.serDesByRole(ctx, schemaName, false)
}

func (r *Registry) serDesByRole(ctx context.Context, schemaName string, serializer bool) ([]*SerDesInfo, error) {
	all, err := r.GetSerDesInfos(ctx, schemaName)
	if err != nil {
		return nil, err
	}
	result := make([]*SerDesInfo, 0, len(all))
	for _, info := range all {
		if info.IsSerializer == serializer {
			result = append(result, info)
		}
	}
	return result, nil
}

// DownloadFile streams the artifact stored under fileID. The caller closes
// the returned reader.
func (r *Registry) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	rc, err := r.files.Download(ctx, fileID)
	if errors.Is(err, filestore.ErrFileNotFound) {
		return nil, fmt.Errorf("%w: file %s", ErrSerDesNotFound, fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("download file %s: %w", fileID, err)
	}
	return rc, nil
}

// DownloadSerDesFile streams the artifact of the serdes stored under id.
// The caller closes the returned reader.
func (r *Registry) DownloadSerDesFile(ctx context.Context, serDesID int64) (io.ReadCloser, error) {
	info, err := r.GetSerDes(ctx, serDesID)
	if err != nil {
		return nil, err
	}
	rc, err := r.DownloadFile(ctx, info.FileID)
	if err != nil {
		return nil, fmt.Errorf("download serdes %d: %w", serDesID, err)
	}
	return rc, nil
}

func serDesInfo(rec *storage.SerDesRecord) *SerDesInfo {
	return &SerDesInfo{
		SerDes: SerDes{
			Name:         rec.Name,
			Description:  rec.Description,
			ClassName:    rec.ClassName,
			FileID:       rec.FileID,
			IsSerializer: rec.IsSerializer,
		},
		ID:        rec.ID,
		Timestamp: rec.Timestamp,
	}
}
