// Package registry implements the schema lifecycle engine: metadata and
// version registration, fingerprint deduplication, compatibility gating,
// cached version lookup, field search, and serdes bindings.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/streamforge/schema-registry/internal/cache"
	"github.com/streamforge/schema-registry/internal/compatibility"
	"github.com/streamforge/schema-registry/internal/filestore"
	"github.com/streamforge/schema-registry/internal/metrics"
	"github.com/streamforge/schema-registry/internal/schema"
	"github.com/streamforge/schema-registry/internal/storage"
)

// Registry is the schema lifecycle engine. All writes serialize on one
// process-wide mutex; reads go through the version cache where possible.
type Registry struct {
	store     storage.Store
	files     filestore.Store
	providers *schema.Registry
	compat    *compatibility.Checker
	cache     *cache.VersionCache
	metrics   *metrics.Metrics
	logger    *slog.Logger

	// writeMu spans the whole read-modify-write of a registration, so
	// dedup, compatibility gating, version assignment and insert act on a
	// consistent view.
	writeMu sync.Mutex
}

// New creates a registry over the given collaborators. metrics may be nil;
// a nil logger falls back to slog.Default().
func New(store storage.Store, files filestore.Store, providers *schema.Registry,
	compat *compatibility.Checker, opts *Options, m *metrics.Metrics, logger *slog.Logger) *Registry {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:     store,
		files:     files,
		providers: providers,
		compat:    compat,
		cache:     cache.NewVersionCache(opts.CacheSize(), opts.CacheExpiry()),
		metrics:   m,
		logger:    logger,
	}
}

// SupportedTypes returns the registered dialect tags.
func (r *Registry) SupportedTypes() []string {
	return r.providers.Types()
}

// AddSchemaMetadata registers the logical schema identity. Registering an
// existing name returns the stored metadata unchanged.
func (r *Registry) AddSchemaMetadata(ctx context.Context, md SchemaMetadata) (*SchemaMetadataInfo, error) {
	if md.Name == "" {
		return nil, fmt.Errorf("%w: schema name is required", ErrConfiguration)
	}
	if _, err := r.providers.Get(md.Type); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	policy, err := compatibility.ParsePolicy(string(md.Compatibility))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	md.Compatibility = policy

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.ensureMetadata(ctx, md)
}

// ensureMetadata returns the stored metadata for md.Name, creating it if
// absent. Callers hold writeMu.
func (r *Registry) ensureMetadata(ctx context.Context, md SchemaMetadata) (*SchemaMetadataInfo, error) {
	existing, err := r.getMetadata(ctx, md.Name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrSchemaNotFound) {
		return nil, err
	}

	id, err := r.store.NextID(ctx, storage.NamespaceSchemaMetadata)
	if err != nil {
		return nil, fmt.Errorf("allocate metadata id: %w", err)
	}
	rec := &storage.MetadataRecord{
		ID:            id,
		Name:          md.Name,
		Type:          md.Type,
		SchemaGroup:   md.SchemaGroup,
		Compatibility: string(md.Compatibility),
		Description:   md.Description,
		Timestamp:     time.Now().UnixMilli(),
	}
	if err := r.store.Add(ctx, rec); err != nil {
		return nil, fmt.Errorf("add schema metadata %q: %w", md.Name, err)
	}
	return metadataInfo(rec), nil
}

// GetSchemaMetadata returns the metadata stored under name.
func (r *Registry) GetSchemaMetadata(ctx context.Context, name string) (*SchemaMetadataInfo, error) {
	return r.getMetadata(ctx, name)
}

func (r *Registry) getMetadata(ctx context.Context, name string) (*SchemaMetadataInfo, error) {
	rec, err := r.store.Get(ctx, storage.Key{
		Namespace: storage.NamespaceSchemaMetadata,
		Column:    storage.ColumnName,
		Value:     name,
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get schema metadata %q: %w", name, err)
	}
	return metadataInfo(rec.(*storage.MetadataRecord)), nil
}

// FindSchemaMetadata returns all metadata matching the column filters. An
// empty filter map lists everything.
func (r *Registry) FindSchemaMetadata(ctx context.Context, filters map[string]string) ([]*SchemaMetadataInfo, error) {
	var storeFilters []storage.Filter
	for column, value := range filters {
		storeFilters = append(storeFilters, storage.Filter{Column: column, Value: value})
	}
	recs, err := r.store.Find(ctx, storage.NamespaceSchemaMetadata, storeFilters)
	if err != nil {
		return nil, fmt.Errorf("find schema metadata: %w", err)
	}
	result := make([]*SchemaMetadataInfo, 0, len(recs))
	for _, rec := range recs {
		result = append(result, metadataInfo(rec.(*storage.MetadataRecord)))
	}
	return result, nil
}

// AddSchemaVersion registers a new version under the given metadata,
// creating the metadata first when absent.
func (r *Registry) AddSchemaVersion(ctx context.Context, md SchemaMetadata, sv SchemaVersion) (*SchemaVersionInfo, error) {
	if _, err := r.providers.Get(md.Type); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	policy, err := compatibility.ParsePolicy(string(md.Compatibility))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	md.Compatibility = policy

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	meta, err := r.ensureMetadata(ctx, md)
	if err != nil {
		return nil, err
	}
	return r.addVersion(ctx, meta, sv)
}

// AddSchemaVersionByName registers a new version under existing metadata.
func (r *Registry) AddSchemaVersionByName(ctx context.Context, name string, sv SchemaVersion) (*SchemaVersionInfo, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	meta, err := r.getMetadata(ctx, name)
	if err != nil {
		return nil, err
	}
	return r.addVersion(ctx, meta, sv)
}

// addVersion runs the write path: validate, dedup by fingerprint, gate on
// compatibility with the latest version, then commit the version row together
// with its field-index rows. Callers hold writeMu.
func (r *Registry) addVersion(ctx context.Context, meta *SchemaMetadataInfo, sv SchemaVersion) (*SchemaVersionInfo, error) {
	provider, err := r.providers.Get(meta.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	parsed, err := provider.Parse(sv.SchemaText)
	if err != nil {
		r.metrics.ObserveRegistration(meta.Type, "invalid")
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	fingerprint := parsed.Fingerprint()

	metaID := strconv.FormatInt(meta.ID, 10)
	duplicates, err := r.store.Find(ctx, storage.NamespaceSchemaVersion, []storage.Filter{
		{Column: storage.ColumnSchemaMetadataID, Value: metaID},
		{Column: storage.ColumnFingerprint, Value: fingerprint},
	})
	if err != nil {
		return nil, fmt.Errorf("find schema version by fingerprint: %w", err)
	}
	if len(duplicates) > 0 {
		if len(duplicates) > 1 {
			r.logger.Warn("multiple version rows share a fingerprint",
				"name", meta.Name, "fingerprint", fingerprint, "count", len(duplicates))
		}
		r.metrics.ObserveRegistration(meta.Type, "duplicate")
		return versionInfo(duplicates[0].(*storage.VersionRecord)), nil
	}

	history, err := r.versionRecords(ctx, meta.ID)
	if err != nil {
		return nil, err
	}
	nextVersion := 1
	if len(history) > 0 {
		latest := history[len(history)-1]
		nextVersion = latest.Version + 1

		result := r.compat.Check(meta.Compatibility, meta.Type, sv.SchemaText, []string{latest.SchemaText})
		r.metrics.ObserveCompatibilityCheck(meta.Type, result.IsCompatible)
		if !result.IsCompatible {
			r.metrics.ObserveRegistration(meta.Type, "incompatible")
			return nil, fmt.Errorf("%w: %s", ErrIncompatibleSchema, strings.Join(result.Messages, "; "))
		}
	}

	id, err := r.store.NextID(ctx, storage.NamespaceSchemaVersion)
	if err != nil {
		return nil, fmt.Errorf("allocate version id: %w", err)
	}
	now := time.Now().UnixMilli()
	vrec := &storage.VersionRecord{
		ID:               id,
		SchemaMetadataID: meta.ID,
		Name:             meta.Name,
		Version:          nextVersion,
		SchemaText:       sv.SchemaText,
		Fingerprint:      fingerprint,
		Description:      sv.Description,
		Timestamp:        now,
	}
	records := []storage.Record{vrec}
	for _, f := range parsed.Fields() {
		fieldID, err := r.store.NextID(ctx, storage.NamespaceSchemaFieldIndex)
		if err != nil {
			return nil, fmt.Errorf("allocate field id: %w", err)
		}
		records = append(records, &storage.FieldRecord{
			ID:              fieldID,
			SchemaVersionID: id,
			Name:            f.Name,
			FieldNamespace:  f.Namespace,
			Type:            f.Type,
			Timestamp:       now,
		})
	}
	if err := r.store.AddAll(ctx, records); err != nil {
		return nil, fmt.Errorf("add schema version %q v%d: %w", meta.Name, nextVersion, err)
	}

	r.metrics.ObserveRegistration(meta.Type, "registered")
	r.logger.Info("registered schema version",
		"name", meta.Name, "version", nextVersion, "type", meta.Type)
	return versionInfo(vrec), nil
}

// GetSchemaVersionByText returns the stored version of the named schema whose
// fingerprint matches schemaText. Registration followed by this lookup with
// the same text round-trips to the registered version.
func (r *Registry) GetSchemaVersionByText(ctx context.Context, name, schemaText string) (*SchemaVersionInfo, error) {
	meta, err := r.getMetadata(ctx, name)
	if err != nil {
		return nil, err
	}
	provider, err := r.providers.Get(meta.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	parsed, err := provider.Parse(schemaText)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	fingerprint := parsed.Fingerprint()

	recs, err := r.store.Find(ctx, storage.NamespaceSchemaVersion, []storage.Filter{
		{Column: storage.ColumnSchemaMetadataID, Value: strconv.FormatInt(meta.ID, 10)},
		{Column: storage.ColumnFingerprint, Value: fingerprint},
	})
	if err != nil {
		return nil, fmt.Errorf("find schema version by fingerprint: %w", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: %s has no version with the given text", ErrSchemaNotFound, name)
	}
	if len(recs) > 1 {
		r.logger.Warn("multiple version rows share a fingerprint",
			"name", name, "fingerprint", fingerprint, "count", len(recs))
	}
	return versionInfo(recs[0].(*storage.VersionRecord)), nil
}

// GetSchemaVersionInfo returns one version, served from the cache.
func (r *Registry) GetSchemaVersionInfo(ctx context.Context, key SchemaVersionKey) (*SchemaVersionInfo, error) {
	// The load is shared by every concurrent miss for this key, so it must
	// not die with the first caller's context.
	loadCtx := context.WithoutCancel(ctx)
	v, err := r.cache.GetOrLoad(cacheKeyByVersion(key), func() (interface{}, error) {
		recs, err := r.store.Find(loadCtx, storage.NamespaceSchemaVersion, []storage.Filter{
			{Column: storage.ColumnName, Value: key.Name},
			{Column: storage.ColumnVersion, Value: strconv.Itoa(key.Version)},
		})
		if err != nil {
			return nil, fmt.Errorf("find schema version: %w", err)
		}
		if len(recs) == 0 {
			return nil, fmt.Errorf("%w: %s version %d", ErrSchemaNotFound, key.Name, key.Version)
		}
		if len(recs) > 1 {
			r.logger.Warn("multiple rows for one schema version",
				"name", key.Name, "version", key.Version, "count", len(recs))
		}
		return versionInfo(recs[0].(*storage.VersionRecord)), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SchemaVersionInfo), nil
}

// GetSchemaVersionInfoByID returns one version by its row id, served from
// the cache.
func (r *Registry) GetSchemaVersionInfoByID(ctx context.Context, id int64) (*SchemaVersionInfo, error) {
	loadCtx := context.WithoutCancel(ctx)
	v, err := r.cache.GetOrLoad(cacheKeyByID(id), func() (interface{}, error) {
		rec, err := r.store.Get(loadCtx, storage.Key{
			Namespace: storage.NamespaceSchemaVersion,
			Column:    storage.ColumnID,
			Value:     strconv.FormatInt(id, 10),
		})
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: version id %d", ErrSchemaNotFound, id)
		}
		if err != nil {
			return nil, fmt.Errorf("get schema version %d: %w", id, err)
		}
		return versionInfo(rec.(*storage.VersionRecord)), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SchemaVersionInfo), nil
}

// GetLatestSchemaVersionInfo returns the highest version stored under name.
func (r *Registry) GetLatestSchemaVersionInfo(ctx context.Context, name string) (*SchemaVersionInfo, error) {
	versions, err := r.GetAllVersions(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: %s has no versions", ErrSchemaNotFound, name)
	}
	return versions[len(versions)-1], nil
}

// GetAllVersions returns every version stored under name, oldest first.
func (r *Registry) GetAllVersions(ctx context.Context, name string) ([]*SchemaVersionInfo, error) {
	meta, err := r.getMetadata(ctx, name)
	if err != nil {
		return nil, err
	}
	history, err := r.versionRecords(ctx, meta.ID)
	if err != nil {
		return nil, err
	}
	result := make([]*SchemaVersionInfo, 0, len(history))
	for _, rec := range history {
		result = append(result, versionInfo(rec))
	}
	return result, nil
}

// CheckCompatibility evaluates a candidate text against every stored version
// of the named schema, under the schema's policy.
func (r *Registry) CheckCompatibility(ctx context.Context, name, schemaText string) (*compatibility.Result, error) {
	meta, err := r.getMetadata(ctx, name)
	if err != nil {
		return nil, err
	}
	provider, err := r.providers.Get(meta.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if _, err := provider.Parse(schemaText); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	history, err := r.versionRecords(ctx, meta.ID)
	if err != nil {
		return nil, err
	}
	priors := make([]string, 0, len(history))
	for _, rec := range history {
		priors = append(priors, rec.SchemaText)
	}
	result := r.compat.Check(meta.Compatibility, meta.Type, schemaText, priors)
	r.metrics.ObserveCompatibilityCheck(meta.Type, result.IsCompatible)
	return result, nil
}

// CheckCompatibilityWithVersion evaluates a candidate text against one
// stored version, under the schema's policy.
func (r *Registry) CheckCompatibilityWithVersion(ctx context.Context, key SchemaVersionKey, schemaText string) (*compatibility.Result, error) {
	meta, err := r.getMetadata(ctx, key.Name)
	if err != nil {
		return nil, err
	}
	provider, err := r.providers.Get(meta.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if _, err := provider.Parse(schemaText); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	version, err := r.GetSchemaVersionInfo(ctx, key)
	if err != nil {
		return nil, err
	}
	result := r.compat.Check(meta.Compatibility, meta.Type, schemaText, []string{version.SchemaText})
	r.metrics.ObserveCompatibilityCheck(meta.Type, result.IsCompatible)
	return result, nil
}

// SearchFields returns the version keys of every schema version whose field
// index matches the query.
func (r *Registry) SearchFields(ctx context.Context, q SchemaFieldQuery) ([]SchemaVersionKey, error) {
	var filters []storage.Filter
	if q.Name != "" {
		filters = append(filters, storage.Filter{Column: storage.ColumnName, Value: q.Name})
	}
	if q.Namespace != "" {
		filters = append(filters, storage.Filter{Column: storage.ColumnFieldNamespace, Value: q.Namespace})
	}
	if q.Type != "" {
		filters = append(filters, storage.Filter{Column: storage.ColumnType, Value: q.Type})
	}

	recs, err := r.store.Find(ctx, storage.NamespaceSchemaFieldIndex, filters)
	if err != nil {
		return nil, fmt.Errorf("search schema fields: %w", err)
	}

	seen := make(map[int64]bool)
	var keys []SchemaVersionKey
	for _, rec := range recs {
		field := rec.(*storage.FieldRecord)
		if seen[field.SchemaVersionID] {
			continue
		}
		seen[field.SchemaVersionID] = true

		version, err := r.GetSchemaVersionInfoByID(ctx, field.SchemaVersionID)
		if err != nil {
			if errors.Is(err, ErrSchemaNotFound) {
				r.logger.Warn("field index row references a missing version",
					"schemaVersionId", field.SchemaVersionID, "field", field.Name)
				continue
			}
			return nil, err
		}
		keys = append(keys, SchemaVersionKey{Name: version.Name, Version: version.Version})
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Name != keys[j].Name {
			return keys[i].Name < keys[j].Name
		}
		return keys[i].Version < keys[j].Version
	})
	return keys, nil
}

// CacheStats returns the version cache counters.
func (r *Registry) CacheStats() cache.Stats {
	return r.cache.Stats()
}

// PurgeExpiredCacheEntries drops expired cache entries and returns the count.
func (r *Registry) PurgeExpiredCacheEntries() int {
	return r.cache.CleanupExpired()
}

// IsHealthy reports whether the backing store answers.
func (r *Registry) IsHealthy(ctx context.Context) bool {
	return r.store.IsHealthy(ctx)
}

// versionRecords returns the stored versions for a metadata id, oldest first.
func (r *Registry) versionRecords(ctx context.Context, metaID int64) ([]*storage.VersionRecord, error) {
	recs, err := r.store.Find(ctx, storage.NamespaceSchemaVersion, []storage.Filter{
		{Column: storage.ColumnSchemaMetadataID, Value: strconv.FormatInt(metaID, 10)},
	})
	if err != nil {
		return nil, fmt.Errorf("find schema versions: %w", err)
	}
	history := make([]*storage.VersionRecord, 0, len(recs))
	for _, rec := range recs {
		history = append(history, rec.(*storage.VersionRecord))
	}
	sort.Slice(history, func(i, j int) bool { return history[i].Version < history[j].Version })
	return history, nil
}

func metadataInfo(rec *storage.MetadataRecord) *SchemaMetadataInfo {
	return &SchemaMetadataInfo{
		SchemaMetadata: SchemaMetadata{
			Name:          rec.Name,
			Type:          rec.Type,
			SchemaGroup:   rec.SchemaGroup,
			Compatibility: compatibility.Policy(rec.Compatibility),
			Description:   rec.Description,
		},
		ID:        rec.ID,
		Timestamp: rec.Timestamp,
	}
}

func versionInfo(rec *storage.VersionRecord) *SchemaVersionInfo {
	return &SchemaVersionInfo{
		ID:               rec.ID,
		SchemaMetadataID: rec.SchemaMetadataID,
		Name:             rec.Name,
		Version:          rec.Version,
		SchemaText:       rec.SchemaText,
		Fingerprint:      rec.Fingerprint,
		Description:      rec.Description,
		Timestamp:        rec.Timestamp,
	}
}

func cacheKeyByVersion(key SchemaVersionKey) string {
	return "v:" + key.Name + ":" + strconv.Itoa(key.Version)
}

func cacheKeyByID(id int64) string {
	return "id:" + strconv.FormatInt(id, 10)
}
