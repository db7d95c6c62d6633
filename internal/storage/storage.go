// Package storage defines the record-store port used by the schema registry.
//
// The store exposes namespaced collections of records with monotonic id
// allocation, primary-key lookup, filtered find, and insert. Each entity type
// owns a namespace constant and a typed record. Implementations live in
// subpackages (memory, sqlstore).
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Common errors
var (
	ErrNotFound         = errors.New("not found")
	ErrRecordExists     = errors.New("record already exists")
	ErrUnknownNamespace = errors.New("unknown namespace")
)

// Record namespaces. Each entity type owns one.
const (
	NamespaceSchemaMetadata      = "schema_metadata"
	NamespaceSchemaVersion       = "schema_version"
	NamespaceSchemaFieldIndex    = "schema_field_index"
	NamespaceSerDesInfo          = "serdes_info"
	NamespaceSchemaSerDesMapping = "schema_serdes_mapping"
)

// Column names used in filters. They match the records' JSON tags so generic
// implementations can evaluate filters against a serialized body.
const (
	ColumnID               = "id"
	ColumnName             = "name"
	ColumnType             = "type"
	ColumnSchemaMetadataID = "schemaMetadataId"
	ColumnSchemaVersionID  = "schemaVersionId"
	ColumnVersion          = "version"
	ColumnFingerprint      = "fingerprint"
	ColumnFieldNamespace   = "fieldNamespace"
	ColumnSchemaGroup      = "schemaGroup"
	ColumnSerDesID         = "serDesId"
)

// Key identifies a record within a namespace by one column value.
type Key struct {
	Namespace string
	Column    string
	Value     string
}

// Filter is a single equality predicate. A filter list is conjoined with AND.
type Filter struct {
	Column string
	Value  string
}

// Record is implemented by every persisted entity.
type Record interface {
	// Namespace returns the collection this record belongs to.
	Namespace() string
	// Key returns the record's primary key.
	Key() Key
}

// Store is the record-store port. All operations are synchronous and durable
// on return. NextID allocates monotonically increasing ids per namespace.
type Store interface {
	NextID(ctx context.Context, namespace string) (int64, error)
	// Get returns the record for the key, or ErrNotFound.
	Get(ctx context.Context, key Key) (Record, error)
	// Find returns records in the namespace matching all filters, in
	// insertion order.
	Find(ctx context.Context, namespace string, filters []Filter) ([]Record, error)
	// List returns every record in the namespace.
	List(ctx context.Context, namespace string) ([]Record, error)
	Add(ctx context.Context, record Record) error
	// AddAll inserts the records as one group; backends that support it
	// commit them atomically.
	AddAll(ctx context.Context, records []Record) error

	Close() error
	IsHealthy(ctx context.Context) bool
}

// MetadataRecord is the logical identity of an evolving schema.
type MetadataRecord struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	SchemaGroup   string `json:"schemaGroup,omitempty"`
	Compatibility string `json:"compatibility"`
	Description   string `json:"description,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}

// Namespace implements Record.
func (r *MetadataRecord) Namespace() string { return NamespaceSchemaMetadata }

// Key implements Record. Metadata is keyed by name.
func (r *MetadataRecord) Key() Key {
	return Key{Namespace: NamespaceSchemaMetadata, Column: ColumnName, Value: r.Name}
}

// VersionRecord is one immutable revision of a logical schema.
type VersionRecord struct {
	ID               int64  `json:"id"`
	SchemaMetadataID int64  `json:"schemaMetadataId"`
	Name             string `json:"name"`
	Version          int    `json:"version"`
	SchemaText       string `json:"schemaText"`
	Fingerprint      string `json:"fingerprint"`
	Description      string `json:"description,omitempty"`
	Timestamp        int64  `json:"timestamp"`
}

// Namespace implements Record.
func (r *VersionRecord) Namespace() string { return NamespaceSchemaVersion }

// Key implements Record.
func (r *VersionRecord) Key() Key {
	return Key{Namespace: NamespaceSchemaVersion, Column: ColumnID, Value: strconv.FormatInt(r.ID, 10)}
}

// FieldRecord indexes one field of a schema version for structural search.
type FieldRecord struct {
	ID              int64  `json:"id"`
	SchemaVersionID int64  `json:"schemaVersionId"`
	Name            string `json:"name"`
	FieldNamespace  string `json:"fieldNamespace,omitempty"`
	Type            string `json:"type"`
	Timestamp       int64  `json:"timestamp"`
}

// Namespace implements Record.
func (r *FieldRecord) Namespace() string { return NamespaceSchemaFieldIndex }

// Key implements Record.
func (r *FieldRecord) Key() Key {
	return Key{Namespace: NamespaceSchemaFieldIndex, Column: ColumnID, Value: strconv.FormatInt(r.ID, 10)}
}

// SerDesRecord describes an uploaded serializer/deserializer artifact.
type SerDesRecord struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	ClassName    string `json:"className"`
	FileID       string `json:"fileId"`
	IsSerializer bool   `json:"isSerializer"`
	Timestamp    int64  `json:"timestamp"`
}

// Namespace implements Record.
func (r *SerDesRecord) Namespace() string { return NamespaceSerDesInfo }

// Key implements Record.
func (r *SerDesRecord) Key() Key {
	return Key{Namespace: NamespaceSerDesInfo, Column: ColumnID, Value: strconv.FormatInt(r.ID, 10)}
}

// MappingRecord links a schema metadata row to a serdes artifact.
type MappingRecord struct {
	SchemaMetadataID int64 `json:"schemaMetadataId"`
	SerDesID         int64 `json:"serDesId"`
	Timestamp        int64 `json:"timestamp"`
}

// Namespace implements Record.
func (r *MappingRecord) Namespace() string { return NamespaceSchemaSerDesMapping }

// Key implements Record. The pair is the natural key.
func (r *MappingRecord) Key() Key {
	return Key{
		Namespace: NamespaceSchemaSerDesMapping,
		Column:    ColumnID,
		Value:     strconv.FormatInt(r.SchemaMetadataID, 10) + ":" + strconv.FormatInt(r.SerDesID, 10),
	}
}

// DecodeRecord unmarshals a serialized record body into the typed record for
// its namespace. Generic implementations use it to rehydrate query results.
func DecodeRecord(namespace string, body []byte) (Record, error) {
	var rec Record
	switch namespace {
	case NamespaceSchemaMetadata:
		rec = &MetadataRecord{}
	case NamespaceSchemaVersion:
		rec = &VersionRecord{}
	case NamespaceSchemaFieldIndex:
		rec = &FieldRecord{}
	case NamespaceSerDesInfo:
		rec = &SerDesRecord{}
	case NamespaceSchemaSerDesMapping:
		rec = &MappingRecord{}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownNamespace, namespace)
	}
	if err := json.Unmarshal(body, rec); err != nil {
		return nil, fmt.Errorf("decode %s record: %w", namespace, err)
	}
	return rec, nil
}

// FieldValues returns the record's column values as strings, keyed by JSON
// tag name. Integral numbers render without exponent or fraction so filter
// values built with strconv compare equal.
func FieldValues(r Record) (map[string]string, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal %s record: %w", r.Namespace(), err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal %s record: %w", r.Namespace(), err)
	}
	values := make(map[string]string, len(raw))
	for k, v := range raw {
		values[k] = stringifyValue(v)
	}
	return values, nil
}

// Matches reports whether the record satisfies every filter.
func Matches(r Record, filters []Filter) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}
	values, err := FieldValues(r)
	if err != nil {
		return false, err
	}
	for _, f := range filters {
		if values[f.Column] != f.Value {
			return false, nil
		}
	}
	return true, nil
}

func stringifyValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}
