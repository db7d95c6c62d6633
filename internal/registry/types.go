package registry

import (
	"github.com/streamforge/schema-registry/internal/compatibility"
)

// SchemaMetadata is the logical identity of an evolving schema.
type SchemaMetadata struct {
	Name          string               `json:"name"`
	Type          string               `json:"type"`
	SchemaGroup   string               `json:"schemaGroup,omitempty"`
	Compatibility compatibility.Policy `json:"compatibility"`
	Description   string               `json:"description,omitempty"`
}

// SchemaMetadataInfo is stored metadata with its identity columns.
type SchemaMetadataInfo struct {
	SchemaMetadata
	ID        int64 `json:"id"`
	Timestamp int64 `json:"timestamp"`
}

// SchemaVersion is the caller-supplied input for registering a version.
type SchemaVersion struct {
	SchemaText  string `json:"schemaText"`
	Description string `json:"description,omitempty"`
}

// SchemaVersionInfo is one stored, immutable schema version.
type SchemaVersionInfo struct {
	ID               int64  `json:"id"`
	SchemaMetadataID int64  `json:"schemaMetadataId"`
	Name             string `json:"name"`
	Version          int    `json:"version"`
	SchemaText       string `json:"schemaText"`
	Fingerprint      string `json:"fingerprint"`
	Description      string `json:"description,omitempty"`
	Timestamp        int64  `json:"timestamp"`
}

// SchemaVersionKey addresses one version of a named schema.
type SchemaVersionKey struct {
	Name    string `json:"name"`
	Version int    `json:"version"`
}

// SchemaFieldQuery selects indexed fields by any subset of name, namespace
// and type. Empty members match everything.
type SchemaFieldQuery struct {
	Name      string
	Namespace string
	Type      string
}

// SerDes is the caller-supplied input for registering a serdes artifact.
type SerDes struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	ClassName    string `json:"className"`
	FileID       string `json:"fileId"`
	IsSerializer bool   `json:"isSerializer"`
}

// SerDesInfo is a stored serdes artifact.
type SerDesInfo struct {
	SerDes
	ID        int64 `json:"id"`
	Timestamp int64 `json:"timestamp"`
}
