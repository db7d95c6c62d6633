// Package schema defines the dialect provider contract and the registry the
// lifecycle engine resolves dialects through.
package schema

import (
	"errors"
	"fmt"
	"sort"
)

// Dialect type tags.
const (
	TypeAvro     = "avro"
	TypeJSON     = "json"
	TypeProtobuf = "protobuf"
)

// ErrUnknownType is returned when no provider is registered for a dialect.
var ErrUnknownType = errors.New("unknown schema type")

// Field is one named field extracted from a schema for structural indexing.
type Field struct {
	Name      string
	Namespace string
	Type      string
}

// ParsedSchema is a successfully validated schema.
type ParsedSchema interface {
	// Type returns the dialect tag.
	Type() string
	// CanonicalString returns the dialect's canonical rendering.
	CanonicalString() string
	// Fingerprint returns a stable content hash of the canonical form.
	Fingerprint() string
	// Fields returns the schema's fields for the structural index.
	Fields() []Field
}

// Provider parses and validates schemas of one dialect.
type Provider interface {
	Type() string
	Parse(text string) (ParsedSchema, error)
}

// Registry maps dialect tags to providers. It is populated once at startup
// and read-only afterwards.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register installs a provider under its dialect tag.
func (r *Registry) Register(p Provider) {
	r.providers[p.Type()] = p
}

// Get returns the provider for the dialect tag.
func (r *Registry) Get(schemaType string) (Provider, error) {
	p, ok := r.providers[schemaType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, schemaType)
	}
	return p, nil
}

// Types returns the registered dialect tags, sorted.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.providers))
	for t := range r.providers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
