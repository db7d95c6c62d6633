// Package jsonschema provides the JSON Schema dialect (Draft-07).
package jsonschema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/streamforge/schema-registry/internal/schema"
)

// Provider implements schema.Provider for JSON Schema.
type Provider struct{}

// NewProvider creates a JSON Schema provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Type returns the dialect tag.
func (p *Provider) Type() string { return schema.TypeJSON }

// Parse validates the document by compiling it under Draft-07.
func (p *Provider) Parse(text string) (schema.ParsedSchema, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	// A fresh compiler per parse avoids resource-name collisions.
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource("schema.json", strings.NewReader(text)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("invalid JSON Schema: %w", err)
	}

	return &Parsed{doc: doc, compiled: compiled}, nil
}

// Parsed is a validated JSON Schema document.
type Parsed struct {
	doc      map[string]interface{}
	compiled *jsonschema.Schema
}

// Type returns the dialect tag.
func (s *Parsed) Type() string { return schema.TypeJSON }

// CanonicalString renders the document with sorted keys and minimal
// whitespace.
func (s *Parsed) CanonicalString() string {
	return canonicalize(s.doc)
}

// Fingerprint returns the SHA-256 of the canonical rendering.
func (s *Parsed) Fingerprint() string {
	sum := sha256.Sum256([]byte(s.CanonicalString()))
	return hex.EncodeToString(sum[:])
}

// Compiled returns the compiled schema.
func (s *Parsed) Compiled() *jsonschema.Schema { return s.compiled }

// Fields returns the top-level properties, named and typed.
func (s *Parsed) Fields() []schema.Field {
	props, ok := s.doc["properties"].(map[string]interface{})
	if !ok {
		return nil
	}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]schema.Field, 0, len(names))
	for _, name := range names {
		fieldType := ""
		if prop, ok := props[name].(map[string]interface{}); ok {
			if t, ok := prop["type"].(string); ok {
				fieldType = t
			}
		}
		fields = append(fields, schema.Field{Name: name, Type: fieldType})
	}
	return fields
}

// canonicalize renders a JSON value with alphabetically sorted object keys.
func canonicalize(v interface{}) string {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			key, _ := json.Marshal(k)
			parts = append(parts, string(key)+":"+canonicalize(val[k]))
		}
		return "{" + strings.Join(parts, ",") + "}"
	case []interface{}:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = canonicalize(item)
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

var _ schema.Provider = (*Provider)(nil)
