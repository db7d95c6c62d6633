// Package avro provides the Avro dialect: parsing, canonical-form
// fingerprinting, and field extraction.
package avro

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hamba/avro/v2"

	"github.com/streamforge/schema-registry/internal/schema"
)

// Provider implements schema.Provider for Avro.
type Provider struct{}

// NewProvider creates an Avro provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Type returns the dialect tag.
func (p *Provider) Type() string { return schema.TypeAvro }

// Parse validates the schema text and derives its canonical form.
func (p *Provider) Parse(text string) (schema.ParsedSchema, error) {
	parsed, err := avro.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid Avro schema: %w", err)
	}

	canonical := canonicalize(text)
	sum := sha256.Sum256([]byte(canonical))

	return &Parsed{
		canonical:   canonical,
		fingerprint: hex.EncodeToString(sum[:]),
		schema:      parsed,
	}, nil
}

// Parsed is a validated Avro schema.
type Parsed struct {
	canonical   string
	fingerprint string
	schema      avro.Schema
}

// Type returns the dialect tag.
func (s *Parsed) Type() string { return schema.TypeAvro }

// CanonicalString returns the Parsing Canonical Form.
func (s *Parsed) CanonicalString() string { return s.canonical }

// Fingerprint returns the SHA-256 of the Parsing Canonical Form.
func (s *Parsed) Fingerprint() string { return s.fingerprint }

// Schema returns the underlying Avro schema.
func (s *Parsed) Schema() avro.Schema { return s.schema }

// Fields extracts the fields of every record reachable from the schema root.
// The namespace of a field is the full name of its enclosing record.
func (s *Parsed) Fields() []schema.Field {
	var fields []schema.Field
	seen := make(map[string]bool)
	collectFields(s.schema, seen, &fields)
	return fields
}

func collectFields(s avro.Schema, seen map[string]bool, out *[]schema.Field) {
	switch v := s.(type) {
	case *avro.RecordSchema:
		if seen[v.FullName()] {
			return
		}
		seen[v.FullName()] = true
		for _, f := range v.Fields() {
			*out = append(*out, schema.Field{
				Name:      f.Name(),
				Namespace: v.FullName(),
				Type:      string(f.Type().Type()),
			})
			collectFields(f.Type(), seen, out)
		}
	case *avro.ArraySchema:
		collectFields(v.Items(), seen, out)
	case *avro.MapSchema:
		collectFields(v.Values(), seen, out)
	case *avro.UnionSchema:
		for _, branch := range v.Types() {
			collectFields(branch, seen, out)
		}
	case *avro.RefSchema:
		if !seen[v.Schema().FullName()] {
			collectFields(v.Schema(), seen, out)
		}
	}
}

// Parsing Canonical Form attribute order. Attributes outside this list carry
// no meaning for decoding and are stripped; names are rendered as fullnames,
// which subsumes the namespace attribute.
var canonicalOrder = []string{"name", "type", "fields", "symbols", "items", "values", "size"}

var primitiveTypes = map[string]bool{
	"null": true, "boolean": true, "int": true, "long": true,
	"float": true, "double": true, "bytes": true, "string": true,
}

var typeKeywords = map[string]bool{
	"record": true, "enum": true, "fixed": true,
	"array": true, "map": true, "error": true,
}

// canonicalize reduces an Avro schema JSON document to its Parsing Canonical
// Form: minimal whitespace, attributes in canonical order, non-canonical
// attributes removed, named types and references rendered as fullnames.
func canonicalize(text string) string {
	var doc interface{}
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return text
	}
	return renderSchema(doc, "")
}

// renderSchema renders one schema position. enclosing is the namespace
// inherited from the nearest enclosing named type.
func renderSchema(v interface{}, enclosing string) string {
	switch val := v.(type) {
	case string:
		if !primitiveTypes[val] && !typeKeywords[val] {
			val = fullname(val, "", enclosing)
		}
		b, _ := json.Marshal(val)
		return string(b)
	case []interface{}:
		parts := make([]string, len(val))
		for i, branch := range val {
			parts[i] = renderSchema(branch, enclosing)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case map[string]interface{}:
		return renderObject(val, enclosing)
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

func renderObject(val map[string]interface{}, enclosing string) string {
	name := ""
	if raw, ok := val["name"].(string); ok {
		ns, _ := val["namespace"].(string)
		name = fullname(raw, ns, enclosing)
		if i := strings.LastIndex(name, "."); i >= 0 {
			enclosing = name[:i]
		} else {
			enclosing = ""
		}
	}

	var sb strings.Builder
	sb.WriteByte('{')
	first := true
	for _, attr := range canonicalOrder {
		inner, ok := val[attr]
		if !ok {
			continue
		}
		if !first {
			sb.WriteByte(',')
		}
		first = false
		key, _ := json.Marshal(attr)
		sb.Write(key)
		sb.WriteByte(':')
		switch attr {
		case "name":
			b, _ := json.Marshal(name)
			sb.Write(b)
		case "type", "items", "values":
			sb.WriteString(renderSchema(inner, enclosing))
		case "fields":
			sb.WriteString(renderFields(inner, enclosing))
		default:
			b, _ := json.Marshal(inner)
			sb.Write(b)
		}
	}
	sb.WriteByte('}')
	return sb.String()
}

// renderFields keeps only name and type of each field. Field names are plain
// identifiers, never namespaced.
func renderFields(v interface{}, enclosing string) string {
	arr, ok := v.([]interface{})
	if !ok {
		b, _ := json.Marshal(v)
		return string(b)
	}
	parts := make([]string, 0, len(arr))
	for _, item := range arr {
		field, ok := item.(map[string]interface{})
		if !ok {
			b, _ := json.Marshal(item)
			parts = append(parts, string(b))
			continue
		}
		var sb strings.Builder
		sb.WriteByte('{')
		first := true
		if name, ok := field["name"]; ok {
			b, _ := json.Marshal(name)
			sb.WriteString(`"name":`)
			sb.Write(b)
			first = false
		}
		if typ, ok := field["type"]; ok {
			if !first {
				sb.WriteByte(',')
			}
			sb.WriteString(`"type":`)
			sb.WriteString(renderSchema(typ, enclosing))
		}
		sb.WriteByte('}')
		parts = append(parts, sb.String())
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// fullname resolves a type name against its namespace attribute and the
// enclosing namespace, per the Avro name resolution rules.
func fullname(name, namespace, enclosing string) string {
	if strings.Contains(name, ".") {
		return name
	}
	if namespace == "" {
		namespace = enclosing
	}
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}

var _ schema.Provider = (*Provider)(nil)
