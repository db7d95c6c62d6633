// Package protobuf provides the Protobuf dialect: compilation with
// bufbuild/protocompile, normalized-form fingerprinting, and message field
// extraction.
package protobuf

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/streamforge/schema-registry/internal/schema"
)

// Provider implements schema.Provider for Protobuf.
type Provider struct{}

// NewProvider creates a Protobuf provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Type returns the dialect tag.
func (p *Provider) Type() string { return schema.TypeProtobuf }

// Parse compiles the .proto source, which validates both syntax and type
// references.
func (p *Provider) Parse(text string) (schema.ParsedSchema, error) {
	fd, err := Compile(context.Background(), text)
	if err != nil {
		return nil, err
	}
	return &Parsed{descriptor: fd}, nil
}

// Parsed is a compiled Protobuf schema.
type Parsed struct {
	descriptor protoreflect.FileDescriptor
}

// Type returns the dialect tag.
func (s *Parsed) Type() string { return schema.TypeProtobuf }

// CanonicalString renders the schema in a normalized form: declarations
// sorted by name, fields sorted by number, no comments or options.
func (s *Parsed) CanonicalString() string {
	return normalize(s.descriptor)
}

// Fingerprint returns the SHA-256 of the normalized rendering.
func (s *Parsed) Fingerprint() string {
	sum := sha256.Sum256([]byte(s.CanonicalString()))
	return hex.EncodeToString(sum[:])
}

// Descriptor returns the compiled file descriptor.
func (s *Parsed) Descriptor() protoreflect.FileDescriptor { return s.descriptor }

// Fields returns every field of every message in the file. The namespace of
// a field is the full name of its enclosing message.
func (s *Parsed) Fields() []schema.Field {
	var fields []schema.Field
	msgs := s.descriptor.Messages()
	for i := 0; i < msgs.Len(); i++ {
		collectMessageFields(msgs.Get(i), &fields)
	}
	return fields
}

func collectMessageFields(md protoreflect.MessageDescriptor, out *[]schema.Field) {
	for i := 0; i < md.Fields().Len(); i++ {
		f := md.Fields().Get(i)
		*out = append(*out, schema.Field{
			Name:      string(f.Name()),
			Namespace: string(md.FullName()),
			Type:      fieldTypeName(f),
		})
	}
	for i := 0; i < md.Messages().Len(); i++ {
		nested := md.Messages().Get(i)
		if !nested.IsMapEntry() {
			collectMessageFields(nested, out)
		}
	}
}

func fieldTypeName(f protoreflect.FieldDescriptor) string {
	switch f.Kind() {
	case protoreflect.MessageKind:
		return string(f.Message().FullName())
	case protoreflect.EnumKind:
		return string(f.Enum().FullName())
	default:
		return f.Kind().String()
	}
}

func normalize(fd protoreflect.FileDescriptor) string {
	var sb strings.Builder

	if fd.Syntax() == protoreflect.Proto2 {
		sb.WriteString("syntax = \"proto2\";\n")
	} else {
		sb.WriteString("syntax = \"proto3\";\n")
	}
	if fd.Package() != "" {
		fmt.Fprintf(&sb, "package %s;\n", fd.Package())
	}

	msgs := make([]string, 0, fd.Messages().Len())
	for i := 0; i < fd.Messages().Len(); i++ {
		msgs = append(msgs, normalizeMessage(fd.Messages().Get(i), 0))
	}
	sort.Strings(msgs)
	for _, m := range msgs {
		sb.WriteString(m)
	}

	enums := make([]string, 0, fd.Enums().Len())
	for i := 0; i < fd.Enums().Len(); i++ {
		enums = append(enums, normalizeEnum(fd.Enums().Get(i), 0))
	}
	sort.Strings(enums)
	for _, e := range enums {
		sb.WriteString(e)
	}

	return sb.String()
}

func normalizeMessage(md protoreflect.MessageDescriptor, depth int) string {
	var sb strings.Builder
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(&sb, "%smessage %s {\n", indent, md.Name())

	type fieldLine struct {
		number int
		text   string
	}
	lines := make([]fieldLine, 0, md.Fields().Len())
	for i := 0; i < md.Fields().Len(); i++ {
		f := md.Fields().Get(i)
		lines = append(lines, fieldLine{int(f.Number()), normalizeField(f, depth+1)})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].number < lines[j].number })
	for _, line := range lines {
		sb.WriteString(line.text)
	}

	nested := make([]string, 0, md.Messages().Len())
	for i := 0; i < md.Messages().Len(); i++ {
		nm := md.Messages().Get(i)
		if !nm.IsMapEntry() {
			nested = append(nested, normalizeMessage(nm, depth+1))
		}
	}
	sort.Strings(nested)
	for _, n := range nested {
		sb.WriteString(n)
	}

	enums := make([]string, 0, md.Enums().Len())
	for i := 0; i < md.Enums().Len(); i++ {
		enums = append(enums, normalizeEnum(md.Enums().Get(i), depth+1))
	}
	sort.Strings(enums)
	for _, e := range enums {
		sb.WriteString(e)
	}

	fmt.Fprintf(&sb, "%s}\n", indent)
	return sb.String()
}

func normalizeField(f protoreflect.FieldDescriptor, depth int) string {
	indent := strings.Repeat("  ", depth)
	if f.IsMap() {
		return fmt.Sprintf("%smap<%s, %s> %s = %d;\n", indent,
			fieldTypeName(f.MapKey()), fieldTypeName(f.MapValue()), f.Name(), f.Number())
	}
	label := ""
	switch {
	case f.Cardinality() == protoreflect.Repeated:
		label = "repeated "
	case f.Cardinality() == protoreflect.Required:
		label = "required "
	case f.Cardinality() == protoreflect.Optional && f.ParentFile().Syntax() == protoreflect.Proto2:
		label = "optional "
	}
	return fmt.Sprintf("%s%s%s %s = %d;\n", indent, label, fieldTypeName(f), f.Name(), f.Number())
}

func normalizeEnum(ed protoreflect.EnumDescriptor, depth int) string {
	var sb strings.Builder
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(&sb, "%senum %s {\n", indent, ed.Name())
	for i := 0; i < ed.Values().Len(); i++ {
		v := ed.Values().Get(i)
		fmt.Fprintf(&sb, "%s  %s = %d;\n", indent, v.Name(), v.Number())
	}
	fmt.Fprintf(&sb, "%s}\n", indent)
	return sb.String()
}

var _ schema.Provider = (*Provider)(nil)
