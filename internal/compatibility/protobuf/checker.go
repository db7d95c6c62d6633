// Package protobuf checks Protobuf schema compatibility from field-number
// preservation rules.
package protobuf

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/streamforge/schema-registry/internal/compatibility"
	schemapb "github.com/streamforge/schema-registry/internal/schema/protobuf"
)

// Checker implements compatibility.DialectChecker for Protobuf.
//
// Adding and removing fields is always safe on the wire; what breaks readers
// is reusing a field number with a different wire shape. A message present in
// both schemas must keep, for every shared field number, a compatible kind
// and the same cardinality.
type Checker struct{}

// NewChecker creates a Protobuf compatibility checker.
func NewChecker() *Checker {
	return &Checker{}
}

// Check reports whether the reader schema can decode data written with the
// writer schema.
func (c *Checker) Check(reader, writer string) *compatibility.Result {
	ctx := context.Background()
	rd, err := schemapb.Compile(ctx, reader)
	if err != nil {
		return compatibility.NewIncompatibleResult(fmt.Sprintf("invalid reader schema: %v", err))
	}
	wd, err := schemapb.Compile(ctx, writer)
	if err != nil {
		return compatibility.NewIncompatibleResult(fmt.Sprintf("invalid writer schema: %v", err))
	}

	result := compatibility.NewCompatibleResult()
	readerMsgs := messagesByName(rd)
	for name, wm := range messagesByName(wd) {
		rm, ok := readerMsgs[name]
		if !ok {
			continue
		}
		c.compareMessages(rm, wm, result)
	}
	return result
}

func (c *Checker) compareMessages(reader, writer protoreflect.MessageDescriptor, result *compatibility.Result) {
	for i := 0; i < writer.Fields().Len(); i++ {
		wf := writer.Fields().Get(i)
		rf := reader.Fields().ByNumber(wf.Number())
		if rf == nil {
			continue
		}
		if !kindsCompatible(rf.Kind(), wf.Kind()) {
			result.AddMessage("%s: field %d changed kind from %s to %s",
				writer.FullName(), wf.Number(), wf.Kind(), rf.Kind())
		}
		if (rf.Cardinality() == protoreflect.Repeated) != (wf.Cardinality() == protoreflect.Repeated) {
			result.AddMessage("%s: field %d changed between repeated and singular",
				writer.FullName(), wf.Number())
		}
		if rf.Kind() == protoreflect.MessageKind && wf.Kind() == protoreflect.MessageKind &&
			rf.Message().Name() != wf.Message().Name() {
			result.AddMessage("%s: field %d changed message type from %s to %s",
				writer.FullName(), wf.Number(), wf.Message().Name(), rf.Message().Name())
		}
	}
}

// kindsCompatible groups kinds by wire shape: varint integers interchange,
// as do the 32-bit and 64-bit fixed widths, and string with bytes.
func kindsCompatible(a, b protoreflect.Kind) bool {
	if a == b {
		return true
	}
	return wireGroup(a) != 0 && wireGroup(a) == wireGroup(b)
}

func wireGroup(k protoreflect.Kind) int {
	switch k {
	case protoreflect.Int32Kind, protoreflect.Int64Kind, protoreflect.Uint32Kind,
		protoreflect.Uint64Kind, protoreflect.BoolKind, protoreflect.EnumKind:
		return 1
	case protoreflect.Sint32Kind, protoreflect.Sint64Kind:
		return 2
	case protoreflect.Fixed32Kind, protoreflect.Sfixed32Kind, protoreflect.FloatKind:
		return 3
	case protoreflect.Fixed64Kind, protoreflect.Sfixed64Kind, protoreflect.DoubleKind:
		return 4
	case protoreflect.StringKind, protoreflect.BytesKind:
		return 5
	default:
		return 0
	}
}

func messagesByName(fd protoreflect.FileDescriptor) map[string]protoreflect.MessageDescriptor {
	out := make(map[string]protoreflect.MessageDescriptor)
	var walk func(md protoreflect.MessageDescriptor)
	walk = func(md protoreflect.MessageDescriptor) {
		out[string(md.FullName())] = md
		for i := 0; i < md.Messages().Len(); i++ {
			nested := md.Messages().Get(i)
			if !nested.IsMapEntry() {
				walk(nested)
			}
		}
	}
	for i := 0; i < fd.Messages().Len(); i++ {
		walk(fd.Messages().Get(i))
	}
	return out
}

var _ compatibility.DialectChecker = (*Checker)(nil)
