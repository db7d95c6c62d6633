// Package avro checks Avro schema compatibility using the reader/writer
// resolution rules of the Avro specification.
package avro

import (
	"fmt"

	"github.com/hamba/avro/v2"

	"github.com/streamforge/schema-registry/internal/compatibility"
)

// Checker implements compatibility.DialectChecker for Avro.
type Checker struct{}

// NewChecker creates an Avro compatibility checker.
func NewChecker() *Checker {
	return &Checker{}
}

// Check reports whether the reader schema can decode data written with the
// writer schema.
func (c *Checker) Check(reader, writer string) *compatibility.Result {
	rs, err := avro.Parse(reader)
	if err != nil {
		return compatibility.NewIncompatibleResult(fmt.Sprintf("invalid reader schema: %v", err))
	}
	ws, err := avro.Parse(writer)
	if err != nil {
		return compatibility.NewIncompatibleResult(fmt.Sprintf("invalid writer schema: %v", err))
	}
	return c.resolve(rs, ws, "")
}

// resolve walks both schemas in lockstep, applying the resolution rules at
// each node.
func (c *Checker) resolve(reader, writer avro.Schema, at string) *compatibility.Result {
	ok := compatibility.NewCompatibleResult()

	if reader.Type() != writer.Type() {
		if promotable(writer.Type(), reader.Type()) {
			return ok
		}
		// A reader union matches if any branch can read the writer; a
		// writer union requires the reader to read every branch.
		if ru, isUnion := reader.(*avro.UnionSchema); isUnion {
			for _, branch := range ru.Types() {
				if c.resolve(branch, writer, at).IsCompatible {
					return ok
				}
			}
			return compatibility.NewIncompatibleResult(fmt.Sprintf(
				"%s: no branch of the reader union can read writer type %s", loc(at), writer.Type()))
		}
		if wu, isUnion := writer.(*avro.UnionSchema); isUnion {
			for _, branch := range wu.Types() {
				if r := c.resolve(reader, branch, at); !r.IsCompatible {
					return compatibility.NewIncompatibleResult(fmt.Sprintf(
						"%s: reader type %s cannot read writer union branch %s", loc(at), reader.Type(), branch.Type()))
				}
			}
			return ok
		}
		return compatibility.NewIncompatibleResult(fmt.Sprintf(
			"%s: reader type %s cannot read writer type %s", loc(at), reader.Type(), writer.Type()))
	}

	switch r := reader.(type) {
	case *avro.RecordSchema:
		return c.resolveRecord(r, writer.(*avro.RecordSchema), at)
	case *avro.EnumSchema:
		return c.resolveEnum(r, writer.(*avro.EnumSchema), at)
	case *avro.ArraySchema:
		return c.resolve(r.Items(), writer.(*avro.ArraySchema).Items(), at+"[]")
	case *avro.MapSchema:
		return c.resolve(r.Values(), writer.(*avro.MapSchema).Values(), at+"{}")
	case *avro.UnionSchema:
		return c.resolveUnions(r, writer.(*avro.UnionSchema), at)
	case *avro.FixedSchema:
		w := writer.(*avro.FixedSchema)
		if !namesMatch(r.FullName(), r.Aliases(), w.FullName(), w.Aliases()) {
			return compatibility.NewIncompatibleResult(fmt.Sprintf(
				"%s: fixed name mismatch: %s vs %s", loc(at), r.FullName(), w.FullName()))
		}
		if r.Size() != w.Size() {
			return compatibility.NewIncompatibleResult(fmt.Sprintf(
				"%s: fixed size mismatch: %d vs %d", loc(at), r.Size(), w.Size()))
		}
		return ok
	default:
		// Matching primitive types resolve trivially.
		return ok
	}
}

func (c *Checker) resolveRecord(reader, writer *avro.RecordSchema, at string) *compatibility.Result {
	result := compatibility.NewCompatibleResult()

	if !namesMatch(reader.FullName(), reader.Aliases(), writer.FullName(), writer.Aliases()) {
		result.AddMessage("%s: record name mismatch: %s vs %s", loc(at), reader.FullName(), writer.FullName())
		return result
	}

	byName := make(map[string]*avro.Field, len(writer.Fields()))
	for _, wf := range writer.Fields() {
		byName[wf.Name()] = wf
		for _, alias := range wf.Aliases() {
			byName[alias] = wf
		}
	}

	for _, rf := range reader.Fields() {
		wf := byName[rf.Name()]
		if wf == nil {
			for _, alias := range rf.Aliases() {
				if wf = byName[alias]; wf != nil {
					break
				}
			}
		}
		if wf == nil {
			// Missing writer fields fill from the reader default.
			if !rf.HasDefault() {
				result.AddMessage("%s: reader field %q is missing from the writer and has no default",
					loc(at), rf.Name())
			}
			continue
		}
		result.Merge(c.resolve(rf.Type(), wf.Type(), join(at, rf.Name())))
	}
	return result
}

func (c *Checker) resolveEnum(reader, writer *avro.EnumSchema, at string) *compatibility.Result {
	result := compatibility.NewCompatibleResult()

	if !namesMatch(reader.FullName(), reader.Aliases(), writer.FullName(), writer.Aliases()) {
		result.AddMessage("%s: enum name mismatch: %s vs %s", loc(at), reader.FullName(), writer.FullName())
		return result
	}

	known := make(map[string]bool, len(reader.Symbols()))
	for _, s := range reader.Symbols() {
		known[s] = true
	}
	// Unknown writer symbols fall back to the reader's enum default.
	for _, s := range writer.Symbols() {
		if !known[s] && reader.Default() == "" {
			result.AddMessage("%s: writer enum symbol %q is unknown to the reader and no default is set",
				loc(at), s)
		}
	}
	return result
}

func (c *Checker) resolveUnions(reader, writer *avro.UnionSchema, at string) *compatibility.Result {
	result := compatibility.NewCompatibleResult()
	for _, wb := range writer.Types() {
		matched := false
		for _, rb := range reader.Types() {
			if c.resolve(rb, wb, at).IsCompatible {
				matched = true
				break
			}
		}
		if !matched {
			result.AddMessage("%s: writer union branch %s matches no reader union branch", loc(at), wb.Type())
		}
	}
	return result
}

// promotable reports whether a writer type can widen to the reader type:
// int -> long/float/double, long -> float/double, float -> double, and
// string <-> bytes.
func promotable(writer, reader avro.Type) bool {
	switch writer {
	case avro.Int:
		return reader == avro.Long || reader == avro.Float || reader == avro.Double
	case avro.Long:
		return reader == avro.Float || reader == avro.Double
	case avro.Float:
		return reader == avro.Double
	case avro.String:
		return reader == avro.Bytes
	case avro.Bytes:
		return reader == avro.String
	}
	return false
}

// namesMatch compares full names, accepting alias matches in either direction.
func namesMatch(readerName string, readerAliases []string, writerName string, writerAliases []string) bool {
	if readerName == writerName {
		return true
	}
	for _, alias := range writerAliases {
		if readerName == alias {
			return true
		}
	}
	for _, alias := range readerAliases {
		if writerName == alias {
			return true
		}
	}
	return false
}

func loc(at string) string {
	if at == "" {
		return "root"
	}
	return at
}

func join(at, segment string) string {
	if at == "" {
		return segment
	}
	return at + "." + segment
}

var _ compatibility.DialectChecker = (*Checker)(nil)
