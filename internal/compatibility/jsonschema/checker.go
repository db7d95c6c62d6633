// Package jsonschema checks JSON Schema compatibility from structural deltas
// between two schema documents.
package jsonschema

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/streamforge/schema-registry/internal/compatibility"
)

// Checker implements compatibility.DialectChecker for JSON Schema.
//
// The reader schema is compatible with the writer schema when every instance
// the writer accepted still validates under the reader: types may not narrow,
// the reader may not require properties the writer did not, and a closed
// reader may not drop properties the writer declared.
type Checker struct{}

// NewChecker creates a JSON Schema compatibility checker.
func NewChecker() *Checker {
	return &Checker{}
}

// Check reports whether the reader schema accepts all instances the writer
// schema accepted.
func (c *Checker) Check(reader, writer string) *compatibility.Result {
	var rs, ws map[string]interface{}
	if err := json.Unmarshal([]byte(reader), &rs); err != nil {
		return compatibility.NewIncompatibleResult(fmt.Sprintf("invalid reader schema: %v", err))
	}
	if err := json.Unmarshal([]byte(writer), &ws); err != nil {
		return compatibility.NewIncompatibleResult(fmt.Sprintf("invalid writer schema: %v", err))
	}
	return c.compare(rs, ws, "")
}

func (c *Checker) compare(reader, writer map[string]interface{}, at string) *compatibility.Result {
	result := compatibility.NewCompatibleResult()

	if rt, wt := typeSet(reader), typeSet(writer); len(rt) > 0 && len(wt) > 0 {
		for t := range wt {
			if !rt[t] {
				result.AddMessage("%s: reader no longer accepts type %q", loc(at), t)
			}
		}
	}

	if re := enumValues(reader); re != nil {
		we := enumValues(writer)
		if we == nil {
			result.AddMessage("%s: reader restricts values to an enum the writer did not have", loc(at))
		} else {
			for _, wv := range we {
				if !containsValue(re, wv) {
					result.AddMessage("%s: reader enum no longer accepts value %v", loc(at), wv)
				}
			}
		}
	}

	writerRequired := stringSet(writer, "required")
	for _, name := range stringList(reader, "required") {
		if !writerRequired[name] {
			result.AddMessage("%s: reader newly requires property %q", loc(at), name)
		}
	}

	readerProps := properties(reader)
	writerProps := properties(writer)
	for name, wp := range writerProps {
		rp, ok := readerProps[name]
		if !ok {
			if closed(reader) {
				result.AddMessage("%s: reader dropped property %q and forbids additional properties", loc(at), name)
			}
			continue
		}
		result.Merge(c.compare(rp, wp, join(at, name)))
	}

	if ri := childSchema(reader, "items"); ri != nil {
		if wi := childSchema(writer, "items"); wi != nil {
			result.Merge(c.compare(ri, wi, at+"[]"))
		}
	}

	return result
}

func typeSet(schema map[string]interface{}) map[string]bool {
	set := make(map[string]bool)
	switch t := schema["type"].(type) {
	case string:
		set[t] = true
	case []interface{}:
		for _, v := range t {
			if s, ok := v.(string); ok {
				set[s] = true
			}
		}
	}
	// integer instances are valid numbers
	if set["number"] {
		set["integer"] = true
	}
	return set
}

func enumValues(schema map[string]interface{}) []interface{} {
	if e, ok := schema["enum"].([]interface{}); ok {
		return e
	}
	return nil
}

func containsValue(values []interface{}, v interface{}) bool {
	for _, candidate := range values {
		if reflect.DeepEqual(candidate, v) {
			return true
		}
	}
	return false
}

func stringList(schema map[string]interface{}, key string) []string {
	raw, ok := schema[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringSet(schema map[string]interface{}, key string) map[string]bool {
	set := make(map[string]bool)
	for _, s := range stringList(schema, key) {
		set[s] = true
	}
	return set
}

func properties(schema map[string]interface{}) map[string]map[string]interface{} {
	raw, ok := schema["properties"].(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]map[string]interface{}, len(raw))
	for name, v := range raw {
		if m, ok := v.(map[string]interface{}); ok {
			out[name] = m
		}
	}
	return out
}

func childSchema(schema map[string]interface{}, key string) map[string]interface{} {
	if m, ok := schema[key].(map[string]interface{}); ok {
		return m
	}
	return nil
}

func closed(schema map[string]interface{}) bool {
	allow, ok := schema["additionalProperties"].(bool)
	return ok && !allow
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
