package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
	"golang.org/x/exp/maps"
)

// TypeField is the field that carries the discriminator of a serialized model.
const TypeField = "$type"

var ErrInvalidModelData = errors.New("invalid model data")

// ModelData is the raw, loosely typed representation of a page, region or entity
// as returned by the content service. Field order follows the source document.
// Values are one of string, float64, bool, nil, *ModelData or []any of those.
//
// A ModelData is immutable once parsed and is safe for concurrent use.
type ModelData struct {
	discriminator string
	names         []string
	values        map[string]any
}

// ParseModelData parses a JSON object into a ModelData.
func ParseModelData(raw []byte) (*ModelData, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: malformed json", ErrInvalidModelData)
	}

	res := gjson.ParseBytes(raw)
	if !res.IsObject() {
		return nil, fmt.Errorf("%w: expected a json object, got %s", ErrInvalidModelData, res.Type)
	}

	return fromResult(res), nil
}

// MustParseModelData is like ParseModelData but panics on error.
func MustParseModelData(raw string) *ModelData {
	md, err := ParseModelData([]byte(raw))
	if err != nil {
		panic(err)
	}
	return md
}

func fromResult(res gjson.Result) *ModelData {
	md := &ModelData{values: map[string]any{}}
	res.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if name == TypeField {
			md.discriminator = value.String()
			return true
		}
		if _, dup := md.values[name]; !dup {
			md.names = append(md.names, name)
		}
		md.values[name] = convert(value)
		return true
	})
	return md
}

func convert(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.False, gjson.True:
		return v.Bool()
	case gjson.Number:
		return v.Float()
	case gjson.String:
		return v.String()
	default:
		if v.IsArray() {
			items := v.Array()
			out := make([]any, 0, len(items))
			for _, item := range items {
				out = append(out, convert(item))
			}
			return out
		}
		return fromResult(v)
	}
}

// Type returns the discriminator found in the $type field, or an empty string.
func (m *ModelData) Type() string {
	if m == nil {
		return ""
	}
	return m.discriminator
}

// Names returns the field names in document order.
func (m *ModelData) Names() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.names...)
}

func (m *ModelData) Len() int {
	if m == nil {
		return 0
	}
	return len(m.names)
}

// Get returns the raw value of a field. Slices are returned as copies.
func (m *ModelData) Get(name string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[name]
	if list, isList := v.([]any); isList {
		return append([]any(nil), list...), ok
	}
	return v, ok
}

// String returns the field as a string. Numbers and booleans are formatted;
// anything else yields an empty string.
func (m *ModelData) String(name string) string {
	v, _ := m.Get(name)
	return scalarString(v)
}

func (m *ModelData) Bool(name string) bool {
	v, _ := m.Get(name)
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, _ := strconv.ParseBool(b)
		return parsed
	}
	return false
}

func (m *ModelData) Int(name string) int {
	v, _ := m.Get(name)
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		parsed, _ := strconv.Atoi(n)
		return parsed
	}
	return 0
}

// Object returns a nested ModelData, or nil if the field is absent or not an object.
func (m *ModelData) Object(name string) *ModelData {
	v, _ := m.Get(name)
	obj, _ := v.(*ModelData)
	return obj
}

// Objects returns the nested objects of a list field. A single object is
// treated as a list of one; non-object items are skipped.
func (m *ModelData) Objects(name string) []*ModelData {
	v, _ := m.Get(name)
	switch t := v.(type) {
	case *ModelData:
		return []*ModelData{t}
	case []any:
		out := make([]*ModelData, 0, len(t))
		for _, item := range t {
			if obj, ok := item.(*ModelData); ok {
				out = append(out, obj)
			}
		}
		return out
	}
	return nil
}

// WithFilteredObjects returns a copy of m in which the list field name only
// holds the objects for which keep returns true. m itself is not modified.
func (m *ModelData) WithFilteredObjects(name string, keep func(*ModelData) bool) *ModelData {
	if m == nil {
		return nil
	}
	list, ok := m.values[name].([]any)
	if !ok {
		return m
	}

	filtered := make([]any, 0, len(list))
	for _, item := range list {
		if obj, isObj := item.(*ModelData); isObj && !keep(obj) {
			continue
		}
		filtered = append(filtered, item)
	}

	cp := &ModelData{
		discriminator: m.discriminator,
		names:         m.names,
		values:        maps.Clone(m.values),
	}
	cp.values[name] = filtered
	return cp
}

// Strings returns the scalar items of a list field as strings.
func (m *ModelData) Strings(name string) []string {
	v, _ := m.Get(name)
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if _, ok := item.(*ModelData); ok {
				continue
			}
			out = append(out, scalarString(item))
		}
		return out
	}
	return nil
}

// StringMap flattens an object field into a string map. Nested objects and
// lists are dropped.
func (m *ModelData) StringMap(name string) map[string]string {
	obj := m.Object(name)
	if obj == nil {
		return nil
	}
	out := make(map[string]string, obj.Len())
	for _, k := range obj.names {
		switch obj.values[k].(type) {
		case *ModelData, []any:
			continue
		}
		out[k] = scalarString(obj.values[k])
	}
	return out
}

// Map converts an object field into plain Go maps and slices.
func (m *ModelData) Map(name string) map[string]any {
	obj := m.Object(name)
	if obj == nil {
		return nil
	}
	return obj.ToMap()
}

// ToMap converts the ModelData into plain Go maps and slices. The
// discriminator is kept under TypeField when present.
func (m *ModelData) ToMap() map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m.names)+1)
	if m.discriminator != "" {
		out[TypeField] = m.discriminator
	}
	for _, k := range m.names {
		out[k] = plain(m.values[k])
	}
	return out
}

func plain(v any) any {
	switch t := v.(type) {
	case *ModelData:
		return t.ToMap()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plain(item)
		}
		return out
	}
	return v
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// MarshalJSON writes the fields in their original order.
func (m *ModelData) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	writeField := func(name string, value any) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, err := json.Marshal(name)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(v)
		return nil
	}

	if m.discriminator != "" {
		if err := writeField(TypeField, m.discriminator); err != nil {
			return nil, err
		}
	}
	for _, name := range m.names {
		if err := writeField(name, m.values[name]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
