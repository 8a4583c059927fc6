package typeinfo

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"
)

// ErrNotStruct is returned when class metadata is requested for a non-struct type.
var ErrNotStruct = errors.New("typeinfo: not a struct type")

// FieldMeta describes one serializable field.
type FieldMeta struct {
	// Name is the wire name: the `cty` tag when present, else the Go name
	// in snake_case.
	Name   string
	GoName string
	Index  []int
	Type   reflect.Type
}

// ClassMeta describes the serializable shape of a struct type.
type ClassMeta struct {
	Descriptor Descriptor
	Fields     []FieldMeta
}

// Field returns the field with the given wire name.
func (c *ClassMeta) Field(name string) (FieldMeta, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldMeta{}, false
}

// ClassMetaLibrary caches class metadata for one environment generation.
type ClassMetaLibrary struct {
	types *Registry
	mu    sync.Mutex
	cache map[reflect.Type]*ClassMeta
}

// NewClassMetaLibrary creates a library resolving descriptors through types.
func NewClassMetaLibrary(types *Registry) *ClassMetaLibrary {
	return &ClassMetaLibrary{types: types, cache: make(map[reflect.Type]*ClassMeta)}
}

// Meta returns the metadata of struct type t.
func (l *ClassMetaLibrary) Meta(t reflect.Type) (*ClassMeta, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.cache[t]; ok {
		return m, nil
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s", ErrNotStruct, t)
	}
	m := &ClassMeta{Descriptor: l.types.Of(t), Fields: FieldsOf(t)}
	l.cache[t] = m
	return m, nil
}

// FieldsOf lists the exported fields of struct type t, skipping fields
// tagged `cty:"-"`.
func FieldsOf(t reflect.Type) []FieldMeta {
	if t.Kind() != reflect.Struct {
		return nil
	}
	var out []FieldMeta
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Tag.Get("cty")
		if name == "-" {
			continue
		}
		if name == "" {
			name = SnakeCase(f.Name)
		}
		out = append(out, FieldMeta{Name: name, GoName: f.Name, Index: f.Index, Type: f.Type})
	}
	return out
}

// SnakeCase converts a Go identifier to snake_case. Acronyms stay together:
// "HTTPPort" becomes "http_port".
func SnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
