package record

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/specialistvlad/modenv/internal/copystrategy"
	"github.com/specialistvlad/modenv/internal/typehandler"
	"github.com/specialistvlad/modenv/internal/typeinfo"
	"github.com/specialistvlad/modenv/internal/urn"
	"github.com/zclconf/go-cty/cty"
)

// ErrNoHandlers is returned when decoding through a library built without a
// handler registry, as preview libraries are.
var ErrNoHandlers = errors.New("record: library has no type handlers")

// Metadata describes one registered record type.
type Metadata struct {
	URN        urn.URN
	Descriptor typeinfo.Descriptor
	Fields     []typeinfo.FieldMeta

	handlers *typehandler.Library
	copies   *copystrategy.Library
}

// Type returns the Go type of the record.
func (m *Metadata) Type() reflect.Type {
	return m.Descriptor.Type
}

func (m *Metadata) String() string {
	return m.URN.String()
}

// structType is the struct the record's fields live in.
func (m *Metadata) structType() reflect.Type {
	t := m.Descriptor.Type
	if t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}

// New returns a pointer to a zero record.
func (m *Metadata) New() any {
	return reflect.New(m.structType()).Interface()
}

// Deserialize decodes v, an object keyed by field names, into a new record
// of the registered type.
func (m *Metadata) Deserialize(v cty.Value) (any, error) {
	ptr := m.New()
	if err := m.DecodeInto(ptr, v); err != nil {
		return nil, err
	}
	if m.Descriptor.Type.Kind() == reflect.Pointer {
		return ptr, nil
	}
	return reflect.ValueOf(ptr).Elem().Interface(), nil
}

// DecodeInto overlays the attributes of v onto the record dst points to.
// Fields v does not mention keep their values.
func (m *Metadata) DecodeInto(dst any, v cty.Value) error {
	if m.handlers == nil {
		return fmt.Errorf("%w: decoding %s", ErrNoHandlers, m.URN)
	}
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Type() != m.structType() {
		return fmt.Errorf("decoding %s: want *%s, got %T", m.URN, m.structType(), dst)
	}
	h, err := m.handlers.Handler(m.structType())
	if err != nil {
		return fmt.Errorf("decoding %s: %w", m.URN, err)
	}
	if sh, ok := h.(*typehandler.StructHandler); ok {
		if err := sh.DecodeInto(rv.Elem(), v); err != nil {
			return fmt.Errorf("decoding %s: %w", m.URN, err)
		}
		return nil
	}
	decoded, err := h.Deserialize(v)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", m.URN, err)
	}
	dv := reflect.ValueOf(decoded)
	if !dv.IsValid() || !dv.Type().AssignableTo(m.structType()) {
		return fmt.Errorf("decoding %s: handler produced %T", m.URN, decoded)
	}
	rv.Elem().Set(dv)
	return nil
}

// Overlay returns a new record holding current with the attributes of v
// applied on top. A nil current starts from the zero record. current itself
// is never modified.
func (m *Metadata) Overlay(current any, v cty.Value) (any, error) {
	ptr := reflect.New(m.structType())
	if current != nil {
		cv := reflect.ValueOf(current)
		if cv.Type() != m.Descriptor.Type {
			return nil, fmt.Errorf("overlaying %s: want %s, got %T", m.URN, m.Descriptor.Type, current)
		}
		if cv.Kind() == reflect.Pointer {
			if !cv.IsNil() {
				ptr.Elem().Set(cv.Elem())
			}
		} else {
			ptr.Elem().Set(cv)
		}
	}
	if err := m.DecodeInto(ptr.Interface(), v); err != nil {
		return nil, err
	}
	if m.Descriptor.Type.Kind() == reflect.Pointer {
		return ptr.Interface(), nil
	}
	return ptr.Elem().Interface(), nil
}

// Serialize encodes a record of the registered type.
func (m *Metadata) Serialize(v any) (cty.Value, error) {
	if m.handlers == nil {
		return cty.NilVal, fmt.Errorf("%w: encoding %s", ErrNoHandlers, m.URN)
	}
	h, err := m.handlers.Handler(m.Descriptor.Type)
	if err != nil {
		return cty.NilVal, fmt.Errorf("encoding %s: %w", m.URN, err)
	}
	return h.Serialize(v)
}

// Copy returns an independent copy of v. A copy strategy for the whole type
// wins; otherwise fields are copied one by one, each with its own strategy
// when one exists and by assignment when not.
func (m *Metadata) Copy(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	if copied, ok := m.copies.Copy(v); ok {
		return copied, true
	}
	rv := reflect.ValueOf(v)
	if rv.Type() != m.Descriptor.Type {
		return nil, false
	}
	isPtr := rv.Kind() == reflect.Pointer
	if isPtr {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return v, true
	}

	out := reflect.New(rv.Type()).Elem()
	out.Set(rv)
	for _, f := range m.Fields {
		field := rv.FieldByIndex(f.Index)
		if field.Kind() == reflect.Pointer && field.IsNil() {
			continue
		}
		if copied, ok := m.copies.Copy(field.Interface()); ok {
			out.FieldByIndex(f.Index).Set(reflect.ValueOf(copied))
		}
	}
	if isPtr {
		return out.Addr().Interface(), true
	}
	return out.Interface(), true
}
