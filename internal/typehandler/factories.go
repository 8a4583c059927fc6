package typehandler

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/specialistvlad/modenv/internal/module"
	"github.com/specialistvlad/modenv/internal/typeinfo"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// ForModuleEnvironment returns the base library for env: handlers for Go
// primitives, pointers, slices, string-keyed maps and structs, plus the
// descriptor handler backed by types. These are fallbacks: factories added
// later are consulted before them.
func ForModuleEnvironment(env *module.Set, types *typeinfo.Registry) *Library {
	lib := NewLibrary(env, types)
	lib.AddHandler(reflect.TypeFor[typeinfo.Descriptor](), &descriptorHandler{env: lib.Environment(), types: types})
	lib.AddFallback(FactoryFunc(primitiveFactory))
	lib.AddFallback(FactoryFunc(pointerFactory))
	lib.AddFallback(FactoryFunc(collectionFactory))
	lib.AddFallback(FactoryFunc(structFactory))
	return lib
}

func primitiveFactory(t reflect.Type, _ *Library) (Handler, bool) {
	var ty cty.Type
	switch t.Kind() {
	case reflect.Bool:
		ty = cty.Bool
	case reflect.String:
		ty = cty.String
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		ty = cty.Number
	default:
		return nil, false
	}
	return &primitiveHandler{typ: t, ty: ty}, true
}

// primitiveHandler converts through gocty. Values of another primitive cty
// type are converted first, so "5" decodes into an int.
type primitiveHandler struct {
	typ reflect.Type
	ty  cty.Type
}

func (h *primitiveHandler) Serialize(v any) (cty.Value, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Type() != h.typ {
		return cty.NilVal, fmt.Errorf("%w: want %s, got %T", ErrWrongType, h.typ, v)
	}
	return gocty.ToCtyValue(v, h.ty)
}

func (h *primitiveHandler) Deserialize(v cty.Value) (any, error) {
	out := reflect.New(h.typ)
	if !v.IsKnown() {
		return nil, fmt.Errorf("decoding %s: %w", h.typ, ErrUnknownValue)
	}
	if v.IsNull() {
		return out.Elem().Interface(), nil
	}
	converted, err := convert.Convert(v, h.ty)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", h.typ, err)
	}
	if err := gocty.FromCtyValue(converted, out.Interface()); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", h.typ, err)
	}
	return out.Elem().Interface(), nil
}

func pointerFactory(t reflect.Type, lib *Library) (Handler, bool) {
	if t.Kind() != reflect.Pointer {
		return nil, false
	}
	return &pointerHandler{typ: t, lib: lib}, true
}

type pointerHandler struct {
	typ reflect.Type
	lib *Library
}

func (h *pointerHandler) Serialize(v any) (cty.Value, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Type() != h.typ {
		return cty.NilVal, fmt.Errorf("%w: want %s, got %T", ErrWrongType, h.typ, v)
	}
	if rv.IsNil() {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	elem, err := h.lib.Handler(h.typ.Elem())
	if err != nil {
		return cty.NilVal, err
	}
	return elem.Serialize(rv.Elem().Interface())
}

func (h *pointerHandler) Deserialize(v cty.Value) (any, error) {
	if !v.IsKnown() {
		return nil, fmt.Errorf("decoding %s: %w", h.typ, ErrUnknownValue)
	}
	if v.IsNull() {
		return reflect.Zero(h.typ).Interface(), nil
	}
	elem, err := h.lib.Handler(h.typ.Elem())
	if err != nil {
		return nil, err
	}
	decoded, err := elem.Deserialize(v)
	if err != nil {
		return nil, err
	}
	out := reflect.New(h.typ.Elem())
	if err := assign(out.Elem(), decoded); err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

func collectionFactory(t reflect.Type, lib *Library) (Handler, bool) {
	switch {
	case t.Kind() == reflect.Slice:
	case t.Kind() == reflect.Map && t.Key().Kind() == reflect.String:
	default:
		return nil, false
	}
	return &collectionHandler{typ: t, lib: lib}, true
}

// collectionHandler encodes slices as tuples and string-keyed maps as
// objects, so element types need not share one cty type.
type collectionHandler struct {
	typ reflect.Type
	lib *Library
}

func (h *collectionHandler) Serialize(v any) (cty.Value, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Type() != h.typ {
		return cty.NilVal, fmt.Errorf("%w: want %s, got %T", ErrWrongType, h.typ, v)
	}
	elem, err := h.lib.Handler(h.typ.Elem())
	if err != nil {
		return cty.NilVal, err
	}
	if h.typ.Kind() == reflect.Slice {
		if rv.Len() == 0 {
			return cty.EmptyTupleVal, nil
		}
		vals := make([]cty.Value, rv.Len())
		for i := range vals {
			if vals[i], err = elem.Serialize(rv.Index(i).Interface()); err != nil {
				return cty.NilVal, fmt.Errorf("element %d: %w", i, err)
			}
		}
		return cty.TupleVal(vals), nil
	}

	if rv.Len() == 0 {
		return cty.EmptyObjectVal, nil
	}
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	attrs := make(map[string]cty.Value, len(keys))
	for _, k := range keys {
		val, err := elem.Serialize(rv.MapIndex(k).Interface())
		if err != nil {
			return cty.NilVal, fmt.Errorf("key %q: %w", k.String(), err)
		}
		attrs[k.String()] = val
	}
	return cty.ObjectVal(attrs), nil
}

func (h *collectionHandler) Deserialize(v cty.Value) (any, error) {
	if !v.IsKnown() {
		return nil, fmt.Errorf("decoding %s: %w", h.typ, ErrUnknownValue)
	}
	if v.IsNull() {
		return reflect.Zero(h.typ).Interface(), nil
	}
	if !v.CanIterateElements() {
		return nil, fmt.Errorf("decoding %s: cannot iterate %s", h.typ, v.Type().FriendlyName())
	}
	elem, err := h.lib.Handler(h.typ.Elem())
	if err != nil {
		return nil, err
	}

	if h.typ.Kind() == reflect.Slice {
		if v.Type().IsMapType() || v.Type().IsObjectType() {
			return nil, fmt.Errorf("decoding %s: want a sequence, got %s", h.typ, v.Type().FriendlyName())
		}
		out := reflect.MakeSlice(h.typ, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			decoded, err := elem.Deserialize(ev)
			if err != nil {
				return nil, err
			}
			item := reflect.New(h.typ.Elem()).Elem()
			if err := assign(item, decoded); err != nil {
				return nil, err
			}
			out = reflect.Append(out, item)
		}
		return out.Interface(), nil
	}

	if !v.Type().IsMapType() && !v.Type().IsObjectType() {
		return nil, fmt.Errorf("decoding %s: want a mapping, got %s", h.typ, v.Type().FriendlyName())
	}
	out := reflect.MakeMapWithSize(h.typ, v.LengthInt())
	for it := v.ElementIterator(); it.Next(); {
		k, ev := it.Element()
		decoded, err := elem.Deserialize(ev)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k.AsString(), err)
		}
		item := reflect.New(h.typ.Elem()).Elem()
		if err := assign(item, decoded); err != nil {
			return nil, err
		}
		out.SetMapIndex(reflect.ValueOf(k.AsString()).Convert(h.typ.Key()), item)
	}
	return out.Interface(), nil
}

func structFactory(t reflect.Type, lib *Library) (Handler, bool) {
	if t.Kind() != reflect.Struct {
		return nil, false
	}
	return &StructHandler{typ: t, fields: typeinfo.FieldsOf(t), lib: lib}, true
}

// StructHandler maps the exported fields of a struct to object attributes.
// Field handlers are resolved on use so self-referential types work.
type StructHandler struct {
	typ    reflect.Type
	fields []typeinfo.FieldMeta
	lib    *Library
}

// Fields returns the serialized fields in declaration order.
func (h *StructHandler) Fields() []typeinfo.FieldMeta {
	return h.fields
}

func (h *StructHandler) Serialize(v any) (cty.Value, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Type() != h.typ {
		return cty.NilVal, fmt.Errorf("%w: want %s, got %T", ErrWrongType, h.typ, v)
	}
	if len(h.fields) == 0 {
		return cty.EmptyObjectVal, nil
	}
	attrs := make(map[string]cty.Value, len(h.fields))
	for _, f := range h.fields {
		fh, err := h.lib.Handler(f.Type)
		if err != nil {
			return cty.NilVal, fmt.Errorf("field %s: %w", f.Name, err)
		}
		val, err := fh.Serialize(rv.FieldByIndex(f.Index).Interface())
		if err != nil {
			return cty.NilVal, fmt.Errorf("field %s: %w", f.Name, err)
		}
		attrs[f.Name] = val
	}
	return cty.ObjectVal(attrs), nil
}

func (h *StructHandler) Deserialize(v cty.Value) (any, error) {
	out := reflect.New(h.typ).Elem()
	if v.IsNull() {
		return out.Interface(), nil
	}
	if err := h.DecodeInto(out, v); err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

// DecodeInto sets the fields of dst, a settable struct value, from the
// attributes of v. Attributes absent from v leave their field untouched, and
// a null v leaves dst as it is; unknown attributes are an error.
func (h *StructHandler) DecodeInto(dst reflect.Value, v cty.Value) error {
	if !v.IsKnown() {
		return fmt.Errorf("decoding %s: %w", h.typ, ErrUnknownValue)
	}
	if v.IsNull() {
		return nil
	}
	if !v.Type().IsObjectType() && !v.Type().IsMapType() {
		return fmt.Errorf("decoding %s: want an object, got %s", h.typ, v.Type().FriendlyName())
	}
	byName := make(map[string]typeinfo.FieldMeta, len(h.fields))
	for _, f := range h.fields {
		byName[f.Name] = f
	}
	for it := v.ElementIterator(); it.Next(); {
		k, ev := it.Element()
		name := k.AsString()
		f, ok := byName[name]
		if !ok {
			return fmt.Errorf("decoding %s: unknown attribute %q", h.typ, name)
		}
		fh, err := h.lib.Handler(f.Type)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		decoded, err := fh.Deserialize(ev)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		if err := assign(dst.FieldByIndex(f.Index), decoded); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
	}
	return nil
}

// assign stores a decoded value into dst. A nil decoded value leaves the
// zero value.
func assign(dst reflect.Value, decoded any) error {
	if decoded == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	dv := reflect.ValueOf(decoded)
	if !dv.Type().AssignableTo(dst.Type()) {
		return fmt.Errorf("%w: cannot store %s in %s", ErrWrongType, dv.Type(), dst.Type())
	}
	dst.Set(dv)
	return nil
}

// descriptorHandler encodes a type descriptor as its "pkg.Type" name. Only
// types known to the registry and owned by a module of the library's
// environment (or the core) decode.
type descriptorHandler struct {
	env   *module.Set
	types *typeinfo.Registry
}

func (h *descriptorHandler) Serialize(v any) (cty.Value, error) {
	d, ok := v.(typeinfo.Descriptor)
	if !ok {
		return cty.NilVal, fmt.Errorf("%w: want typeinfo.Descriptor, got %T", ErrWrongType, v)
	}
	return cty.StringVal(d.Name), nil
}

func (h *descriptorHandler) Deserialize(v cty.Value) (any, error) {
	if !v.IsKnown() {
		return nil, fmt.Errorf("decoding type descriptor: %w", ErrUnknownValue)
	}
	if v.IsNull() || !v.Type().Equals(cty.String) {
		return nil, fmt.Errorf("decoding type descriptor: want a string, got %s", v.Type().FriendlyName())
	}
	name := v.AsString()
	d, ok := h.types.ByName(name)
	if !ok {
		return nil, fmt.Errorf("decoding type descriptor: unknown type %q", name)
	}
	if d.Module != typeinfo.CoreModule {
		if _, ok := h.env.Module(d.Module); !ok {
			return nil, fmt.Errorf("decoding type descriptor: %q belongs to module %q outside this environment", name, d.Module)
		}
	}
	return d, nil
}
