// Package typehandler is the type-handler registry: it maps Go types to the
// handlers that serialize their values to and from cty values, with an
// ordered chain of factories consulted when no handler was registered
// directly.
//
// A Library is built for one environment generation. Handlers may hold
// environment-scoped collaborators (the collision-group manager, the type
// registry), so a Library must never be carried into the next generation.
package typehandler

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/zclconf/go-cty/cty"
)

var (
	// ErrNoHandler is returned when neither a handler nor a factory covers a type.
	ErrNoHandler = errors.New("typehandler: no handler for type")
	// ErrWrongType is returned when a handler is given a value of another type.
	ErrWrongType = errors.New("typehandler: value has wrong type")
	// ErrUnknownValue is returned when asked to decode a value that is not
	// known yet.
	ErrUnknownValue = errors.New("typehandler: value is unknown")
)

// Handler is the type-erased form every registered handler takes.
type Handler interface {
	Serialize(v any) (cty.Value, error)
	Deserialize(v cty.Value) (any, error)
}

// Typed is the form module authors implement. The handled type is T.
type Typed[T any] interface {
	Serialize(v T) (cty.Value, error)
	Deserialize(v cty.Value) (T, error)
}

// Erase adapts a typed handler to Handler.
func Erase[T any](h Typed[T]) Handler {
	return erased[T]{h: h}
}

type erased[T any] struct {
	h Typed[T]
}

func (e erased[T]) Serialize(v any) (cty.Value, error) {
	typed, ok := v.(T)
	if !ok {
		return cty.NilVal, fmt.Errorf("%w: want %s, got %T", ErrWrongType, reflect.TypeFor[T](), v)
	}
	return e.h.Serialize(typed)
}

func (e erased[T]) Deserialize(v cty.Value) (any, error) {
	return e.h.Deserialize(v)
}

func (e erased[T]) unwrap() any { return e.h }

// Unwrap returns the handler a module registered, before type erasure.
func Unwrap(h Handler) any {
	if u, ok := h.(interface{ unwrap() any }); ok {
		return u.unwrap()
	}
	return h
}

var (
	ctyValueType = reflect.TypeFor[cty.Value]()
	errorType    = reflect.TypeFor[error]()
)

// HandledType resolves the type a handler type handles from its
// Deserialize(cty.Value) (T, error) method. It reports false for handlers
// without such a method and for untyped handlers whose T is an empty
// interface.
func HandledType(handlerType reflect.Type) (reflect.Type, bool) {
	if handlerType == nil {
		return nil, false
	}
	de, ok := handlerType.MethodByName("Deserialize")
	if !ok {
		return nil, false
	}
	dt := de.Type
	// Method types of concrete types include the receiver.
	offset := 1
	if handlerType.Kind() == reflect.Interface {
		offset = 0
	}
	if dt.NumIn() != offset+1 || dt.In(offset) != ctyValueType || dt.NumOut() != 2 || dt.Out(1) != errorType {
		return nil, false
	}
	handled := dt.Out(0)
	if handled.Kind() == reflect.Interface && handled.NumMethod() == 0 {
		return nil, false
	}

	se, ok := handlerType.MethodByName("Serialize")
	if !ok {
		return nil, false
	}
	st := se.Type
	if st.NumIn() != offset+1 || st.In(offset) != handled || st.NumOut() != 2 || st.Out(0) != ctyValueType || st.Out(1) != errorType {
		return nil, false
	}
	return handled, true
}

// reflectHandler erases a handler whose type parameter is only known at
// run time.
type reflectHandler struct {
	instance    any
	handled     reflect.Type
	serialize   reflect.Value
	deserialize reflect.Value
}

// eraseReflect adapts instance, whose type was accepted by HandledType, to
// Handler.
func eraseReflect(instance any, handled reflect.Type) Handler {
	v := reflect.ValueOf(instance)
	return &reflectHandler{
		instance:    instance,
		handled:     handled,
		serialize:   v.MethodByName("Serialize"),
		deserialize: v.MethodByName("Deserialize"),
	}
}

func (r *reflectHandler) Serialize(v any) (cty.Value, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || !rv.Type().AssignableTo(r.handled) {
		return cty.NilVal, fmt.Errorf("%w: want %s, got %T", ErrWrongType, r.handled, v)
	}
	out := r.serialize.Call([]reflect.Value{rv})
	return out[0].Interface().(cty.Value), asError(out[1])
}

func (r *reflectHandler) unwrap() any { return r.instance }

func (r *reflectHandler) Deserialize(v cty.Value) (any, error) {
	out := r.deserialize.Call([]reflect.Value{reflect.ValueOf(v)})
	if err := asError(out[1]); err != nil {
		return nil, err
	}
	return out[0].Interface(), nil
}

func asError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}
