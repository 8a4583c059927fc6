// Package inject builds objects whose dependencies are looked up by type.
//
// Required dependencies are explicit constructor parameters. Late-bound ones
// are struct fields tagged `inject:""` (required) or `inject:"optional"`,
// filled by Inject right after construction.
package inject

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrMissingDependency is returned when a required dependency is absent.
	ErrMissingDependency = errors.New("inject: missing dependency")
	// ErrNotConstructor is returned when the constructor is not a func
	// returning T or (T, error).
	ErrNotConstructor = errors.New("inject: not a constructor")
	// ErrNotInjectable is returned when Inject is given something other than
	// a non-nil pointer to a struct.
	ErrNotInjectable = errors.New("inject: target is not a struct pointer")
)

// Source supplies dependencies by type. *envctx.Context implements it.
type Source interface {
	Lookup(t reflect.Type) (any, bool)
}

var errorType = reflect.TypeFor[error]()

// CreateWithConstructorInjection calls ctor with each parameter looked up
// from src by its type.
func CreateWithConstructorInjection(ctor any, src Source) (any, error) {
	if ctor == nil {
		return nil, fmt.Errorf("%w: nil", ErrNotConstructor)
	}
	fv := reflect.ValueOf(ctor)
	ft := fv.Type()
	if ft.Kind() != reflect.Func || ft.IsVariadic() || !(ft.NumOut() == 1 || (ft.NumOut() == 2 && ft.Out(1) == errorType)) {
		return nil, fmt.Errorf("%w: %s", ErrNotConstructor, ft)
	}

	args := make([]reflect.Value, ft.NumIn())
	for i := range args {
		pt := ft.In(i)
		dep, ok := src.Lookup(pt)
		if !ok || dep == nil {
			return nil, fmt.Errorf("%w: %s needs %s", ErrMissingDependency, ft.Out(0), pt)
		}
		args[i] = reflect.ValueOf(dep)
	}

	out := fv.Call(args)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, fmt.Errorf("constructing %s: %w", ft.Out(0), out[1].Interface().(error))
	}
	return out[0].Interface(), nil
}

// Inject fills the tagged fields of the struct instance points to.
func Inject(instance any, src Source) error {
	v := reflect.ValueOf(instance)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: %T", ErrNotInjectable, instance)
	}
	v = v.Elem()
	st := v.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		tag, ok := f.Tag.Lookup("inject")
		if !ok {
			continue
		}
		if !f.IsExported() {
			return fmt.Errorf("%w: %s.%s is tagged but unexported", ErrNotInjectable, st, f.Name)
		}
		dep, found := src.Lookup(f.Type)
		if !found || dep == nil {
			if tag == "optional" {
				continue
			}
			return fmt.Errorf("%w: %s.%s needs %s", ErrMissingDependency, st, f.Name, f.Type)
		}
		v.Field(i).Set(reflect.ValueOf(dep))
	}
	return nil
}

// Create runs constructor injection and then field injection on the result
// when it is a struct pointer.
func Create(ctor any, src Source) (any, error) {
	instance, err := CreateWithConstructorInjection(ctor, src)
	if err != nil {
		return nil, err
	}
	rv := reflect.ValueOf(instance)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.Struct {
		if err := Inject(instance, src); err != nil {
			return nil, err
		}
	}
	return instance, nil
}
