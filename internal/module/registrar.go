package module

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrInvalidDeclaration is wrapped by every error a Registrar records.
var ErrInvalidDeclaration = errors.New("module: invalid type declaration")

// TypeDecl is the registration metadata of one type contributed by a module.
type TypeDecl struct {
	// Type is the declared Go type. For handlers and factories it is the
	// type returned by Constructor.
	Type reflect.Type
	// Tags are the capabilities the type opts into.
	Tags Tag
	// Name overrides the derived record or config name when non-empty.
	Name string
	// Constructor builds handler and factory instances. Its parameters are
	// satisfied by constructor injection.
	Constructor any
	// CopyConstructors are candidate functions for copy-constructing values
	// of a CopyConstructible type.
	CopyConstructors []any
}

// Has reports whether the declaration carries tag.
func (d *TypeDecl) Has(tag Tag) bool {
	return d.Tags.Has(tag)
}

// DeclOption adjusts a declaration.
type DeclOption func(*TypeDecl)

// Named sets an explicit name for a record or config type.
func Named(name string) DeclOption {
	return func(d *TypeDecl) { d.Name = name }
}

// NoAutoRegister opts the type out of automatic registration.
func NoAutoRegister() DeclOption {
	return func(d *TypeDecl) { d.Tags |= DoNotAutoRegister }
}

// Provider is implemented by every Go extension module.
type Provider interface {
	Register(r *Registrar)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(r *Registrar)

// Register calls f(r).
func (f ProviderFunc) Register(r *Registrar) { f(r) }

// Registrar collects the declarations of a single module.
type Registrar struct {
	decls  []*TypeDecl
	byType map[reflect.Type]*TypeDecl
	errs   []error
}

func newRegistrar() *Registrar {
	return &Registrar{byType: make(map[reflect.Type]*TypeDecl)}
}

// Component declares a state record type. sample is a zero value of it.
func (r *Registrar) Component(sample any, opts ...DeclOption) {
	r.declareSample("component", sample, Component, opts)
}

// Event declares an event record type.
func (r *Registrar) Event(sample any, opts ...DeclOption) {
	r.declareSample("event", sample, Event, opts)
}

// Config declares an auto-loaded configuration type.
func (r *Registrar) Config(sample any, opts ...DeclOption) {
	r.declareSample("config", sample, AutoConfig, opts)
}

// CopyConstructible declares a value type along with the functions that can
// construct a copy of it.
func (r *Registrar) CopyConstructible(sample any, ctors ...any) {
	d := r.declareSample("copy constructible", sample, CopyConstructible, nil)
	if d != nil {
		d.CopyConstructors = append(d.CopyConstructors, ctors...)
	}
}

// TypeHandler declares a serialization handler by its constructor.
func (r *Registrar) TypeHandler(ctor any, opts ...DeclOption) {
	r.declareConstructor("type handler", ctor, TypeHandler, opts)
}

// TypeHandlerFactory declares a handler factory by its constructor.
func (r *Registrar) TypeHandlerFactory(ctor any, opts ...DeclOption) {
	r.declareConstructor("type handler factory", ctor, TypeHandlerFactory, opts)
}

func (r *Registrar) declareSample(what string, sample any, tag Tag, opts []DeclOption) *TypeDecl {
	if sample == nil {
		r.errs = append(r.errs, fmt.Errorf("%w: nil %s sample", ErrInvalidDeclaration, what))
		return nil
	}
	return r.declare(reflect.TypeOf(sample), tag, opts)
}

func (r *Registrar) declareConstructor(what string, ctor any, tag Tag, opts []DeclOption) {
	ft := reflect.TypeOf(ctor)
	if ft == nil || ft.Kind() != reflect.Func || ft.IsVariadic() {
		r.errs = append(r.errs, fmt.Errorf("%w: %s constructor must be a non-variadic func, got %T", ErrInvalidDeclaration, what, ctor))
		return
	}
	switch {
	case ft.NumOut() == 1:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
	default:
		r.errs = append(r.errs, fmt.Errorf("%w: %s constructor %s must return T or (T, error)", ErrInvalidDeclaration, what, ft))
		return
	}
	d := r.declare(ft.Out(0), tag, opts)
	if d.Constructor != nil && reflect.ValueOf(d.Constructor).Pointer() != reflect.ValueOf(ctor).Pointer() {
		r.errs = append(r.errs, fmt.Errorf("%w: %s declared with two constructors", ErrInvalidDeclaration, ft.Out(0)))
		return
	}
	d.Constructor = ctor
}

// declare returns the declaration for t, merging tags when t was already
// declared by this module.
func (r *Registrar) declare(t reflect.Type, tag Tag, opts []DeclOption) *TypeDecl {
	d, ok := r.byType[t]
	if !ok {
		d = &TypeDecl{Type: t}
		r.byType[t] = d
		r.decls = append(r.decls, d)
	}
	d.Tags |= tag
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var errorType = reflect.TypeFor[error]()
