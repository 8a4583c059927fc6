package typehandler

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/specialistvlad/modenv/internal/module"
	"github.com/specialistvlad/modenv/internal/typeinfo"
)

// Factory produces handlers on demand for types it recognizes.
type Factory interface {
	CreateHandler(t reflect.Type, lib *Library) (Handler, bool)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(t reflect.Type, lib *Library) (Handler, bool)

// CreateHandler calls f.
func (f FactoryFunc) CreateHandler(t reflect.Type, lib *Library) (Handler, bool) {
	return f(t, lib)
}

// Library is the handler registry of one environment generation.
type Library struct {
	env   *module.Set
	types *typeinfo.Registry

	mu        sync.RWMutex
	handlers  map[reflect.Type]Handler
	produced  map[reflect.Type]Handler
	factories []Factory
	fallbacks []Factory
}

// NewLibrary creates an empty Library for env.
func NewLibrary(env *module.Set, types *typeinfo.Registry) *Library {
	if env == nil {
		env = module.Empty
	}
	return &Library{
		env:      env,
		types:    types,
		handlers: make(map[reflect.Type]Handler),
		produced: make(map[reflect.Type]Handler),
	}
}

// Environment returns the module set the library was built for.
func (l *Library) Environment() *module.Set {
	return l.env
}

// Types returns the type registry the library resolves descriptors with.
func (l *Library) Types() *typeinfo.Registry {
	return l.types
}

// AddHandler registers h for t. Direct handlers take precedence over factories.
func (l *Library) AddHandler(t reflect.Type, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[t] = h
	delete(l.produced, t)
}

// AddTyped registers a typed handler for T.
func AddTyped[T any](l *Library, h Typed[T]) {
	l.AddHandler(reflect.TypeFor[T](), Erase(h))
}

// AddFactory appends f to the factory chain.
func (l *Library) AddFactory(f Factory) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.factories = append(l.factories, f)
}

// AddFallback appends f to the fallback chain, consulted after every
// factory added with AddFactory.
func (l *Library) AddFallback(f Factory) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fallbacks = append(l.fallbacks, f)
}

// Handler returns the handler for t: the directly registered one, else the
// first factory in registration order that produces one, else the first
// fallback that does. Produced handlers are cached.
func (l *Library) Handler(t reflect.Type) (Handler, error) {
	l.mu.RLock()
	if h, ok := l.handlers[t]; ok {
		l.mu.RUnlock()
		return h, nil
	}
	if h, ok := l.produced[t]; ok {
		l.mu.RUnlock()
		return h, nil
	}
	factories := append([]Factory(nil), l.factories...)
	factories = append(factories, l.fallbacks...)
	l.mu.RUnlock()

	// Factories may look up handlers for nested types, so no lock is held here.
	for _, f := range factories {
		if h, ok := f.CreateHandler(t, l); ok {
			l.mu.Lock()
			if existing, ok := l.produced[t]; ok {
				h = existing
			} else {
				l.produced[t] = h
			}
			l.mu.Unlock()
			return h, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoHandler, t)
}

// Get returns the handler for T.
func Get[T any](l *Library) (Handler, error) {
	return l.Handler(reflect.TypeFor[T]())
}

// DirectHandler returns the handler registered for t without consulting factories.
func (l *Library) DirectHandler(t reflect.Type) (Handler, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	h, ok := l.handlers[t]
	return h, ok
}

// HandledTypes lists the types with a directly registered handler, sorted by name.
func (l *Library) HandledTypes() []reflect.Type {
	l.mu.RLock()
	out := make([]reflect.Type, 0, len(l.handlers))
	for t := range l.handlers {
		out = append(out, t)
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Factories returns the factory chain in consultation order.
func (l *Library) Factories() []Factory {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Factory(nil), l.factories...)
}
