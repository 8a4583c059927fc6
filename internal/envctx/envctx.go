// Package envctx implements the execution context shared by the application
// and the environment-switch orchestrator.
//
// A Context is a process-wide store keyed by Go type. Each key is replaced
// atomically: a reader sees either the previous value or the new one, never
// a partially built value. There is no atomicity across keys.
package envctx

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// ErrMissing is wrapped by Require when no value is stored for a type.
var ErrMissing = errors.New("envctx: no value in context")

// Context is a typed get/put store.
type Context struct {
	mu     sync.RWMutex
	values map[reflect.Type]any
}

// New creates an empty Context.
func New() *Context {
	return &Context{values: make(map[reflect.Type]any)}
}

// Put stores v under the static type T, replacing any previous value.
func Put[T any](c *Context, v T) {
	c.PutValue(reflect.TypeFor[T](), v)
}

// Get returns the value stored under T.
func Get[T any](c *Context) (T, bool) {
	var zero T
	v, ok := c.Lookup(reflect.TypeFor[T]())
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Require is Get that reports a missing value as an error.
func Require[T any](c *Context) (T, error) {
	v, ok := Get[T](c)
	if !ok {
		return v, fmt.Errorf("%w: %s", ErrMissing, reflect.TypeFor[T]())
	}
	return v, nil
}

// Remove deletes the value stored under T.
func Remove[T any](c *Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, reflect.TypeFor[T]())
}

// PutValue stores v under key. It panics if v is not assignable to key,
// since that would make typed lookups silently fail.
func (c *Context) PutValue(key reflect.Type, v any) {
	if v != nil && !reflect.TypeOf(v).AssignableTo(key) {
		panic(fmt.Sprintf("envctx: %T cannot be stored under %s", v, key))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = v
}

// Lookup returns the value stored under key. It implements inject.Source.
func (c *Context) Lookup(key reflect.Type) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Keys lists the stored types, sorted by name, for diagnostics.
func (c *Context) Keys() []reflect.Type {
	c.mu.RLock()
	keys := make([]reflect.Type, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
