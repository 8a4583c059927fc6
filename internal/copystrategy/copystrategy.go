// Package copystrategy maps types to functions that produce independent
// copies of their values.
//
// Builtin geometric types are part of the core contract: a missing copy
// constructor for one of them is a configuration error. Module-declared
// types are best effort: a type without a usable copy constructor is logged
// and left without a strategy.
package copystrategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"github.com/specialistvlad/modenv/internal/capability"
	"github.com/specialistvlad/modenv/internal/ctxlog"
	"github.com/specialistvlad/modenv/internal/fault"
	"github.com/specialistvlad/modenv/internal/geom"
	"github.com/specialistvlad/modenv/internal/module"
)

// ErrNoCopyConstructor is returned when no declared constructor can copy a type.
var ErrNoCopyConstructor = errors.New("copystrategy: no compatible copy constructor")

// Strategy copies one value. ok is false when no copy could be produced.
type Strategy interface {
	Copy(v any) (copied any, ok bool)
}

// Builtin is a core value type with its declared constructors.
type Builtin struct {
	Type         reflect.Type
	Constructors []any
}

// Builtins lists the core value types every environment can copy.
var Builtins = []Builtin{
	{Type: reflect.TypeFor[geom.Quaternionf](), Constructors: []any{geom.NewQuaternionfFrom}},
	{Type: reflect.TypeFor[geom.Vector2f](), Constructors: []any{geom.NewVector2fFrom}},
	{Type: reflect.TypeFor[geom.Vector2i](), Constructors: []any{geom.NewVector2iFrom}},
	{Type: reflect.TypeFor[geom.Vector3f](), Constructors: []any{geom.NewVector3fFrom}},
	{Type: reflect.TypeFor[geom.Vector3i](), Constructors: []any{geom.NewVector3iFrom}},
	{Type: reflect.TypeFor[geom.Vector4f](), Constructors: []any{geom.NewVector4fFrom}},
	{Type: reflect.TypeFor[geom.Vector4i](), Constructors: []any{geom.NewVector4iFrom}},
}

// Library holds the strategies of the current environment.
type Library struct {
	mu         sync.RWMutex
	strategies map[reflect.Type]Strategy
}

// NewLibrary creates an empty Library.
func NewLibrary() *Library {
	return &Library{strategies: make(map[reflect.Type]Strategy)}
}

// Reset discards every strategy.
func (l *Library) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.strategies = make(map[reflect.Type]Strategy)
}

// Register installs s for t, replacing any previous strategy.
func (l *Library) Register(t reflect.Type, s Strategy) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.strategies[t] = s
}

// Strategy returns the strategy registered for t.
func (l *Library) Strategy(t reflect.Type) (Strategy, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.strategies[t]
	return s, ok
}

// Types lists the types with a strategy, sorted by name.
func (l *Library) Types() []reflect.Type {
	l.mu.RLock()
	out := make([]reflect.Type, 0, len(l.strategies))
	for t := range l.strategies {
		out = append(out, t)
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Copy copies v with the strategy of its dynamic type. ok is false when v is
// nil, when no strategy is registered, or when the strategy fails.
func (l *Library) Copy(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	s, ok := l.Strategy(reflect.TypeOf(v))
	if !ok {
		return nil, false
	}
	return s.Copy(v)
}

// RegisterBuiltin installs the copy strategy of a core type. A missing
// constructor is a bug in the core and reported as a configuration error.
func (l *Library) RegisterBuiltin(ctx context.Context, b Builtin) error {
	s, err := NewConstructorStrategy(ctx, b.Type, b.Constructors)
	if err != nil {
		return fault.Configuration("failed to find copy strategy for %s: %w", b.Type, err)
	}
	l.Register(b.Type, s)
	return nil
}

// RegisterBuiltins installs every entry of Builtins.
func (l *Library) RegisterBuiltins(ctx context.Context) error {
	for _, b := range Builtins {
		if err := l.RegisterBuiltin(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// RegisterFromScan installs strategies for every CopyConstructible type in
// src. Types without a usable constructor are logged and skipped; only a
// failing scan is returned.
func (l *Library) RegisterFromScan(ctx context.Context, src capability.Source) error {
	logger := ctxlog.FromContext(ctx)
	found, err := capability.Scan(src, module.CopyConstructible, nil)
	if err != nil {
		return err
	}
	registered := 0
	for _, f := range found {
		s, err := NewConstructorStrategy(ctx, f.Type(), f.Decl.CopyConstructors)
		if err != nil {
			logger.Warn("Copying disabled for type without a usable copy constructor.", "type", f.Type().String(), "module", f.Module.ID(), "error", err)
			continue
		}
		l.Register(f.Type(), s)
		registered++
	}
	logger.Debug("Copy strategies registered from modules.", "found", len(found), "registered", registered)
	return nil
}

// ConstructorStrategy copies values by calling a copy constructor.
type ConstructorStrategy struct {
	typ    reflect.Type
	ctor   reflect.Value
	errOut bool
	logger *slog.Logger
}

// NewConstructorStrategy selects the copy constructor of t among ctors:
// first a func taking exactly t, then any single-parameter func whose
// parameter t is assignable to. The result must be assignable to t and may
// be followed by an error.
func NewConstructorStrategy(ctx context.Context, t reflect.Type, ctors []any) (*ConstructorStrategy, error) {
	var fallback *ConstructorStrategy
	for _, c := range ctors {
		s, exact := candidate(t, c)
		if s == nil {
			continue
		}
		s.logger = ctxlog.FromContext(ctx)
		if exact {
			return s, nil
		}
		if fallback == nil {
			fallback = s
		}
	}
	if fallback != nil {
		ctxlog.FromContext(ctx).Debug("No exact copy constructor, using a compatible one.", "type", t.String(), "constructor", fallback.ctor.Type().String())
		return fallback, nil
	}
	return nil, fmt.Errorf("%w for %s", ErrNoCopyConstructor, t)
}

func candidate(t reflect.Type, c any) (*ConstructorStrategy, bool) {
	if c == nil {
		return nil, false
	}
	fv := reflect.ValueOf(c)
	ft := fv.Type()
	if ft.Kind() != reflect.Func || ft.IsVariadic() || ft.NumIn() != 1 {
		return nil, false
	}
	errOut := false
	switch {
	case ft.NumOut() == 1:
	case ft.NumOut() == 2 && ft.Out(1) == reflect.TypeFor[error]():
		errOut = true
	default:
		return nil, false
	}
	if !ft.Out(0).AssignableTo(t) {
		return nil, false
	}
	param := ft.In(0)
	if !t.AssignableTo(param) {
		return nil, false
	}
	return &ConstructorStrategy{typ: t, ctor: fv, errOut: errOut}, param == t
}

// Copy implements Strategy. Failures are logged, never propagated.
func (s *ConstructorStrategy) Copy(v any) (copied any, ok bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(s.ctor.Type().In(0)) {
		return nil, false
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		if rv.IsNil() {
			return nil, false
		}
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Failure to invoke copy constructor.", "type", s.typ.String(), "panic", fmt.Sprint(r))
			copied, ok = nil, false
		}
	}()

	out := s.ctor.Call([]reflect.Value{rv})
	if s.errOut && !out[1].IsNil() {
		s.logger.Error("Failure to invoke copy constructor.", "type", s.typ.String(), "error", out[1].Interface())
		return nil, false
	}
	return out[0].Interface(), true
}
