// Package record holds the data-record registry of one environment
// generation: the component (state record) library and the event library.
//
// A Library is derived from the handler registry of its generation and is
// never mutated once published; the next switch builds a new one.
package record

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/specialistvlad/modenv/internal/capability"
	"github.com/specialistvlad/modenv/internal/copystrategy"
	"github.com/specialistvlad/modenv/internal/ctxlog"
	"github.com/specialistvlad/modenv/internal/fault"
	"github.com/specialistvlad/modenv/internal/module"
	"github.com/specialistvlad/modenv/internal/typehandler"
	"github.com/specialistvlad/modenv/internal/typeinfo"
	"github.com/specialistvlad/modenv/internal/urn"
)

var (
	// ErrUnknownRecord is returned when a name resolves to no record.
	ErrUnknownRecord = errors.New("record: unknown record")
	// ErrAmbiguousRecord is returned when a bare name matches records of
	// several modules.
	ErrAmbiguousRecord = errors.New("record: ambiguous record name")
)

// TypeLibrary maps record identities to metadata.
type TypeLibrary struct {
	kind     string
	handlers *typehandler.Library
	copies   *copystrategy.Library

	mu     sync.RWMutex
	byURN  map[urn.URN]*Metadata
	byType map[reflect.Type]*Metadata
	order  []*Metadata
}

func (l *TypeLibrary) init(kind string, handlers *typehandler.Library, copies *copystrategy.Library) {
	if copies == nil {
		copies = copystrategy.NewLibrary()
	}
	l.kind = kind
	l.handlers = handlers
	l.copies = copies
	l.byURN = make(map[urn.URN]*Metadata)
	l.byType = make(map[reflect.Type]*Metadata)
}

// Handlers returns the handler registry the library decodes with, or nil.
func (l *TypeLibrary) Handlers() *typehandler.Library {
	return l.handlers
}

// Register adds t under id. Registering an identity or a type twice is a
// configuration error.
func (l *TypeLibrary) Register(id urn.URN, t reflect.Type) (*Metadata, error) {
	if id.IsZero() || t == nil {
		return nil, fmt.Errorf("record: invalid %s registration %q of %v", l.kind, id, t)
	}
	var types *typeinfo.Registry
	if l.handlers != nil {
		types = l.handlers.Types()
	}
	desc := typeinfo.Descriptor{Type: t, Name: typeinfo.TypeName(t), Module: id.Module}
	if types != nil {
		if d, ok := types.Lookup(t); ok {
			desc = d
		}
	}
	structType := t
	if structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
	}
	m := &Metadata{
		URN:        id,
		Descriptor: desc,
		Fields:     typeinfo.FieldsOf(structType),
		handlers:   l.handlers,
		copies:     l.copies,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.byURN[id.Key()]; ok {
		return nil, fault.Configuration("duplicate %s identity %s for %s and %s", l.kind, id, prev.Type(), t)
	}
	if prev, ok := l.byType[t]; ok {
		return nil, fault.Configuration("%s type %s already registered as %s", l.kind, t, prev.URN)
	}
	l.byURN[id.Key()] = m
	l.byType[t] = m
	l.order = append(l.order, m)
	return m, nil
}

// Metadata returns the record registered under id, case-insensitively.
func (l *TypeLibrary) Metadata(id urn.URN) (*Metadata, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.byURN[id.Key()]
	return m, ok
}

// ByType returns the record registered for t.
func (l *TypeLibrary) ByType(t reflect.Type) (*Metadata, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.byType[t]
	return m, ok
}

// Resolve finds a record by "module:name" or by a bare name that is unique
// across modules.
func (l *TypeLibrary) Resolve(name string) (*Metadata, error) {
	if strings.Contains(name, ":") {
		id, err := urn.Parse(name)
		if err != nil {
			return nil, err
		}
		if m, ok := l.Metadata(id); ok {
			return m, nil
		}
		return nil, fmt.Errorf("%w: %s %q", ErrUnknownRecord, l.kind, name)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	var found []*Metadata
	for _, m := range l.order {
		if strings.EqualFold(m.URN.Name, name) {
			found = append(found, m)
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s %q", ErrUnknownRecord, l.kind, name)
	case 1:
		return found[0], nil
	default:
		ids := make([]string, len(found))
		for i, m := range found {
			ids[i] = m.URN.String()
		}
		sort.Strings(ids)
		return nil, fmt.Errorf("%w: %q matches %s", ErrAmbiguousRecord, name, strings.Join(ids, ", "))
	}
}

// All returns every record in registration order.
func (l *TypeLibrary) All() []*Metadata {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*Metadata(nil), l.order...)
}

// Len returns the number of registered records.
func (l *TypeLibrary) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// ComponentLibrary holds the state records of a generation.
type ComponentLibrary struct {
	TypeLibrary
}

// NewComponentLibrary creates an empty component library. handlers may be
// nil for preview libraries that never decode.
func NewComponentLibrary(handlers *typehandler.Library, copies *copystrategy.Library) *ComponentLibrary {
	l := &ComponentLibrary{}
	l.init("component", handlers, copies)
	return l
}

// EventLibrary holds the event records of a generation.
type EventLibrary struct {
	TypeLibrary
}

// NewEventLibrary creates an empty event library.
func NewEventLibrary(handlers *typehandler.Library, copies *copystrategy.Library) *EventLibrary {
	l := &EventLibrary{}
	l.init("event", handlers, copies)
	return l
}

// Library is the data-record registry of a generation.
type Library struct {
	handlers   *typehandler.Library
	components *ComponentLibrary
	events     *EventLibrary
}

// NewLibrary creates an empty registry deriving from handlers.
func NewLibrary(handlers *typehandler.Library, copies *copystrategy.Library) *Library {
	return &Library{
		handlers:   handlers,
		components: NewComponentLibrary(handlers, copies),
		events:     NewEventLibrary(handlers, copies),
	}
}

// Handlers returns the handler registry the records decode with.
func (l *Library) Handlers() *typehandler.Library {
	return l.handlers
}

// Components returns the component library.
func (l *Library) Components() *ComponentLibrary {
	return l.components
}

// Events returns the event library.
func (l *Library) Events() *EventLibrary {
	return l.events
}

// RegisterRecordTypes registers every auto-registered component and event
// type src declares.
func RegisterRecordTypes(ctx context.Context, lib *Library, src capability.Source) error {
	if err := RegisterComponents(ctx, lib.Components(), src); err != nil {
		return err
	}
	return registerScanned(ctx, &lib.Events().TypeLibrary, src, module.Event, "")
}

// RegisterComponents registers every auto-registered component type src
// declares. Unless a declaration names the record, its name is the Go type
// name without a trailing "Component".
func RegisterComponents(ctx context.Context, lib *ComponentLibrary, src capability.Source) error {
	return registerScanned(ctx, &lib.TypeLibrary, src, module.Component, "Component")
}

func registerScanned(ctx context.Context, lib *TypeLibrary, src capability.Source, tag module.Tag, suffix string) error {
	found, err := capability.Scan(src, tag, capability.AutoRegistered)
	if err != nil {
		return err
	}
	for _, f := range found {
		id := urn.New(f.Module.ID(), CanonicalName(f.Decl, suffix))
		if _, err := lib.Register(id, f.Type()); err != nil {
			return err
		}
	}
	ctxlog.FromContext(ctx).Debug("Registered records.", "kind", lib.kind, "count", len(found))
	return nil
}

// CanonicalName is the record name of decl: its explicit name, else the Go
// type name with suffix removed. A name that is only the suffix is kept.
func CanonicalName(decl *module.TypeDecl, suffix string) string {
	if decl.Name != "" {
		return decl.Name
	}
	t := decl.Type
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := typeinfo.TypeName(t)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	if suffix != "" && len(name) > len(suffix) && strings.HasSuffix(name, suffix) {
		name = strings.TrimSuffix(name, suffix)
	}
	return name
}
