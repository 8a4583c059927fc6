// Package typeinfo is the type registry: a cache of type descriptors for the
// types the current module set declares, plus the core types every
// environment has.
//
// The Registry is long-lived. An environment switch calls Reload rather than
// creating a new Registry, so collaborators that captured it keep working.
package typeinfo

import (
	"path"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/specialistvlad/modenv/internal/geom"
	"github.com/specialistvlad/modenv/internal/module"
	"github.com/specialistvlad/modenv/internal/physics"
)

// CoreModule is the module ID reported for core types.
const CoreModule = "engine"

// CoreTypes are present in every environment.
var CoreTypes = []reflect.Type{
	reflect.TypeFor[geom.Vector2f](),
	reflect.TypeFor[geom.Vector2i](),
	reflect.TypeFor[geom.Vector3f](),
	reflect.TypeFor[geom.Vector3i](),
	reflect.TypeFor[geom.Vector4f](),
	reflect.TypeFor[geom.Vector4i](),
	reflect.TypeFor[geom.Quaternionf](),
	reflect.TypeFor[physics.CollisionGroup](),
}

// Descriptor identifies a type by its Go type and stable name.
type Descriptor struct {
	Type reflect.Type
	// Name is "pkg.Type" with generic arguments stripped.
	Name string
	// Module is the providing module, or empty for types no module declared.
	Module string
}

func (d Descriptor) String() string {
	if d.Module == "" {
		return d.Name
	}
	return d.Module + "/" + d.Name
}

// Registry caches descriptors for one environment at a time.
type Registry struct {
	mu      sync.RWMutex
	env     *module.Set
	byType  map[reflect.Type]Descriptor
	byName  map[string]Descriptor
	reloads int
}

// NewRegistry creates a Registry holding only the core types.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Reload(module.Empty)
	r.reloads = 0
	return r
}

// Reload replaces the cached descriptors with those of env.
func (r *Registry) Reload(env *module.Set) {
	if env == nil {
		env = module.Empty
	}
	byType := make(map[reflect.Type]Descriptor)
	byName := make(map[string]Descriptor)
	add := func(d Descriptor) {
		byType[d.Type] = d
		if d.Name != "" {
			byName[d.Name] = d
		}
	}
	for _, t := range CoreTypes {
		add(Descriptor{Type: t, Name: TypeName(t), Module: CoreModule})
	}
	for _, m := range env.Modules() {
		for _, decl := range m.Types() {
			add(Descriptor{Type: decl.Type, Name: TypeName(decl.Type), Module: m.ID()})
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.env = env
	r.byType = byType
	r.byName = byName
	r.reloads++
}

// Environment returns the set the registry was last reloaded with.
func (r *Registry) Environment() *module.Set {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.env
}

// Reloads returns how many times Reload has been called since construction.
func (r *Registry) Reloads() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reloads
}

// Lookup returns the cached descriptor for t.
func (r *Registry) Lookup(t reflect.Type) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byType[t]
	return d, ok
}

// Of returns the descriptor for t, deriving an unowned one when t is not
// cached.
func (r *Registry) Of(t reflect.Type) Descriptor {
	if d, ok := r.Lookup(t); ok {
		return d
	}
	return Descriptor{Type: t, Name: TypeName(t)}
}

// ByName returns the descriptor with the given "pkg.Type" name.
func (r *Registry) ByName(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

// Descriptors returns every cached descriptor sorted by name.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	out := make([]Descriptor, 0, len(r.byType))
	for _, d := range r.byType {
		out = append(out, d)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TypeName computes "pkg.Type" for t. Pointers are unwrapped and generic
// instantiation arguments are stripped. Unnamed types fall back to their
// Go syntax.
func TypeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	base := t
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base.Name() == "" {
		return t.String()
	}
	name := stripTypeParams(base.Name())
	if p := base.PkgPath(); p != "" {
		return path.Base(p) + "." + name
	}
	return name
}

// stripTypeParams removes generic type instantiation suffix: "T[int,string]" -> "T".
func stripTypeParams(s string) string {
	if i := strings.IndexByte(s, '['); i >= 0 {
		return s[:i]
	}
	return s
}
