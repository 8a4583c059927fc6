package module

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrDuplicateModule is returned when two modules share an ID.
	ErrDuplicateModule = errors.New("module: duplicate module id")
	// ErrMissingDependency is returned when a module depends on a module not in the set.
	ErrMissingDependency = errors.New("module: missing dependency")
	// ErrDependencyCycle is returned when module dependencies form a cycle.
	ErrDependencyCycle = errors.New("module: dependency cycle")
	// ErrDuplicateType is returned when two modules declare the same Go type.
	ErrDuplicateType = errors.New("module: type declared by more than one module")
)

// Set is an immutable snapshot of the modules of one environment.
type Set struct {
	modules   []*Module
	byID      map[string]*Module
	providing map[reflect.Type]*Module
	decls     map[reflect.Type]*TypeDecl
}

// Empty is the set with no modules.
var Empty = &Set{
	byID:      map[string]*Module{},
	providing: map[reflect.Type]*Module{},
	decls:     map[reflect.Type]*TypeDecl{},
}

// NewSet resolves modules into a Set. Modules are ordered so that each one
// follows its dependencies; ties are broken by ID so the order is stable.
func NewSet(mods ...*Module) (*Set, error) {
	s := &Set{
		byID:      make(map[string]*Module, len(mods)),
		providing: make(map[reflect.Type]*Module),
		decls:     make(map[reflect.Type]*TypeDecl),
	}
	for _, m := range mods {
		if _, exists := s.byID[m.ID()]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateModule, m.ID())
		}
		s.byID[m.ID()] = m
	}

	ordered, err := orderByDependencies(s.byID)
	if err != nil {
		return nil, err
	}
	s.modules = ordered

	for _, m := range s.modules {
		for _, d := range m.decls {
			if other, exists := s.providing[d.Type]; exists {
				return nil, fmt.Errorf("%w: %s in %q and %q", ErrDuplicateType, d.Type, other.ID(), m.ID())
			}
			s.providing[d.Type] = m
			s.decls[d.Type] = d
		}
	}
	return s, nil
}

// MustNewSet is NewSet that panics on error.
func MustNewSet(mods ...*Module) *Set {
	s, err := NewSet(mods...)
	if err != nil {
		panic(err)
	}
	return s
}

func orderByDependencies(byID map[string]*Module) ([]*Module, error) {
	indegree := make(map[string]int, len(byID))
	dependents := make(map[string][]string)
	for id := range byID {
		indegree[id] = 0
	}
	for id, m := range byID {
		for _, dep := range m.Manifest.Dependencies {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("%w: %q requires %q", ErrMissingDependency, id, dep)
			}
			indegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var ready []string
	for id, n := range indegree {
		if n == 0 {
			ready = append(ready, id)
		}
	}

	ordered := make([]*Module, 0, len(byID))
	for len(ready) > 0 {
		sort.Strings(ready)
		id := ready[0]
		ready = ready[1:]
		ordered = append(ordered, byID[id])
		for _, dependent := range dependents[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(ordered) != len(byID) {
		var stuck []string
		for id, n := range indegree {
			if n > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w among %s", ErrDependencyCycle, strings.Join(stuck, ", "))
	}
	return ordered, nil
}

// Modules returns the modules in dependency order.
func (s *Set) Modules() []*Module {
	return s.modules
}

// IDs returns the module IDs in dependency order.
func (s *Set) IDs() []string {
	ids := make([]string, len(s.modules))
	for i, m := range s.modules {
		ids[i] = m.ID()
	}
	return ids
}

// Module returns the module with the given ID.
func (s *Set) Module(id string) (*Module, bool) {
	m, ok := s.byID[id]
	return m, ok
}

// Len returns the number of modules.
func (s *Set) Len() int {
	return len(s.modules)
}

// SubtypesOf returns every declaration carrying tag, in module order and
// then declaration order.
func (s *Set) SubtypesOf(tag Tag) []*TypeDecl {
	var out []*TypeDecl
	for _, m := range s.modules {
		for _, d := range m.decls {
			if d.Has(tag) {
				out = append(out, d)
			}
		}
	}
	return out
}

// ModuleProviding returns the module that declared t.
func (s *Set) ModuleProviding(t reflect.Type) (*Module, bool) {
	m, ok := s.providing[t]
	return m, ok
}

// Decl returns the declaration of t.
func (s *Set) Decl(t reflect.Type) (*TypeDecl, bool) {
	d, ok := s.decls[t]
	return d, ok
}

func (s *Set) String() string {
	return "[" + strings.Join(s.IDs(), " ") + "]"
}

// Manager holds the environment of the current full (non-preview) module set.
type Manager struct {
	mu  sync.RWMutex
	env *Set
}

// NewManager creates a Manager. A nil env means the empty set.
func NewManager(env *Set) *Manager {
	if env == nil {
		env = Empty
	}
	return &Manager{env: env}
}

// Environment returns the current full environment.
func (m *Manager) Environment() *Set {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.env
}

// LoadEnvironment replaces the current full environment.
func (m *Manager) LoadEnvironment(env *Set) {
	if env == nil {
		env = Empty
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.env = env
}
