// Package prefab implements the prefab asset formats: HCL files listing the
// components of an entity template, optionally inheriting from a parent
// prefab, and delta files that modify a prefab another module provides.
//
// Formats are bound to the record registry of one generation. An
// environment switch uninstalls them and installs new instances.
package prefab

import (
	"sort"

	"github.com/specialistvlad/modenv/internal/asset"
	"github.com/specialistvlad/modenv/internal/urn"
)

const (
	// Kind is the asset kind of prefabs.
	Kind asset.Kind = "prefab"
	// Folder is the module asset folder prefabs are read from.
	Folder = "prefabs"
	// Extension is the file suffix of prefab and prefab delta files.
	Extension = ".prefab"
)

// Prefab is a loaded entity template.
type Prefab struct {
	URN    urn.URN
	Parent urn.URN

	components map[urn.URN]entry
}

type entry struct {
	id    urn.URN
	value any
}

func newPrefab(id urn.URN) *Prefab {
	return &Prefab{URN: id, components: make(map[urn.URN]entry)}
}

// Component returns the component registered under id.
func (p *Prefab) Component(id urn.URN) (any, bool) {
	e, ok := p.components[id.Key()]
	return e.value, ok
}

// HasComponent reports whether the prefab holds the component id.
func (p *Prefab) HasComponent(id urn.URN) bool {
	_, ok := p.components[id.Key()]
	return ok
}

// Components lists the component identities, sorted.
func (p *Prefab) Components() []urn.URN {
	out := make([]urn.URN, 0, len(p.components))
	for _, e := range p.components {
		out = append(out, e.id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().String() < out[j].Key().String() })
	return out
}

func (p *Prefab) set(id urn.URN, v any) {
	p.components[id.Key()] = entry{id: id, value: v}
}

func (p *Prefab) remove(id urn.URN) {
	delete(p.components, id.Key())
}
