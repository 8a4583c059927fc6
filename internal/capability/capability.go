// Package capability scans a module set for the types that opt into a
// capability.
package capability

import (
	"reflect"

	"github.com/specialistvlad/modenv/internal/fault"
	"github.com/specialistvlad/modenv/internal/module"
)

// Source is the module-source side of a scan. *module.Set implements it.
type Source interface {
	SubtypesOf(tag module.Tag) []*module.TypeDecl
	ModuleProviding(t reflect.Type) (*module.Module, bool)
}

// Predicate selects declarations.
type Predicate func(d *module.TypeDecl) bool

// Found is one scan result.
type Found struct {
	Decl   *module.TypeDecl
	Module *module.Module
}

// Type returns the declared type.
func (f Found) Type() reflect.Type {
	return f.Decl.Type
}

// Scan enumerates the declarations carrying tag that also satisfy pred,
// paired with their providing module. Order follows the source. A matching
// declaration whose providing module cannot be resolved means the module set
// is inconsistent; Scan then fails with a configuration error.
func Scan(src Source, tag module.Tag, pred Predicate) ([]Found, error) {
	var out []Found
	for _, d := range src.SubtypesOf(tag) {
		if pred != nil && !pred(d) {
			continue
		}
		m, ok := src.ModuleProviding(d.Type)
		if !ok || m == nil {
			return nil, fault.Configuration("could not find module providing %s (%s)", d.Type, d.Tags)
		}
		out = append(out, Found{Decl: d, Module: m})
	}
	return out, nil
}

// Tagged matches declarations carrying tag.
func Tagged(tag module.Tag) Predicate {
	return func(d *module.TypeDecl) bool { return d.Has(tag) }
}

// Not negates p.
func Not(p Predicate) Predicate {
	return func(d *module.TypeDecl) bool { return !p(d) }
}

// All matches when every predicate matches.
func All(ps ...Predicate) Predicate {
	return func(d *module.TypeDecl) bool {
		for _, p := range ps {
			if !p(d) {
				return false
			}
		}
		return true
	}
}

// AutoRegistered excludes declarations that opted out of auto-registration.
var AutoRegistered = Not(Tagged(module.DoNotAutoRegister))
