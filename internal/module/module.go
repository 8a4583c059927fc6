package module

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrMissingID is returned when a manifest has no module ID.
var ErrMissingID = errors.New("module: manifest has no id")

// Manifest is the module.hcl description of a module.
type Manifest struct {
	ID           string   `hcl:"id,label"`
	Version      string   `hcl:"version,optional"`
	Description  string   `hcl:"description,optional"`
	Dependencies []string `hcl:"dependencies,optional"`
}

// Module is one loaded extension module.
type Module struct {
	Manifest Manifest
	// Assets is the module's asset tree. It is never nil.
	Assets fs.FS

	decls []*TypeDecl
}

// New loads a module: it runs the provider's Register method and keeps the
// resulting declarations. provider may be nil for asset-only modules, and
// assets may be nil for modules without assets.
func New(manifest Manifest, provider Provider, assets fs.FS) (*Module, error) {
	if manifest.ID == "" {
		return nil, ErrMissingID
	}
	r := newRegistrar()
	if provider != nil {
		provider.Register(r)
	}
	if len(r.errs) > 0 {
		return nil, fmt.Errorf("module %q: %w", manifest.ID, errors.Join(r.errs...))
	}
	if assets == nil {
		assets = emptyFS{}
	}
	return &Module{Manifest: manifest, Assets: assets, decls: r.decls}, nil
}

// MustNew is New that panics on error. It is meant for compiled-in modules
// and tests.
func MustNew(manifest Manifest, provider Provider, assets fs.FS) *Module {
	m, err := New(manifest, provider, assets)
	if err != nil {
		panic(err)
	}
	return m
}

// ID returns the module's identifier.
func (m *Module) ID() string {
	return m.Manifest.ID
}

// Types returns the module's declarations in declaration order.
func (m *Module) Types() []*TypeDecl {
	return m.decls
}

func (m *Module) String() string {
	if m.Manifest.Version == "" {
		return m.Manifest.ID
	}
	return m.Manifest.ID + "@" + m.Manifest.Version
}

// emptyFS is the asset tree of a module without assets.
type emptyFS struct{}

func (emptyFS) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
