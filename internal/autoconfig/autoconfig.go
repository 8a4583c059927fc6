// Package autoconfig loads the persisted configuration of every AutoConfig
// type the current module environment declares and publishes it into the
// execution context.
//
// A config of module "audio" named "mixer" is read from
// <dir>/audio/mixer.hcl and decoded with gohcl, so config structs use hcl
// struct tags. Types without a file keep their defaults.
package autoconfig

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/modenv/internal/capability"
	"github.com/specialistvlad/modenv/internal/ctxlog"
	"github.com/specialistvlad/modenv/internal/envctx"
	"github.com/specialistvlad/modenv/internal/fsutil"
	"github.com/specialistvlad/modenv/internal/module"
	"github.com/specialistvlad/modenv/internal/typeinfo"
)

// Extension is the suffix of config files.
const Extension = ".hcl"

// Defaulter is implemented by configs that need non-zero defaults.
type Defaulter interface {
	SetDefaults()
}

// Entry is one loaded config.
type Entry struct {
	Module string
	Name   string
	// Path is the file the config was read from, or empty for defaults.
	Path  string
	Value any
}

// Store holds the configs of one generation, keyed by declared type.
type Store struct {
	mu      sync.RWMutex
	entries map[reflect.Type]Entry
}

func newStore() *Store {
	return &Store{entries: make(map[reflect.Type]Entry)}
}

// Lookup returns the config declared as t.
func (s *Store) Lookup(t reflect.Type) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[t]
	return e, ok
}

// Entries returns every config sorted by module and name.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Get returns the config of type T.
func Get[T any](s *Store) (T, bool) {
	var zero T
	e, ok := s.Lookup(reflect.TypeFor[T]())
	if !ok {
		return zero, false
	}
	v, ok := e.Value.(T)
	return v, ok
}

// Manager loads configs from a directory. An empty Dir loads defaults only.
type Manager struct {
	Dir string
}

// NewManager creates a manager reading from dir.
func NewManager(dir string) *Manager {
	return &Manager{Dir: dir}
}

// LoadConfigsIn loads the configs of the environment held by the
// module.Manager in c, then publishes a Store and each config under its
// declared type. Files that fail to decode are logged and the config keeps
// its defaults.
func (m *Manager) LoadConfigsIn(ctx context.Context, c *envctx.Context) error {
	logger := ctxlog.FromContext(ctx)
	modules, err := envctx.Require[*module.Manager](c)
	if err != nil {
		return fmt.Errorf("loading configs: %w", err)
	}
	env := modules.Environment()

	found, err := capability.Scan(env, module.AutoConfig, nil)
	if err != nil {
		return err
	}

	store := newStore()
	known := make(map[string]bool, len(found))
	for _, f := range found {
		name := ConfigName(f.Decl)
		value, p := m.load(ctx, f.Module.ID(), name, f.Type())
		store.entries[f.Type()] = Entry{Module: f.Module.ID(), Name: name, Path: p, Value: value}
		known[path.Join(f.Module.ID(), name+Extension)] = true
	}
	m.warnUnknown(ctx, env, known)

	envctx.Put(c, store)
	for t, e := range store.entries {
		c.PutValue(t, e.Value)
	}
	logger.Debug("Configs loaded.", "count", len(found), "dir", m.Dir)
	return nil
}

// load builds the config value of type t: defaults, then the file on top.
// It returns the file the value came from, if any.
func (m *Manager) load(ctx context.Context, mod, name string, t reflect.Type) (any, string) {
	logger := ctxlog.FromContext(ctx).With("module", mod, "config", name)
	elem := t
	if elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}
	ptr := reflect.New(elem)
	if d, ok := ptr.Interface().(Defaulter); ok {
		d.SetDefaults()
	}
	value := func() any {
		if t.Kind() == reflect.Pointer {
			return ptr.Interface()
		}
		return ptr.Elem().Interface()
	}

	p := m.path(mod, name)
	if p == "" {
		return value(), ""
	}
	src, err := os.ReadFile(p)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Error("Failed to read config, using defaults.", "path", p, "error", err)
		}
		return value(), ""
	}
	if err := decode(src, p, ptr.Interface()); err != nil {
		logger.Error("Failed to decode config, using defaults.", "path", p, "error", err)
		ptr = reflect.New(elem)
		if d, ok := ptr.Interface().(Defaulter); ok {
			d.SetDefaults()
		}
		return value(), ""
	}
	logger.Debug("Config loaded from file.", "path", p)
	return value(), p
}

func (m *Manager) path(mod, name string) string {
	if m.Dir == "" {
		return ""
	}
	return filepath.Join(m.Dir, mod, name+Extension)
}

// warnUnknown logs config files of loaded modules that no type declares.
func (m *Manager) warnUnknown(ctx context.Context, env *module.Set, known map[string]bool) {
	if m.Dir == "" {
		return
	}
	files, err := fsutil.FindFiles(os.DirFS(m.Dir), ".", Extension)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to list config files.", "dir", m.Dir, "error", err)
		return
	}
	for _, f := range files {
		mod, _, _ := strings.Cut(f, "/")
		if _, loaded := env.Module(mod); !loaded || known[f] {
			continue
		}
		ctxlog.FromContext(ctx).Warn("Config file matches no declared config.", "path", filepath.Join(m.Dir, f))
	}
}

func decode(src []byte, filename string, into any) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse %s: %w", filename, diags)
	}
	if diags := gohcl.DecodeBody(file.Body, nil, into); diags.HasErrors() {
		return fmt.Errorf("failed to decode %s: %w", filename, diags)
	}
	return nil
}

// ConfigName is the file name, without extension, of decl's config: its
// explicit name, else the snake_case type name without a "Config" suffix.
func ConfigName(decl *module.TypeDecl) string {
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
	if len(name) > len("Config") && strings.HasSuffix(name, "Config") {
		name = strings.TrimSuffix(name, "Config")
	}
	return typeinfo.SnakeCase(name)
}
