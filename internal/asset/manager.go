package asset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/specialistvlad/modenv/internal/ctxlog"
	"github.com/specialistvlad/modenv/internal/fsutil"
	"github.com/specialistvlad/modenv/internal/module"
	"github.com/specialistvlad/modenv/internal/urn"
)

// DeltasDir is the directory of a module's assets holding deltas, one
// subdirectory per target module.
const DeltasDir = "deltas"

var (
	// ErrUnknownAsset is returned when no loaded asset has the requested identity.
	ErrUnknownAsset = errors.New("asset: unknown asset")
	// ErrCycle is returned when assets depend on each other while loading.
	ErrCycle = errors.New("asset: dependency cycle")
)

// Type is a registered asset kind and the module folder it is read from.
type Type struct {
	Kind     Kind
	Folder   string
	Producer *Producer
}

// Asset is one loaded asset.
type Asset struct {
	URN    urn.URN
	Path   string
	Format string
	// Deltas lists "module/path" of every delta applied, in order.
	Deltas []string
	Data   any
}

// Manager loads the assets of the current module environment.
type Manager struct {
	mu     sync.RWMutex
	types  map[Kind]*Type
	env    *module.Set
	loaded map[Kind]map[urn.URN]Asset
}

// NewManager creates a manager with no asset types and an empty environment.
func NewManager() *Manager {
	return &Manager{
		types:  make(map[Kind]*Type),
		env:    module.Empty,
		loaded: make(map[Kind]map[urn.URN]Asset),
	}
}

// RegisterAssetType registers kind read from folder. Registering a kind
// again returns the existing type.
func (m *Manager) RegisterAssetType(kind Kind, folder string) *Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.types[kind]; ok {
		return t
	}
	t := &Type{Kind: kind, Folder: folder, Producer: NewProducer(kind)}
	m.types[kind] = t
	return t
}

// AssetType returns the registered type of kind.
func (m *Manager) AssetType(kind Kind) (*Type, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.types[kind]
	return t, ok
}

// Environment returns the module set assets are read from.
func (m *Manager) Environment() *module.Set {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.env
}

// SwitchEnvironment makes env the source of assets. Loaded assets of
// modules outside env are dropped; the rest stay until ReloadAssets.
func (m *Manager) SwitchEnvironment(env *module.Set) {
	if env == nil {
		env = module.Empty
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.env = env
	for _, byURN := range m.loaded {
		// Keys are case-folded; module IDs in the set are not.
		for key, a := range byURN {
			if _, ok := env.Module(a.URN.Module); !ok {
				delete(byURN, key)
			}
		}
	}
}

// Asset returns the loaded asset of kind with the given identity.
func (m *Manager) Asset(kind Kind, id urn.URN) (Asset, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.loaded[kind][id.Key()]
	return a, ok
}

// Assets returns every loaded asset of kind sorted by identity.
func (m *Manager) Assets(kind Kind) []Asset {
	m.mu.RLock()
	out := make([]Asset, 0, len(m.loaded[kind]))
	for _, a := range m.loaded[kind] {
		out = append(out, a)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].URN.Key().String() < out[j].URN.Key().String() })
	return out
}

// ReloadAssets reloads every asset of every registered kind from the
// current environment with the formats installed now. Files no installed
// format reads are ignored; files that fail to load are logged and skipped.
func (m *Manager) ReloadAssets(ctx context.Context) error {
	m.mu.RLock()
	env := m.env
	types := make([]*Type, 0, len(m.types))
	for _, t := range m.types {
		types = append(types, t)
	}
	m.mu.RUnlock()
	sort.Slice(types, func(i, j int) bool { return types[i].Kind < types[j].Kind })

	loaded := make(map[Kind]map[urn.URN]Asset, len(types))
	for _, t := range types {
		assets, err := loadKind(ctx, env, t)
		if err != nil {
			return fmt.Errorf("reloading %s assets: %w", t.Kind, err)
		}
		loaded[t.Kind] = assets
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.env != env {
		return fmt.Errorf("asset environment changed while reloading")
	}
	m.loaded = loaded
	return nil
}

type source struct {
	id     urn.URN
	path   string
	format Format
	deltas []deltaSource
}

type deltaSource struct {
	module string
	path   string
	format DeltaFormat
}

// loader loads one kind on demand so assets can resolve each other.
type loader struct {
	env     *module.Set
	sources map[urn.URN]*source
	done    map[urn.URN]Asset
	active  map[urn.URN]bool
	failed  map[urn.URN]error
}

func loadKind(ctx context.Context, env *module.Set, t *Type) (map[urn.URN]Asset, error) {
	logger := ctxlog.FromContext(ctx).With("kind", string(t.Kind))
	l := &loader{
		env:     env,
		sources: make(map[urn.URN]*source),
		done:    make(map[urn.URN]Asset),
		active:  make(map[urn.URN]bool),
		failed:  make(map[urn.URN]error),
	}

	for _, mod := range env.Modules() {
		files, err := fsutil.FindFiles(mod.Assets, t.Folder, "")
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", mod.ID(), err)
		}
		for _, p := range files {
			f, ok := t.Producer.formatFor(p)
			if !ok {
				continue
			}
			id := urn.New(mod.ID(), assetName(p, f.Extension()))
			if prev, ok := l.sources[id.Key()]; ok {
				logger.Warn("Duplicate asset ignored.", "asset", id.String(), "path", p, "kept", prev.path)
				continue
			}
			l.sources[id.Key()] = &source{id: id, path: p, format: f}
		}
	}

	// Deltas apply in module order, so dependents override their dependencies.
	for _, mod := range env.Modules() {
		for _, target := range env.IDs() {
			dir := path.Join(DeltasDir, target, t.Folder)
			files, err := fsutil.FindFiles(mod.Assets, dir, "")
			if err != nil {
				return nil, fmt.Errorf("module %s: %w", mod.ID(), err)
			}
			for _, p := range files {
				f, ok := t.Producer.deltaFormatFor(p)
				if !ok {
					continue
				}
				id := urn.New(target, assetName(p, f.Extension()))
				src, ok := l.sources[id.Key()]
				if !ok {
					logger.Warn("Delta for unknown asset ignored.", "asset", id.String(), "module", mod.ID(), "path", p)
					continue
				}
				src.deltas = append(src.deltas, deltaSource{module: mod.ID(), path: p, format: f})
			}
		}
	}

	keys := make([]urn.URN, 0, len(l.sources))
	for id := range l.sources {
		keys = append(keys, id)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	for _, id := range keys {
		if _, err := l.load(ctx, id); err != nil {
			logger.Error("Failed to load asset.", "asset", id.String(), "error", err)
		}
	}
	logger.Debug("Assets reloaded.", "found", len(l.sources), "loaded", len(l.done))
	return l.done, nil
}

func (l *loader) load(ctx context.Context, id urn.URN) (Asset, error) {
	key := id.Key()
	if a, ok := l.done[key]; ok {
		return a, nil
	}
	if err, ok := l.failed[key]; ok {
		return Asset{}, err
	}
	src, ok := l.sources[key]
	if !ok {
		return Asset{}, fmt.Errorf("%w: %s", ErrUnknownAsset, id)
	}
	if l.active[key] {
		return Asset{}, fmt.Errorf("%w at %s", ErrCycle, id)
	}
	l.active[key] = true
	defer delete(l.active, key)

	a, err := l.build(ctx, src)
	if err != nil {
		l.failed[key] = err
		return Asset{}, err
	}
	l.done[key] = a
	return a, nil
}

func (l *loader) build(ctx context.Context, src *source) (Asset, error) {
	id := src.id
	mod, _ := l.env.Module(id.Module)
	data, err := fs.ReadFile(mod.Assets, src.path)
	if err != nil {
		return Asset{}, err
	}
	value, err := src.format.Load(ctx, id, data, resolverFunc(func(ctx context.Context, dep urn.URN) (any, error) {
		a, err := l.load(ctx, dep)
		if err != nil {
			return nil, err
		}
		return a.Data, nil
	}))
	if err != nil {
		return Asset{}, fmt.Errorf("%s: %w", src.path, err)
	}

	a := Asset{URN: id, Path: src.path, Format: src.format.Name(), Data: value}
	for _, d := range src.deltas {
		dmod, _ := l.env.Module(d.module)
		data, err := fs.ReadFile(dmod.Assets, d.path)
		if err != nil {
			return Asset{}, err
		}
		if a.Data, err = d.format.Apply(ctx, id, a.Data, data); err != nil {
			return Asset{}, fmt.Errorf("delta %s/%s: %w", d.module, d.path, err)
		}
		a.Deltas = append(a.Deltas, d.module+"/"+d.path)
	}
	return a, nil
}

type resolverFunc func(ctx context.Context, id urn.URN) (any, error)

func (f resolverFunc) Resolve(ctx context.Context, id urn.URN) (any, error) {
	return f(ctx, id)
}

func assetName(p, ext string) string {
	return strings.TrimSuffix(path.Base(p), ext)
}
