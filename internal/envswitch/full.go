package envswitch

import (
	"context"
	"fmt"

	"github.com/specialistvlad/modenv/internal/asset"
	"github.com/specialistvlad/modenv/internal/autoconfig"
	"github.com/specialistvlad/modenv/internal/copystrategy"
	"github.com/specialistvlad/modenv/internal/ctxlog"
	"github.com/specialistvlad/modenv/internal/envctx"
	"github.com/specialistvlad/modenv/internal/fault"
	"github.com/specialistvlad/modenv/internal/module"
	"github.com/specialistvlad/modenv/internal/physics"
	"github.com/specialistvlad/modenv/internal/prefab"
	"github.com/specialistvlad/modenv/internal/record"
	"github.com/specialistvlad/modenv/internal/typehandler"
	"github.com/specialistvlad/modenv/internal/typeinfo"
)

// prerequisites are the long-lived collaborators a full switch reads from
// the context.
type prerequisites struct {
	modules    *module.Manager
	types      *typeinfo.Registry
	copies     *copystrategy.Library
	collisions *physics.CollisionGroupManager
	configs    *autoconfig.Manager
	assets     *asset.Manager
}

func requirePrerequisites(c *envctx.Context) (*prerequisites, error) {
	var p prerequisites
	var err error
	if p.modules, err = envctx.Require[*module.Manager](c); err != nil {
		return nil, fault.Configuration("%w", err)
	}
	if p.types, err = envctx.Require[*typeinfo.Registry](c); err != nil {
		return nil, fault.Configuration("%w", err)
	}
	if p.copies, err = envctx.Require[*copystrategy.Library](c); err != nil {
		return nil, fault.Configuration("%w", err)
	}
	if p.collisions, err = envctx.Require[*physics.CollisionGroupManager](c); err != nil {
		return nil, fault.Configuration("%w", err)
	}
	if p.configs, err = envctx.Require[*autoconfig.Manager](c); err != nil {
		return nil, fault.Configuration("%w", err)
	}
	if p.assets, err = envctx.Require[*asset.Manager](c); err != nil {
		return nil, fault.Configuration("%w", err)
	}
	return &p, nil
}

// SwitchToFull rebuilds every registry for the module manager's current
// environment, installs prefab formats bound to the new record registry and
// reloads the assets of the environment.
//
// Registries are published in dependency order: type registry, copy
// strategies, type handlers, record libraries, class metadata, configs,
// formats, and finally the asset environment. A configuration error aborts
// the switch; registries published before the failure are not rolled back.
func (s *Switcher) SwitchToFull(ctx context.Context, c *envctx.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx, c, KindFull, func(ctx context.Context) (*module.Set, error) {
		return s.switchToFull(ctx, c)
	})
}

func (s *Switcher) switchToFull(ctx context.Context, c *envctx.Context) (*module.Set, error) {
	logger := ctxlog.FromContext(ctx)
	p, err := requirePrerequisites(c)
	if err != nil {
		return nil, err
	}
	env := p.modules.Environment()
	prefabs, ok := p.assets.AssetType(prefab.Kind)
	if !ok {
		return nil, fault.Configuration("asset type %q is not registered", prefab.Kind)
	}

	p.types.Reload(env)
	envctx.Put(c, p.types)

	p.copies.Reset()
	if err := p.copies.RegisterBuiltins(ctx); err != nil {
		return nil, err
	}
	if err := p.copies.RegisterFromScan(ctx, env); err != nil {
		return nil, err
	}
	envctx.Put(c, p.copies)

	handlers, err := typehandler.BuildForEnvironment(ctx, env, p.types, c, p.collisions)
	if err != nil {
		return nil, err
	}
	envctx.Put(c, handlers)

	records := record.NewLibrary(handlers, p.copies)
	if err := record.RegisterRecordTypes(ctx, records, env); err != nil {
		return nil, err
	}
	envctx.Put(c, records)
	envctx.Put(c, records.Components())
	envctx.Put(c, records.Events())
	s.metrics.RecordRecords("components", records.Components().Len())
	s.metrics.RecordRecords("events", records.Events().Len())

	envctx.Put(c, typeinfo.NewClassMetaLibrary(p.types))

	if err := p.configs.LoadConfigsIn(ctx, c); err != nil {
		return nil, fmt.Errorf("loading configs: %w", err)
	}

	// The previous generation's formats close over the previous record
	// registry and must be gone before the new ones are added.
	s.uninstallFormats(ctx)
	h := installed{
		producer: prefabs.Producer,
		base:     prefab.NewFormat(records),
		delta:    prefab.NewDeltaFormat(records),
	}
	h.producer.AddFormat(h.base)
	h.producer.AddDeltaFormat(h.delta)
	s.formats = h
	s.metrics.RecordInstalledFormats(1, 1)
	logger.Debug("Prefab formats installed.", "components", records.Components().Len())

	// A full switch ends any preview.
	s.inPreview = false
	s.fullComponents = nil

	p.assets.SwitchEnvironment(env)
	if err := p.assets.ReloadAssets(ctx); err != nil {
		return nil, fmt.Errorf("reloading assets: %w", err)
	}
	return env, nil
}

// SwitchToPreview points the asset pipeline at env without installing
// formats and publishes a component library registered from env. The
// library has no type handlers: previewed content is listed, not decoded.
func (s *Switcher) SwitchToPreview(ctx context.Context, c *envctx.Context, env *module.Set) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if env == nil {
		env = module.Empty
	}
	return s.run(ctx, c, KindPreview, func(ctx context.Context) (*module.Set, error) {
		copies, err := envctx.Require[*copystrategy.Library](c)
		if err != nil {
			return nil, fault.Configuration("%w", err)
		}
		if _, err := s.cheapAssetUpdate(ctx, c, env); err != nil {
			return nil, err
		}

		components := record.NewComponentLibrary(nil, copies)
		if err := record.RegisterComponents(ctx, components, env); err != nil {
			return nil, err
		}
		if !s.inPreview {
			s.fullComponents, _ = envctx.Get[*record.ComponentLibrary](c)
			s.inPreview = true
		}
		envctx.Put(c, components)
		s.metrics.RecordRecords("preview_components", components.Len())
		return env, nil
	})
}
