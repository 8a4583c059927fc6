package typehandler

import (
	"context"
	"fmt"
	"reflect"

	"github.com/specialistvlad/modenv/internal/capability"
	"github.com/specialistvlad/modenv/internal/ctxlog"
	"github.com/specialistvlad/modenv/internal/fault"
	"github.com/specialistvlad/modenv/internal/inject"
	"github.com/specialistvlad/modenv/internal/module"
	"github.com/specialistvlad/modenv/internal/physics"
	"github.com/specialistvlad/modenv/internal/typeinfo"
	"github.com/zclconf/go-cty/cty"
)

// CollisionGroupHandler encodes collision groups by name, resolved through
// the manager of one environment. The empty name and null are the zero group.
type CollisionGroupHandler struct {
	Manager *physics.CollisionGroupManager
}

func (h CollisionGroupHandler) Serialize(g physics.CollisionGroup) (cty.Value, error) {
	return cty.StringVal(g.Name), nil
}

func (h CollisionGroupHandler) Deserialize(v cty.Value) (physics.CollisionGroup, error) {
	if !v.IsKnown() {
		return physics.CollisionGroup{}, fmt.Errorf("decoding collision group: %w", ErrUnknownValue)
	}
	if v.IsNull() {
		return physics.CollisionGroup{}, nil
	}
	if !v.Type().Equals(cty.String) {
		return physics.CollisionGroup{}, fmt.Errorf("decoding collision group: want a string, got %s", v.Type().FriendlyName())
	}
	if v.AsString() == "" {
		return physics.CollisionGroup{}, nil
	}
	return h.Manager.Group(v.AsString())
}

// BuildForEnvironment builds the handler library of env. Handler and factory
// types declared by modules are constructed with their dependencies resolved
// from src; a dependency that cannot be resolved is a configuration error.
// Handlers whose handled type cannot be determined are skipped.
func BuildForEnvironment(ctx context.Context, env *module.Set, types *typeinfo.Registry, src inject.Source, collisions *physics.CollisionGroupManager) (*Library, error) {
	logger := ctxlog.FromContext(ctx)
	lib := ForModuleEnvironment(env, types)
	AddTyped[physics.CollisionGroup](lib, CollisionGroupHandler{Manager: collisions})

	handlers, err := capability.Scan(env, module.TypeHandler, nil)
	if err != nil {
		return nil, err
	}
	for _, f := range handlers {
		handled, ok := HandledType(f.Type())
		if !ok {
			logger.Debug("Skipping type handler without a resolvable handled type.", "handler", f.Type().String(), "module", f.Module.ID())
			continue
		}
		instance, err := inject.Create(f.Decl.Constructor, src)
		if err != nil {
			return nil, fault.Configuration("failed to construct type handler %s from module %s: %w", f.Type(), f.Module.ID(), err)
		}
		lib.AddHandler(handled, eraseReflect(instance, handled))
		logger.Debug("Registered type handler.", "handler", f.Type().String(), "type", handled.String(), "module", f.Module.ID())
	}

	factories, err := capability.Scan(env, module.TypeHandlerFactory, nil)
	if err != nil {
		return nil, err
	}
	for _, f := range factories {
		instance, err := inject.Create(f.Decl.Constructor, src)
		if err != nil {
			return nil, fault.Configuration("failed to construct type handler factory %s from module %s: %w", f.Type(), f.Module.ID(), err)
		}
		factory, ok := instance.(Factory)
		if !ok {
			return nil, fault.Configuration("type handler factory %s from module %s does not implement %s", f.Type(), f.Module.ID(), reflect.TypeFor[Factory]())
		}
		lib.AddFactory(factory)
		logger.Debug("Registered type handler factory.", "factory", f.Type().String(), "module", f.Module.ID())
	}
	return lib, nil
}
