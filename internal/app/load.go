package app

import (
	"fmt"

	"github.com/specialistvlad/modenv/internal/ctxlog"
	"github.com/specialistvlad/modenv/internal/envctx"
	"github.com/specialistvlad/modenv/internal/module"
)

// LoadModules discovers the module directories under the configured path,
// pairs them with the compiled-in providers and makes the result the full
// environment of the module manager.
func (a *App) LoadModules() error {
	logger := ctxlog.FromContext(a.ctx)
	logger.Debug("Loading modules...", "modules_path", a.config.ModulesPath)

	found, err := module.Discover(a.ctx, a.config.ModulesPath)
	if err != nil {
		return fmt.Errorf("failed to discover modules: %w", err)
	}
	env, err := module.Assemble(a.ctx, found, a.providers)
	if err != nil {
		return fmt.Errorf("failed to load modules: %w", err)
	}

	modules, err := envctx.Require[*module.Manager](a.env)
	if err != nil {
		return err
	}
	modules.LoadEnvironment(env)
	a.discovered = found
	logger.Info("Modules loaded.", "modules", env.String())
	return nil
}

// previewSet assembles the discovered modules named by ids, together with
// the modules they depend on, into a candidate environment.
func (a *App) previewSet(ids []string) (*module.Set, error) {
	byID := make(map[string]module.Discovered, len(a.discovered))
	for _, d := range a.discovered {
		byID[d.Manifest.ID] = d
	}

	var picked []module.Discovered
	seen := make(map[string]bool)
	var visit func(id string) error
	visit = func(id string) error {
		if seen[id] {
			return nil
		}
		seen[id] = true
		d, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: %q is not in %s", module.ErrMissingDependency, id, a.config.ModulesPath)
		}
		for _, dep := range d.Manifest.Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		picked = append(picked, d)
		return nil
	}
	for _, id := range ids {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return module.Assemble(a.ctx, picked, a.providers)
}
