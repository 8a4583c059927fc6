package app

import (
	"github.com/specialistvlad/modenv/internal/module"
	"github.com/specialistvlad/modenv/modules/combat"
	"github.com/specialistvlad/modenv/modules/core"
)

// coreProviders are the Go modules compiled into the modenv binary, by the
// ID their module.hcl declares. Modules found on disk without a provider
// are asset-only.
var coreProviders = map[string]module.Provider{
	core.ID:   &core.Module{},
	combat.ID: &combat.Module{},
}
