// Package core is the base gameplay module: health, placement, naming and
// allegiance components the other modules build their prefabs on.
package core

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/modenv/internal/geom"
	"github.com/specialistvlad/modenv/internal/module"
	"github.com/specialistvlad/modenv/internal/physics"
	"github.com/zclconf/go-cty/cty"
)

// ID is the module ID in module.hcl.
const ID = "core"

// Module implements module.Provider for this package.
type Module struct{}

type HealthComponent struct {
	Current int
	Max     int
}

type LocationComponent struct {
	Position geom.Vector3f
	Rotation geom.Quaternionf
}

type DisplayName struct {
	Text string
}

type Collider struct {
	Group  physics.CollisionGroup
	Radius float32
}

type Allegiance struct {
	Team Team
}

// EditorMarker is attached by tools at run time and never listed in prefabs.
type EditorMarker struct {
	Label string
}

type DamageEvent struct {
	Amount int
	Source string
}

// Settings is loaded from <config>/core/settings.hcl.
type Settings struct {
	StartingHealth int  `hcl:"starting_health,optional"`
	FriendlyFire   bool `hcl:"friendly_fire,optional"`
}

func (s *Settings) SetDefaults() {
	s.StartingHealth = 10
}

// Team is the side an entity fights for.
type Team uint8

const (
	Neutral Team = iota
	Player
	Hostile
)

var teamNames = []string{"neutral", "player", "hostile"}

func (t Team) String() string {
	if int(t) < len(teamNames) {
		return teamNames[t]
	}
	return fmt.Sprintf("team(%d)", uint8(t))
}

// TeamHandler encodes teams by name.
type TeamHandler struct{}

func NewTeamHandler() *TeamHandler { return &TeamHandler{} }

func (h *TeamHandler) Serialize(t Team) (cty.Value, error) {
	if int(t) >= len(teamNames) {
		return cty.NilVal, fmt.Errorf("unknown team %d", uint8(t))
	}
	return cty.StringVal(t.String()), nil
}

func (h *TeamHandler) Deserialize(v cty.Value) (Team, error) {
	if !v.IsKnown() {
		return Neutral, errors.New("team is not known")
	}
	if v.IsNull() {
		return Neutral, nil
	}
	if v.Type() != cty.String {
		return Neutral, fmt.Errorf("team must be a string, got %s", v.Type().FriendlyName())
	}
	for i, name := range teamNames {
		if name == v.AsString() {
			return Team(i), nil
		}
	}
	return Neutral, fmt.Errorf("unknown team %q", v.AsString())
}

// Register declares the module's types.
func (m *Module) Register(r *module.Registrar) {
	r.Component(HealthComponent{})
	r.Component(&LocationComponent{})
	r.Component(DisplayName{})
	r.Component(Collider{})
	r.Component(Allegiance{})
	r.Component(EditorMarker{}, module.NoAutoRegister())
	r.Event(DamageEvent{})
	r.Config(Settings{})
	r.TypeHandler(NewTeamHandler)
}
