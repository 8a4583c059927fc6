package prefab

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/specialistvlad/modenv/internal/asset"
	"github.com/specialistvlad/modenv/internal/copystrategy"
	"github.com/specialistvlad/modenv/internal/geom"
	"github.com/specialistvlad/modenv/internal/module"
	"github.com/specialistvlad/modenv/internal/record"
	"github.com/specialistvlad/modenv/internal/typehandler"
	"github.com/specialistvlad/modenv/internal/typeinfo"
	"github.com/specialistvlad/modenv/internal/urn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type HealthComponent struct {
	Current int
	Max     int
}

type Location struct {
	Position geom.Vector3f
}

type NameTag struct{ Text string }

const goblin = `
component "health" {
  current = 10
  max     = 10
}
component "location" {
  position = { x = 1, y = 2, z = 3 }
}
`

const chief = `
parent = "core:goblin"
component "health" {
  max = 25
}
component "extras:NameTag" {
  text = "Grub"
}
`

const goblinDelta = `
remove = ["location"]
component "health" {
  current = 5
}
`

func testEnv() *module.Set {
	core := module.MustNew(module.Manifest{ID: "core"}, module.ProviderFunc(func(r *module.Registrar) {
		r.Component(HealthComponent{})
		r.Component(&Location{})
	}), fstest.MapFS{
		"prefabs/goblin.prefab":   {Data: []byte(goblin)},
		"prefabs/broken.prefab":   {Data: []byte(`component "mana" {}`)},
		"prefabs/unparsed.prefab": {Data: []byte(`component {`)},
	})
	extras := module.MustNew(module.Manifest{ID: "extras", Dependencies: []string{"core"}}, module.ProviderFunc(func(r *module.Registrar) {
		r.Component(NameTag{})
	}), fstest.MapFS{
		"prefabs/chief.prefab":              {Data: []byte(chief)},
		"deltas/core/prefabs/goblin.prefab": {Data: []byte(goblinDelta)},
	})
	return module.MustNewSet(core, extras)
}

func newRecords(t *testing.T, env *module.Set) *record.Library {
	t.Helper()
	types := typeinfo.NewRegistry()
	types.Reload(env)
	copies := copystrategy.NewLibrary()
	require.NoError(t, copies.RegisterBuiltins(context.Background()))
	records := record.NewLibrary(typehandler.ForModuleEnvironment(env, types), copies)
	require.NoError(t, record.RegisterRecordTypes(context.Background(), records, env))
	return records
}

func load(t *testing.T, withDelta bool) *asset.Manager {
	t.Helper()
	env := testEnv()
	records := newRecords(t, env)

	m := asset.NewManager()
	typ := m.RegisterAssetType(Kind, Folder)
	typ.Producer.AddFormat(NewFormat(records))
	if withDelta {
		typ.Producer.AddDeltaFormat(NewDeltaFormat(records))
	}
	m.SwitchEnvironment(env)
	require.NoError(t, m.ReloadAssets(context.Background()))
	return m
}

func prefab(t *testing.T, m *asset.Manager, id string) *Prefab {
	t.Helper()
	u, err := urn.Parse(id)
	require.NoError(t, err)
	a, ok := m.Asset(Kind, u)
	require.True(t, ok, id)
	return a.Data.(*Prefab)
}

func TestLoadPrefab(t *testing.T) {
	m := load(t, false)

	p := prefab(t, m, "core:goblin")
	assert.Equal(t, []urn.URN{urn.New("core", "Health"), urn.New("core", "Location")}, p.Components())
	health, ok := p.Component(urn.New("core", "health"))
	require.True(t, ok)
	assert.Equal(t, HealthComponent{Current: 10, Max: 10}, health)
	loc, ok := p.Component(urn.New("core", "location"))
	require.True(t, ok)
	assert.Equal(t, &Location{Position: geom.Vector3f{X: 1, Y: 2, Z: 3}}, loc)

	for _, id := range []string{"core:broken", "core:unparsed"} {
		u, _ := urn.Parse(id)
		_, ok := m.Asset(Kind, u)
		assert.False(t, ok, id)
	}
}

func TestInheritance(t *testing.T) {
	m := load(t, false)
	parent := prefab(t, m, "core:goblin")
	child := prefab(t, m, "extras:chief")

	assert.Equal(t, urn.New("core", "goblin"), child.Parent)
	assert.Len(t, child.Components(), 3)

	health, _ := child.Component(urn.New("core", "Health"))
	assert.Equal(t, HealthComponent{Current: 10, Max: 25}, health)
	tag, _ := child.Component(urn.New("extras", "NameTag"))
	assert.Equal(t, NameTag{Text: "Grub"}, tag)

	// Inherited reference components are copies, not shared with the parent.
	pl, _ := parent.Component(urn.New("core", "Location"))
	cl, _ := child.Component(urn.New("core", "Location"))
	assert.Equal(t, pl, cl)
	assert.NotSame(t, pl, cl)

	parentHealth, _ := parent.Component(urn.New("core", "Health"))
	assert.Equal(t, HealthComponent{Current: 10, Max: 10}, parentHealth)
}

func TestDelta(t *testing.T) {
	m := load(t, true)

	p := prefab(t, m, "core:goblin")
	assert.False(t, p.HasComponent(urn.New("core", "Location")))
	health, _ := p.Component(urn.New("core", "Health"))
	assert.Equal(t, HealthComponent{Current: 5, Max: 10}, health)

	// The child inherits from the modified parent.
	child := prefab(t, m, "extras:chief")
	health, _ = child.Component(urn.New("core", "Health"))
	assert.Equal(t, HealthComponent{Current: 5, Max: 25}, health)
	assert.False(t, child.HasComponent(urn.New("core", "Location")))

	a, ok := m.Asset(Kind, urn.New("core", "goblin"))
	require.True(t, ok)
	assert.Equal(t, []string{"extras/deltas/core/prefabs/goblin.prefab"}, a.Deltas)
}

func TestFormatsDecodeThroughTheirOwnRecords(t *testing.T) {
	env := testEnv()
	f := NewFormat(newRecords(t, env))

	_, err := f.Load(context.Background(), urn.New("core", "lonely"), []byte(`component "health" { current = 1 }`), nil)
	require.NoError(t, err)

	// A registry without the health component cannot decode it.
	empty := NewFormat(record.NewLibrary(typehandler.ForModuleEnvironment(module.Empty, typeinfo.NewRegistry()), nil))
	_, err = empty.Load(context.Background(), urn.New("core", "lonely"), []byte(`component "health" { current = 1 }`), nil)
	assert.ErrorIs(t, err, record.ErrUnknownRecord)

	_, err = f.Load(context.Background(), urn.New("core", "dup"), []byte("component \"health\" {}\ncomponent \"core:health\" {}"), nil)
	assert.ErrorContains(t, err, "duplicate component")
}
