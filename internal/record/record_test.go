package record

import (
	"context"
	"reflect"
	"testing"

	"github.com/specialistvlad/modenv/internal/copystrategy"
	"github.com/specialistvlad/modenv/internal/fault"
	"github.com/specialistvlad/modenv/internal/geom"
	"github.com/specialistvlad/modenv/internal/module"
	"github.com/specialistvlad/modenv/internal/typehandler"
	"github.com/specialistvlad/modenv/internal/typeinfo"
	"github.com/specialistvlad/modenv/internal/urn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

type HealthComponent struct {
	Current int
	Max     int
}

type Location struct {
	Position geom.Vector3f
	Trail    *Trail
}

type Trail struct{ Points []geom.Vector3f }

func NewTrailFrom(t *Trail) *Trail {
	return &Trail{Points: append([]geom.Vector3f(nil), t.Points...)}
}

type Component struct{ Flag bool }

type hiddenComponent struct{}

type DamageEvent struct{ Amount int }

type Regen struct{ Rate int }

func healthModule() *module.Module {
	return module.MustNew(module.Manifest{ID: "health"}, module.ProviderFunc(func(r *module.Registrar) {
		r.Component(HealthComponent{})
		r.Component(&Location{})
		r.Component(Component{})
		r.Component(hiddenComponent{}, module.NoAutoRegister())
		r.Component(Regen{}, module.Named("regeneration"))
		r.Event(DamageEvent{})
	}), nil)
}

func newLibrary(t *testing.T, set *module.Set) *Library {
	t.Helper()
	types := typeinfo.NewRegistry()
	types.Reload(set)
	copies := copystrategy.NewLibrary()
	require.NoError(t, copies.RegisterBuiltins(context.Background()))
	require.NoError(t, copies.RegisterFromScan(context.Background(), set))
	lib := NewLibrary(typehandler.ForModuleEnvironment(set, types), copies)
	require.NoError(t, RegisterRecordTypes(context.Background(), lib, set))
	return lib
}

func TestRegisterRecordTypes(t *testing.T) {
	lib := newLibrary(t, module.MustNewSet(healthModule()))

	var names []string
	for _, m := range lib.Components().All() {
		names = append(names, m.URN.String())
	}
	assert.Equal(t, []string{"health:Health", "health:Location", "health:Component", "health:regeneration"}, names)

	m, ok := lib.Components().Metadata(urn.New("HEALTH", "health"))
	require.True(t, ok, "identities compare case-insensitively")
	assert.Equal(t, reflect.TypeFor[HealthComponent](), m.Type())
	assert.Equal(t, "health", m.Descriptor.Module)

	_, ok = lib.Components().ByType(reflect.TypeFor[hiddenComponent]())
	assert.False(t, ok)

	ev, ok := lib.Events().Metadata(urn.New("health", "DamageEvent"))
	require.True(t, ok)
	assert.Equal(t, reflect.TypeFor[DamageEvent](), ev.Type())
	assert.Equal(t, 1, lib.Events().Len())
}

func TestDuplicateIdentityIsFatal(t *testing.T) {
	set := module.MustNewSet(module.MustNew(module.Manifest{ID: "health"}, module.ProviderFunc(func(r *module.Registrar) {
		r.Component(HealthComponent{})
		r.Component(Regen{}, module.Named("HEALTH"))
	}), nil))

	lib := NewLibrary(nil, nil)
	err := RegisterRecordTypes(context.Background(), lib, set)
	require.ErrorIs(t, err, fault.ErrConfiguration)
	assert.ErrorContains(t, err, "duplicate component identity")
}

// sharedOwnerSource lists the declarations of several modules but reports
// owner as the provider of every one of them.
type sharedOwnerSource struct {
	decls []*module.TypeDecl
	owner *module.Module
}

func (s sharedOwnerSource) SubtypesOf(tag module.Tag) []*module.TypeDecl {
	var out []*module.TypeDecl
	for _, d := range s.decls {
		if d.Has(tag) {
			out = append(out, d)
		}
	}
	return out
}

func (s sharedOwnerSource) ModuleProviding(reflect.Type) (*module.Module, bool) {
	return s.owner, true
}

func TestDuplicateIdentityAcrossModulesIsFatal(t *testing.T) {
	health := module.MustNew(module.Manifest{ID: "health"}, module.ProviderFunc(func(r *module.Registrar) {
		r.Component(HealthComponent{})
	}), nil)
	vitals := module.MustNew(module.Manifest{ID: "vitals"}, module.ProviderFunc(func(r *module.Registrar) {
		r.Component(Trail{}, module.Named("Health"))
	}), nil)
	src := sharedOwnerSource{
		decls: append(health.Types(), vitals.Types()...),
		owner: health,
	}

	lib := NewLibrary(nil, nil)
	err := RegisterRecordTypes(context.Background(), lib, src)
	require.ErrorIs(t, err, fault.ErrConfiguration)
	assert.ErrorContains(t, err, "duplicate component identity")

	// The same two types from their own modules do not collide.
	lib = NewLibrary(nil, nil)
	require.NoError(t, RegisterRecordTypes(context.Background(), lib, module.MustNewSet(health, vitals)))
	assert.Equal(t, 2, lib.Components().Len())
}

func TestDeserializeNullAndUnknown(t *testing.T) {
	lib := newLibrary(t, module.MustNewSet(healthModule()))
	m, err := lib.Components().Resolve("health")
	require.NoError(t, err)
	objType := cty.Object(map[string]cty.Type{"current": cty.Number})

	got, err := m.Deserialize(cty.NullVal(objType))
	require.NoError(t, err)
	assert.Equal(t, HealthComponent{}, got)

	_, err = m.Deserialize(cty.UnknownVal(objType))
	require.ErrorIs(t, err, typehandler.ErrUnknownValue)

	current := HealthComponent{Current: 3, Max: 9}
	overlaid, err := m.Overlay(current, cty.NullVal(objType))
	require.NoError(t, err)
	assert.Equal(t, current, overlaid)
}

func TestResolve(t *testing.T) {
	other := module.MustNew(module.Manifest{ID: "vitals"}, module.ProviderFunc(func(r *module.Registrar) {
		r.Component(Trail{}, module.Named("Health"))
	}), nil)
	lib := newLibrary(t, module.MustNewSet(healthModule(), other))

	m, err := lib.Components().Resolve("vitals:health")
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[Trail](), m.Type())

	m, err = lib.Components().Resolve("location")
	require.NoError(t, err)
	assert.Equal(t, "health:Location", m.URN.String())

	_, err = lib.Components().Resolve("health")
	assert.ErrorIs(t, err, ErrAmbiguousRecord)
	_, err = lib.Components().Resolve("mana")
	assert.ErrorIs(t, err, ErrUnknownRecord)
	_, err = lib.Components().Resolve("health:mana")
	assert.ErrorIs(t, err, ErrUnknownRecord)
}

func TestDeserialize(t *testing.T) {
	lib := newLibrary(t, module.MustNewSet(healthModule()))

	m, err := lib.Components().Resolve("health")
	require.NoError(t, err)
	got, err := m.Deserialize(cty.ObjectVal(map[string]cty.Value{
		"current": cty.NumberIntVal(7),
		"max":     cty.NumberIntVal(10),
	}))
	require.NoError(t, err)
	assert.Equal(t, HealthComponent{Current: 7, Max: 10}, got)

	// Overlays keep fields the value does not mention.
	base := &HealthComponent{Current: 1, Max: 50}
	require.NoError(t, m.DecodeInto(base, cty.ObjectVal(map[string]cty.Value{"current": cty.NumberIntVal(30)})))
	assert.Equal(t, &HealthComponent{Current: 30, Max: 50}, base)

	loc, err := lib.Components().Resolve("location")
	require.NoError(t, err)
	got, err = loc.Deserialize(cty.ObjectVal(map[string]cty.Value{
		"position": cty.ObjectVal(map[string]cty.Value{"x": cty.NumberIntVal(1), "y": cty.NumberIntVal(2), "z": cty.NumberIntVal(3)}),
	}))
	require.NoError(t, err)
	assert.Equal(t, &Location{Position: geom.Vector3f{X: 1, Y: 2, Z: 3}}, got)

	v, err := m.Serialize(HealthComponent{Current: 2, Max: 4})
	require.NoError(t, err)
	assert.True(t, v.GetAttr("max").Equals(cty.NumberIntVal(4)).True())
}

func TestPreviewLibraryCannotDecode(t *testing.T) {
	set := module.MustNewSet(healthModule())
	comps := NewComponentLibrary(nil, copystrategy.NewLibrary())
	require.NoError(t, RegisterComponents(context.Background(), comps, set))
	assert.Equal(t, 4, comps.Len())

	m, err := comps.Resolve("health")
	require.NoError(t, err)
	_, err = m.Deserialize(cty.EmptyObjectVal)
	assert.ErrorIs(t, err, ErrNoHandlers)
}

func TestCopyIsFieldWise(t *testing.T) {
	set := module.MustNewSet(healthModule())
	copies := copystrategy.NewLibrary()
	s, err := copystrategy.NewConstructorStrategy(context.Background(), reflect.TypeFor[*Trail](), []any{NewTrailFrom})
	require.NoError(t, err)
	copies.Register(reflect.TypeFor[*Trail](), s)

	comps := NewComponentLibrary(nil, copies)
	require.NoError(t, RegisterComponents(context.Background(), comps, set))
	m, ok := comps.ByType(reflect.TypeFor[*Location]())
	require.True(t, ok)

	src := &Location{Position: geom.Vector3f{X: 1}, Trail: &Trail{Points: []geom.Vector3f{{X: 2}}}}
	got, ok := m.Copy(src)
	require.True(t, ok)
	dst := got.(*Location)
	assert.Equal(t, src, dst)
	assert.NotSame(t, src, dst)
	assert.NotSame(t, src.Trail, dst.Trail)

	_, ok = m.Copy((*Location)(nil))
	assert.False(t, ok)
	_, ok = m.Copy(HealthComponent{})
	assert.False(t, ok, "wrong type")
}

func TestCanonicalName(t *testing.T) {
	cases := []struct {
		decl *module.TypeDecl
		want string
	}{
		{&module.TypeDecl{Type: reflect.TypeFor[HealthComponent]()}, "Health"},
		{&module.TypeDecl{Type: reflect.TypeFor[*Location]()}, "Location"},
		{&module.TypeDecl{Type: reflect.TypeFor[Component]()}, "Component"},
		{&module.TypeDecl{Type: reflect.TypeFor[Regen](), Name: "regeneration"}, "regeneration"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanonicalName(c.decl, "Component"))
	}
	assert.Equal(t, "DamageEvent", CanonicalName(&module.TypeDecl{Type: reflect.TypeFor[DamageEvent]()}, ""))
}
