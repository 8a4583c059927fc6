package asset

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/specialistvlad/modenv/internal/module"
	"github.com/specialistvlad/modenv/internal/urn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lineFormat reads "parent <name>" on the first line, if any, followed by
// lines that are appended to the parent's lines.
type lineFormat struct {
	loads int
}

func (*lineFormat) Name() string      { return "lines" }
func (*lineFormat) Extension() string { return ".txt" }

func (f *lineFormat) Load(ctx context.Context, id urn.URN, data []byte, deps Resolver) (any, error) {
	f.loads++
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	var out []string
	if parent, ok := strings.CutPrefix(lines[0], "parent "); ok {
		pid, err := urn.Parse(parent)
		if err != nil {
			pid = urn.New(id.Module, parent)
		}
		base, err := deps.Resolve(ctx, pid)
		if err != nil {
			return nil, err
		}
		out = append(out, base.([]string)...)
		lines = lines[1:]
	}
	for _, l := range lines {
		if l == "fail" {
			return nil, errors.New("asked to fail")
		}
		out = append(out, l)
	}
	return out, nil
}

type appendDelta struct {
	applied int
}

func (*appendDelta) Name() string      { return "lines-delta" }
func (*appendDelta) Extension() string { return ".txt" }

func (d *appendDelta) Apply(_ context.Context, _ urn.URN, base any, data []byte) (any, error) {
	d.applied++
	return append(append([]string(nil), base.([]string)...), strings.TrimSpace(string(data))), nil
}

func testEnv() *module.Set {
	core := module.MustNew(module.Manifest{ID: "core"}, nil, fstest.MapFS{
		"prefabs/creature.txt":   {Data: []byte("alive")},
		"prefabs/goblin.txt":     {Data: []byte("parent creature\ngreen")},
		"prefabs/broken.txt":     {Data: []byte("fail")},
		"prefabs/loop_a.txt":     {Data: []byte("parent loop_b\na")},
		"prefabs/loop_b.txt":     {Data: []byte("parent loop_a\nb")},
		"prefabs/notes.md":       {Data: []byte("ignored")},
		"prefabs/nested/orc.txt": {Data: []byte("parent creature\nbig")},
		"sounds/creature.txt":    {Data: []byte("roar")},
	})
	extra := module.MustNew(module.Manifest{ID: "extra", Dependencies: []string{"core"}}, nil, fstest.MapFS{
		"prefabs/troll.txt":                 {Data: []byte("parent core:goblin\nhuge")},
		"deltas/core/prefabs/goblin.txt":    {Data: []byte("sneaky")},
		"deltas/core/prefabs/dragon.txt":    {Data: []byte("fiery")},
		"deltas/missing/prefabs/goblin.txt": {Data: []byte("never")},
	})
	return module.MustNewSet(core, extra)
}

func newManager() (*Manager, *lineFormat, *appendDelta) {
	m := NewManager()
	typ := m.RegisterAssetType("prefab", "prefabs")
	f, d := &lineFormat{}, &appendDelta{}
	typ.Producer.AddFormat(f)
	typ.Producer.AddDeltaFormat(d)
	return m, f, d
}

func data(t *testing.T, m *Manager, id string) []string {
	t.Helper()
	u, err := urn.Parse(id)
	require.NoError(t, err)
	a, ok := m.Asset("prefab", u)
	require.True(t, ok, id)
	return a.Data.([]string)
}

func TestReloadAssets(t *testing.T) {
	m, f, d := newManager()
	m.SwitchEnvironment(testEnv())
	require.NoError(t, m.ReloadAssets(context.Background()))
	assert.Equal(t, 1, d.applied)
	// Each file is read once even when several children share a parent.
	assert.Equal(t, 7, f.loads)

	assert.Equal(t, []string{"alive"}, data(t, m, "core:creature"))
	assert.Equal(t, []string{"alive", "green", "sneaky"}, data(t, m, "core:goblin"))
	assert.Equal(t, []string{"alive", "big"}, data(t, m, "core:orc"))
	// Children see their parent with deltas applied.
	assert.Equal(t, []string{"alive", "green", "sneaky", "huge"}, data(t, m, "extra:troll"))

	goblin, ok := m.Asset("prefab", urn.New("CORE", "Goblin"))
	require.True(t, ok)
	assert.Equal(t, []string{"extra/deltas/core/prefabs/goblin.txt"}, goblin.Deltas)
	assert.Equal(t, "lines", goblin.Format)

	for _, missing := range []string{"core:broken", "core:loop_a", "core:loop_b", "core:notes", "core:dragon", "extra:goblin"} {
		u, _ := urn.Parse(missing)
		_, ok := m.Asset("prefab", u)
		assert.False(t, ok, missing)
	}
	assert.Len(t, m.Assets("prefab"), 4)
}

func TestSwitchEnvironmentDropsRemovedModules(t *testing.T) {
	m, _, _ := newManager()
	env := testEnv()
	m.SwitchEnvironment(env)
	require.NoError(t, m.ReloadAssets(context.Background()))

	core, ok := env.Module("core")
	require.True(t, ok)
	m.SwitchEnvironment(module.MustNewSet(core))
	assert.Len(t, m.Assets("prefab"), 3)
	_, ok = m.Asset("prefab", urn.New("extra", "troll"))
	assert.False(t, ok)

	// The delta from extra remains until the next reload.
	assert.Equal(t, []string{"alive", "green", "sneaky"}, data(t, m, "core:goblin"))
	require.NoError(t, m.ReloadAssets(context.Background()))
	assert.Equal(t, []string{"alive", "green"}, data(t, m, "core:goblin"))
}

func TestSwitchEnvironmentKeepsMixedCaseModules(t *testing.T) {
	m, _, _ := newManager()
	env := module.MustNewSet(module.MustNew(module.Manifest{ID: "Core"}, nil, fstest.MapFS{
		"prefabs/creature.txt": {Data: []byte("alive")},
	}))
	m.SwitchEnvironment(env)
	require.NoError(t, m.ReloadAssets(context.Background()))

	m.SwitchEnvironment(env)
	a, ok := m.Asset("prefab", urn.New("Core", "creature"))
	require.True(t, ok)
	assert.Equal(t, "Core", a.URN.Module)
	assert.Equal(t, []string{"alive"}, a.Data)

	m.SwitchEnvironment(module.Empty)
	assert.Empty(t, m.Assets("prefab"))
}

func TestReloadWithoutFormatsLoadsNothing(t *testing.T) {
	m, f, d := newManager()
	typ, ok := m.AssetType("prefab")
	require.True(t, ok)
	assert.True(t, typ.Producer.RemoveFormat(f))
	assert.True(t, typ.Producer.RemoveDeltaFormat(d))
	assert.False(t, typ.Producer.RemoveFormat(f))

	m.SwitchEnvironment(testEnv())
	require.NoError(t, m.ReloadAssets(context.Background()))
	assert.Empty(t, m.Assets("prefab"))
}

func TestProducerIdentifiesFormatsByInstance(t *testing.T) {
	p := NewProducer("prefab")
	a, b := &lineFormat{}, &lineFormat{}
	p.AddFormat(a)
	p.AddFormat(a)
	p.AddFormat(b)
	require.Len(t, p.Formats(), 2)

	assert.True(t, p.RemoveFormat(a))
	require.Len(t, p.Formats(), 1)
	assert.Same(t, b, p.Formats()[0])
}

func TestRegisterAssetTypeIsIdempotent(t *testing.T) {
	m := NewManager()
	first := m.RegisterAssetType("prefab", "prefabs")
	assert.Same(t, first, m.RegisterAssetType("prefab", "elsewhere"))
	_, ok := m.AssetType("sound")
	assert.False(t, ok)
}
