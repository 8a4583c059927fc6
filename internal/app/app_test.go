package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/modenv/internal/asset"
	"github.com/specialistvlad/modenv/internal/autoconfig"
	"github.com/specialistvlad/modenv/internal/envctx"
	"github.com/specialistvlad/modenv/internal/envswitch"
	"github.com/specialistvlad/modenv/internal/module"
	"github.com/specialistvlad/modenv/internal/prefab"
	"github.com/specialistvlad/modenv/internal/record"
	"github.com/specialistvlad/modenv/internal/urn"
	"github.com/specialistvlad/modenv/modules/combat"
	"github.com/specialistvlad/modenv/modules/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bundledModules = "../../modules"

func TestNewConfig(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		in        Config
		want      *Config
		expectErr bool
	}{
		{
			name: "defaults",
			in:   Config{ModulesPath: "m"},
			want: &Config{ModulesPath: "m", LogFormat: "text", LogLevel: "info"},
		},
		{
			name: "normalizes case",
			in:   Config{ModulesPath: "m", LogFormat: "JSON", LogLevel: "Debug", HealthcheckPort: 8080},
			want: &Config{ModulesPath: "m", LogFormat: "json", LogLevel: "debug", HealthcheckPort: 8080},
		},
		{name: "missing modules path", in: Config{}, expectErr: true},
		{name: "bad format", in: Config{ModulesPath: "m", LogFormat: "xml"}, expectErr: true},
		{name: "bad level", in: Config{ModulesPath: "m", LogLevel: "loud"}, expectErr: true},
		{name: "bad port", in: Config{ModulesPath: "m", HealthcheckPort: 70000}, expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := NewConfig(tc.in)
			if tc.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("NewConfig() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewAppRejectsNilConfig(t *testing.T) {
	_, err := NewApp(&bytes.Buffer{}, nil, nil)
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("warn", "json", &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"app":"modenv"`)
}

func TestRunBundledModules(t *testing.T) {
	testApp, logs := SetupAppTest(t, Config{ModulesPath: bundledModules, ConfigDir: "../../config"}, nil)
	var out bytes.Buffer
	testApp.outW = &out

	require.NoError(t, testApp.Run(context.Background()))
	assert.Contains(t, out.String(), "full environment with 3 modules")
	assert.Contains(t, logs.String(), "Environment switched.")

	c := testApp.Context()
	gen := mustGet[envswitch.Generation](t, c)
	assert.Equal(t, []string{"core", "combat", "bestiary"}, gen.Modules)

	comps := mustGet[*record.ComponentLibrary](t, c)
	_, ok := comps.Metadata(urn.New(core.ID, "Health"))
	assert.True(t, ok)
	_, ok = comps.Metadata(urn.New(core.ID, "EditorMarker"))
	assert.False(t, ok, "NoAutoRegister components stay out of the library")

	store := mustGet[*autoconfig.Store](t, c)
	settings, ok := autoconfig.Get[core.Settings](store)
	require.True(t, ok)
	assert.Equal(t, 12, settings.StartingHealth)
	combatCfg, ok := autoconfig.Get[combat.Config](store)
	require.True(t, ok)
	assert.Equal(t, 2.0, combatCfg.CritMultiplier)

	assets := mustGet[*asset.Manager](t, c)
	creature := loadPrefab(t, assets, "core:creature")
	health, ok := creature.Component(urn.New(core.ID, "Health"))
	require.True(t, ok)
	assert.Equal(t, core.HealthComponent{Current: 12, Max: 12}, health, "combat delta applies to the core prefab")

	goblin := loadPrefab(t, assets, "bestiary:goblin")
	attack, ok := goblin.Component(urn.New(combat.ID, "Attack"))
	require.True(t, ok)
	assert.Equal(t, combat.AttackComponent{Damage: combat.Dice{Count: 1, Sides: 6}, Range: 1.5}, attack)
	team, ok := goblin.Component(urn.New(core.ID, "Allegiance"))
	require.True(t, ok)
	assert.Equal(t, core.Allegiance{Team: core.Hostile}, team)
	_, ok = goblin.Component(urn.New(core.ID, "Health"))
	assert.True(t, ok, "inherited through combat:warrior from core:creature")
}

func TestPreviewRoundTrip(t *testing.T) {
	testApp, _ := SetupAppTest(t, Config{ModulesPath: bundledModules}, nil)
	ctx := context.Background()
	require.NoError(t, testApp.LoadModules())
	require.NoError(t, testApp.Switcher().SwitchToFull(ctx, testApp.Context()))
	full := mustGet[*record.ComponentLibrary](t, testApp.Context())

	set, err := testApp.previewSet([]string{"core"})
	require.NoError(t, err)
	assert.Equal(t, []string{"core"}, set.IDs())

	require.NoError(t, testApp.PreviewRoundTrip(ctx, []string{"combat"}))
	assert.Same(t, full, mustGet[*record.ComponentLibrary](t, testApp.Context()))
	gen, ok := testApp.Switcher().Generation()
	require.True(t, ok)
	assert.Equal(t, envswitch.KindBackFromPreview, gen.Kind)

	err = testApp.PreviewRoundTrip(ctx, []string{"dragons"})
	require.ErrorIs(t, err, module.ErrMissingDependency)
}

func TestLoadModulesAssetOnly(t *testing.T) {
	testApp, _ := SetupAppTest(t, Config{}, map[string]module.Provider{})
	WriteTree(t, testApp.config.ModulesPath, map[string]string{
		"props/module.hcl": `module "props" {}`,
	})
	require.NoError(t, testApp.Run(context.Background()))

	gen := mustGet[envswitch.Generation](t, testApp.Context())
	assert.Equal(t, []string{"props"}, gen.Modules)
	assert.Zero(t, mustGet[*record.ComponentLibrary](t, testApp.Context()).Len())
}

func TestLoadModulesMissingDependency(t *testing.T) {
	testApp, _ := SetupAppTest(t, Config{}, map[string]module.Provider{})
	WriteTree(t, testApp.config.ModulesPath, map[string]string{
		"props/module.hcl": `module "props" { dependencies = ["base"] }`,
	})
	err := testApp.Run(context.Background())
	require.ErrorIs(t, err, module.ErrMissingDependency)
	_, ok := testApp.Switcher().Generation()
	assert.False(t, ok)
}

func TestInspect(t *testing.T) {
	testApp, _ := SetupAppTest(t, Config{ModulesPath: bundledModules}, nil)

	var before bytes.Buffer
	require.NoError(t, testApp.Inspect(&before))
	assert.Contains(t, before.String(), "no environment has been entered")

	require.NoError(t, testApp.Run(context.Background()))
	var out bytes.Buffer
	require.NoError(t, testApp.Inspect(&out))
	report := out.String()
	for _, want := range []string{
		"core combat bestiary",
		"core:Health",
		"combat:Attack",
		"*core.TeamHandler",
		"core/settings",
		"combat/combat",
		"bestiary:goblin",
	} {
		assert.Contains(t, report, want)
	}
}

func TestHealthMux(t *testing.T) {
	testApp, _ := SetupAppTest(t, Config{ModulesPath: bundledModules}, nil)
	srv := httptest.NewServer(testApp.newHealthMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	require.NoError(t, testApp.Run(context.Background()))

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body bytes.Buffer
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), `modenv_switch_total{kind="full",result="success"} 1`)
}

func mustGet[T any](t *testing.T, c *envctx.Context) T {
	t.Helper()
	v, err := envctx.Require[T](c)
	require.NoError(t, err)
	return v
}

func loadPrefab(t *testing.T, assets *asset.Manager, name string) *prefab.Prefab {
	t.Helper()
	id, err := urn.Parse(name)
	require.NoError(t, err)
	a, ok := assets.Asset(prefab.Kind, id)
	require.True(t, ok, "prefab %s not loaded", name)
	p, ok := a.Data.(*prefab.Prefab)
	require.True(t, ok)
	return p
}
