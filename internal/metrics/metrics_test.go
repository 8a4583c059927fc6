package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSwitch(t *testing.T) {
	c := NewCollector("test")

	c.RecordSwitch("full", 10*time.Millisecond, nil)
	c.RecordSwitch("full", 20*time.Millisecond, nil)
	c.RecordSwitch("preview", time.Millisecond, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.switches.WithLabelValues("full", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.switches.WithLabelValues("preview", "error")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.switchLatency))
}

func TestGauges(t *testing.T) {
	c := NewCollector("test")

	c.RecordInstalledFormats(1, 1)
	c.RecordInstalledFormats(0, 0)
	c.RecordRecords("components", 4)
	c.RecordGeneration(7, 3)

	expected := `
# HELP test_formats_installed Number of prefab formats installed by the orchestrator (0 or 1 per slot)
# TYPE test_formats_installed gauge
test_formats_installed{slot="base"} 0
test_formats_installed{slot="delta"} 0
`
	require.NoError(t, testutil.CollectAndCompare(c.installedFormats, strings.NewReader(expected)))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.records.WithLabelValues("components")))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.generation))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.modules))
}

func TestRegistryGathers(t *testing.T) {
	c := NewCollector("")
	c.RecordSwitch("empty", time.Millisecond, nil)

	families, err := c.Registry().Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "modenv_switch_total")
	assert.Contains(t, names, "modenv_switch_duration_seconds")
}

func TestNoOpCollector(t *testing.T) {
	c := NewNoOpCollector()
	c.RecordSwitch("full", time.Millisecond, nil)
	c.RecordInstalledFormats(1, 1)
	c.RecordRecords("events", 1)
	c.RecordGeneration(1, 1)
}
