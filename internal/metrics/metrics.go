// Package metrics provides Prometheus collectors for environment switches:
// switch counts and durations, the number of installed prefab formats and
// the size of the current record libraries.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector records switch metrics.
type Collector struct {
	registry *prometheus.Registry

	switches         *prometheus.CounterVec
	switchLatency    *prometheus.HistogramVec
	installedFormats *prometheus.GaugeVec
	records          *prometheus.GaugeVec
	generation       prometheus.Gauge
	modules          prometheus.Gauge
}

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "modenv"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.switches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "switch",
			Name:      "total",
			Help:      "Total number of environment switches",
		},
		[]string{"kind", "result"},
	)
	c.switchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "switch",
			Name:      "duration_seconds",
			Help:      "Time taken by an environment switch",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
		[]string{"kind", "result"},
	)
	c.installedFormats = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "formats",
			Name:      "installed",
			Help:      "Number of prefab formats installed by the orchestrator (0 or 1 per slot)",
		},
		[]string{"slot"},
	)
	c.records = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "records",
			Name:      "registered",
			Help:      "Number of record types in the current libraries",
		},
		[]string{"library"},
	)
	c.generation = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "generation",
		Help:      "Sequence number of the current generation",
	})
	c.modules = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "modules_loaded",
		Help:      "Number of modules in the current asset environment",
	})

	c.registry.MustRegister(
		c.switches,
		c.switchLatency,
		c.installedFormats,
		c.records,
		c.generation,
		c.modules,
	)
	return c
}

// Registry returns the Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordSwitch records one switch and its latency.
func (c *Collector) RecordSwitch(kind string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	c.switches.WithLabelValues(kind, result).Inc()
	c.switchLatency.WithLabelValues(kind, result).Observe(duration.Seconds())
}

// RecordInstalledFormats records how many formats occupy each slot.
func (c *Collector) RecordInstalledFormats(base, delta int) {
	c.installedFormats.WithLabelValues("base").Set(float64(base))
	c.installedFormats.WithLabelValues("delta").Set(float64(delta))
}

// RecordRecords records the size of a record library.
func (c *Collector) RecordRecords(library string, count int) {
	c.records.WithLabelValues(library).Set(float64(count))
}

// RecordGeneration records the current generation.
func (c *Collector) RecordGeneration(seq uint64, modules int) {
	c.generation.Set(float64(seq))
	c.modules.Set(float64(modules))
}

// NoOpCollector discards everything.
type NoOpCollector struct{}

// NewNoOpCollector creates a collector that records nothing.
func NewNoOpCollector() *NoOpCollector {
	return &NoOpCollector{}
}

func (*NoOpCollector) RecordSwitch(kind string, d time.Duration, err error) {}
func (*NoOpCollector) RecordInstalledFormats(base, delta int)               {}
func (*NoOpCollector) RecordRecords(library string, count int)              {}
func (*NoOpCollector) RecordGeneration(seq uint64, modules int)             {}
