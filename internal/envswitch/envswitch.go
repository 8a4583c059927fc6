// Package envswitch rebuilds the type registries of the application whenever
// the active module environment changes.
//
// A Switcher supports three kinds of environment. A full switch rebuilds
// every registry for the module manager's environment and installs new
// prefab formats bound to them. A preview switch only builds a component
// library for a candidate module set. Switching back from a preview, or to
// the empty environment, removes the installed formats and points the asset
// pipeline at the full environment without rebuilding anything.
//
// Registries are fully built before they are published into the context.
// Prefab formats close over one generation's record registry, so the formats
// of the previous generation are always removed before new ones are added
// and a removed format is never added again.
package envswitch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/modenv/internal/asset"
	"github.com/specialistvlad/modenv/internal/ctxlog"
	"github.com/specialistvlad/modenv/internal/envctx"
	"github.com/specialistvlad/modenv/internal/fault"
	"github.com/specialistvlad/modenv/internal/module"
	"github.com/specialistvlad/modenv/internal/notify"
	"github.com/specialistvlad/modenv/internal/prefab"
	"github.com/specialistvlad/modenv/internal/record"
)

// Kind names the environment a switch entered.
type Kind string

const (
	KindFull            Kind = "full"
	KindPreview         Kind = "preview"
	KindBackFromPreview Kind = "back_from_preview"
	KindEmpty           Kind = "empty"
)

// Generation describes the outcome of one completed switch. It is published
// into the context after every switch.
type Generation struct {
	ID       uuid.UUID
	Sequence uint64
	Kind     Kind
	Modules  []string
	At       time.Time
}

// Metrics receives switch measurements. *metrics.Collector implements it.
type Metrics interface {
	RecordSwitch(kind string, d time.Duration, err error)
	RecordInstalledFormats(base, delta int)
	RecordRecords(library string, count int)
	RecordGeneration(seq uint64, modules int)
}

// Option configures a Switcher.
type Option func(*Switcher)

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Switcher) { s.metrics = m }
}

// WithNotifier sets where completed switches are announced.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Switcher) { s.notifier = n }
}

// installed is the handle of the prefab formats a full switch added.
type installed struct {
	producer *asset.Producer
	base     *prefab.Format
	delta    *prefab.DeltaFormat
}

// Switcher sequences environment switches. Switches are serialized; the
// context passed to each must not be read concurrently with a switch.
type Switcher struct {
	mu sync.Mutex

	formats installed

	// inPreview is set while a preview component library replaces the full
	// one in the context; fullComponents is the library to restore.
	inPreview      bool
	fullComponents *record.ComponentLibrary

	seq      uint64
	last     Generation
	metrics  Metrics
	notifier notify.Notifier
}

// New creates a Switcher with no formats installed.
func New(opts ...Option) *Switcher {
	s := &Switcher{metrics: nopMetrics{}, notifier: notify.Nop{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Installed returns the formats currently installed by the switcher.
func (s *Switcher) Installed() (*prefab.Format, *prefab.DeltaFormat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formats.base, s.formats.delta
}

// Generation returns the last completed switch.
func (s *Switcher) Generation() (Generation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.seq > 0
}

// SwitchBackFromPreview leaves a preview: it removes the installed formats,
// points the asset pipeline at the full environment and restores the
// component library the preview replaced.
func (s *Switcher) SwitchBackFromPreview(ctx context.Context, c *envctx.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx, c, KindBackFromPreview, func(ctx context.Context) (*module.Set, error) {
		env, err := s.cheapAssetUpdate(ctx, c, nil)
		if err != nil {
			return nil, err
		}
		if s.inPreview {
			if s.fullComponents != nil {
				envctx.Put(c, s.fullComponents)
			} else {
				envctx.Remove[*record.ComponentLibrary](c)
			}
			s.inPreview = false
			s.fullComponents = nil
		}
		return env, nil
	})
}

// SwitchToEmpty removes the installed formats and points the asset pipeline
// at the module manager's environment. Registries are left as they are.
func (s *Switcher) SwitchToEmpty(ctx context.Context, c *envctx.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx, c, KindEmpty, func(ctx context.Context) (*module.Set, error) {
		return s.cheapAssetUpdate(ctx, c, nil)
	})
}

// cheapAssetUpdate uninstalls the formats and switches the asset
// environment to env, or to the module manager's environment when env is
// nil.
func (s *Switcher) cheapAssetUpdate(ctx context.Context, c *envctx.Context, env *module.Set) (*module.Set, error) {
	assets, err := envctx.Require[*asset.Manager](c)
	if err != nil {
		return nil, fault.Configuration("%w", err)
	}
	if env == nil {
		modules, err := envctx.Require[*module.Manager](c)
		if err != nil {
			return nil, fault.Configuration("%w", err)
		}
		env = modules.Environment()
	}
	s.uninstallFormats(ctx)
	assets.SwitchEnvironment(env)
	return env, nil
}

// uninstallFormats removes the installed formats from their producer. It is
// a no-op when nothing is installed.
func (s *Switcher) uninstallFormats(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	h := s.formats
	if h.base != nil && !h.producer.RemoveFormat(h.base) {
		logger.Warn("Installed prefab format was already removed from the producer.")
	}
	if h.delta != nil && !h.producer.RemoveDeltaFormat(h.delta) {
		logger.Warn("Installed prefab delta format was already removed from the producer.")
	}
	if h.base != nil || h.delta != nil {
		logger.Debug("Prefab formats uninstalled.")
	}
	s.formats = installed{}
	s.metrics.RecordInstalledFormats(0, 0)
}

// run executes one switch, then publishes its generation, records metrics
// and notifies listeners.
func (s *Switcher) run(ctx context.Context, c *envctx.Context, kind Kind, fn func(ctx context.Context) (*module.Set, error)) error {
	ctx = ctxlog.With(ctx, "switch", string(kind))
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Switching environment.")
	start := time.Now()

	env, err := fn(ctx)
	s.metrics.RecordSwitch(string(kind), time.Since(start), err)
	if err != nil {
		logger.Error("Environment switch failed.", "error", err)
		return err
	}

	s.seq++
	gen := Generation{
		ID:       uuid.New(),
		Sequence: s.seq,
		Kind:     kind,
		Modules:  env.IDs(),
		At:       time.Now(),
	}
	s.last = gen
	envctx.Put(c, gen)
	s.metrics.RecordGeneration(gen.Sequence, len(gen.Modules))
	logger.Info("Environment switched.", "generation", gen.ID.String(), "sequence", gen.Sequence, "modules", env.String(), "duration", time.Since(start))

	if err := s.notifier.Notify(ctx, notify.Event{
		Generation: gen.ID.String(),
		Sequence:   gen.Sequence,
		Kind:       string(gen.Kind),
		Modules:    gen.Modules,
		At:         gen.At,
	}); err != nil {
		logger.Warn("Failed to announce environment switch.", "error", err)
	}
	return nil
}

type nopMetrics struct{}

func (nopMetrics) RecordSwitch(string, time.Duration, error) {}
func (nopMetrics) RecordInstalledFormats(int, int)           {}
func (nopMetrics) RecordRecords(string, int)                 {}
func (nopMetrics) RecordGeneration(uint64, int)              {}
