package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/specialistvlad/modenv/internal/asset"
	"github.com/specialistvlad/modenv/internal/autoconfig"
	"github.com/specialistvlad/modenv/internal/copystrategy"
	"github.com/specialistvlad/modenv/internal/ctxlog"
	"github.com/specialistvlad/modenv/internal/envctx"
	"github.com/specialistvlad/modenv/internal/envswitch"
	"github.com/specialistvlad/modenv/internal/metrics"
	"github.com/specialistvlad/modenv/internal/module"
	"github.com/specialistvlad/modenv/internal/notify"
	"github.com/specialistvlad/modenv/internal/physics"
	"github.com/specialistvlad/modenv/internal/prefab"
	"github.com/specialistvlad/modenv/internal/typeinfo"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	ctx    context.Context
	config *Config

	env       *envctx.Context
	switcher  *envswitch.Switcher
	metrics   *metrics.Collector
	notifier  notify.Notifier
	providers map[string]module.Provider

	discovered []module.Discovered
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns an App with
// its own logger and an execution context holding every long-lived
// collaborator a switch needs. providers are the compiled-in Go modules by
// ID; nil means the modules built into the binary.
func NewApp(outW io.Writer, cfg *Config, providers map[string]module.Provider) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	if providers == nil {
		providers = coreProviders
	}

	c := envctx.New()
	envctx.Put(c, logger)
	envctx.Put(c, module.NewManager(nil))
	envctx.Put(c, typeinfo.NewRegistry())
	envctx.Put(c, copystrategy.NewLibrary())
	envctx.Put(c, physics.NewCollisionGroupManager())
	envctx.Put(c, autoconfig.NewManager(cfg.ConfigDir))
	assets := asset.NewManager()
	assets.RegisterAssetType(prefab.Kind, prefab.Folder)
	envctx.Put(c, assets)
	logger.Debug("Execution context prepared.", "keys", len(c.Keys()))

	var notifier notify.Notifier = notify.Nop{}
	if cfg.NotifyURL != "" {
		sio, err := notify.DialSocketIO(ctx, notify.SocketIOOptions{
			URL:       cfg.NotifyURL,
			Namespace: cfg.NotifyNamespace,
			Event:     cfg.NotifyEvent,
		})
		if err != nil {
			// Announcements are best effort; the switches still run.
			logger.Warn("Switch notifications disabled.", "url", cfg.NotifyURL, "error", err)
		} else {
			notifier = sio
		}
	}

	collector := metrics.NewCollector("modenv")
	switcher := envswitch.New(envswitch.WithMetrics(collector), envswitch.WithNotifier(notifier))
	envctx.Put(c, switcher)

	return &App{
		outW:      outW,
		logger:    logger,
		ctx:       ctx,
		config:    cfg,
		env:       c,
		switcher:  switcher,
		metrics:   collector,
		notifier:  notifier,
		providers: providers,
	}, nil
}

// Context returns the execution context switches publish into.
func (a *App) Context() *envctx.Context {
	return a.env
}

// Switcher returns the environment-switch orchestrator.
func (a *App) Switcher() *envswitch.Switcher {
	return a.switcher
}

// Metrics returns the switch metrics collector.
func (a *App) Metrics() *metrics.Collector {
	return a.metrics
}

// Close releases the notifier connection and stops the health check server.
func (a *App) Close() error {
	if c, ok := a.notifier.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.logger.Warn("Failed to close notifier.", "error", err)
		}
	}
	return a.closeHealthCheckServer()
}
