package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/modenv/internal/ctxlog"
)

// Run loads the modules, switches to the full environment and, when
// configured, enters the preview environment and switches back. With the
// health check server enabled it then serves until ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		a.healthCheckServer()
	}

	if err := a.LoadModules(); err != nil {
		return err
	}
	if err := a.switcher.SwitchToFull(ctx, a.env); err != nil {
		return fmt.Errorf("failed to enter the full environment: %w", err)
	}

	if len(a.config.Preview) > 0 {
		if err := a.PreviewRoundTrip(ctx, a.config.Preview); err != nil {
			return err
		}
	}

	if gen, ok := a.switcher.Generation(); ok {
		fmt.Fprintf(a.outW, "generation %d (%s): %s environment with %d modules\n", gen.Sequence, gen.ID, gen.Kind, len(gen.Modules))
	}

	if a.config.HealthcheckPort > 0 {
		a.logger.Info("Serving health and metrics until interrupted.")
		<-ctx.Done()
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

// PreviewRoundTrip enters a preview of the discovered modules named by ids
// and switches back to the full environment.
func (a *App) PreviewRoundTrip(ctx context.Context, ids []string) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	set, err := a.previewSet(ids)
	if err != nil {
		return fmt.Errorf("failed to assemble preview environment: %w", err)
	}
	if err := a.switcher.SwitchToPreview(ctx, a.env, set); err != nil {
		return fmt.Errorf("failed to enter the preview environment: %w", err)
	}
	if err := a.switcher.SwitchBackFromPreview(ctx, a.env); err != nil {
		return fmt.Errorf("failed to leave the preview environment: %w", err)
	}
	return nil
}
