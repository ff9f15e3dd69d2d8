package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/Borislavv/go-ash-edge/internal/experiment"
	"github.com/Borislavv/go-ash-edge/model"
)

// Run executes a cycle every configured interval until ctx is done. The mode
// is read once per cycle. A zero interval disables scheduling.
func (o *Orchestrator) Run(ctx context.Context, modes experiment.Source) error {
	if o.cfg.Interval <= 0 {
		o.logger.Info("decision scheduler is disabled")
		return nil
	}

	o.logger.Info("decision scheduler is running", "interval", o.cfg.Interval.String(), "window", o.cfg.Window.String())
	defer o.logger.Info("decision scheduler is stopped")

	tick := time.NewTicker(o.cfg.Interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			o.Tick(ctx, modes)
		}
	}
}

// Tick reads the current mode and runs one cycle in it. An unreadable mode
// aborts the cycle.
func (o *Orchestrator) Tick(ctx context.Context, modes experiment.Source) model.Outcome {
	mctx, cancel := context.WithTimeout(ctx, o.cfg.InputTimeout)
	mode, err := modes.Mode(mctx)
	cancel()
	if err != nil {
		now := model.Normalize(o.clk.Now())
		return o.finish(ctx, model.Outcome{
			Status:     model.StatusAborted,
			StartedAt:  now,
			FinishedAt: now,
			Err:        fmt.Errorf("%w: mode: %w", ErrInputUnavailable, err),
		})
	}
	return o.RunCycle(ctx, mode)
}
