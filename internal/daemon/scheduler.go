package daemon

import (
	"context"
	"errors"
	"time"

	"authindex/internal/logging"
	"authindex/internal/services"
)

// startScheduler triggers a sync of every configured index type each
// sync.interval_minutes. A zero interval disables scheduling.
func (d *Daemon) startScheduler(ctx context.Context) {
	interval := d.cfg.SyncInterval()
	if interval <= 0 || len(d.cfg.Sync.IndexTypes) == 0 {
		d.logger.Info("scheduled sync disabled")
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.triggerScheduled(ctx)
			}
		}
	}()
	d.logger.Info("scheduled sync enabled",
		logging.Duration("interval", interval),
		logging.Any("index_types", d.cfg.Sync.IndexTypes),
	)
}

func (d *Daemon) triggerScheduled(ctx context.Context) {
	for _, indexType := range d.cfg.Sync.IndexTypes {
		res, err := d.svc.StartSync(ctx, indexType)
		switch {
		case err != nil && errors.Is(err, services.ErrUpstreamUnavailable):
			d.logger.Info("scheduled sync skipped; upstream unavailable",
				logging.String(logging.FieldIndexType, indexType),
				logging.Error(err),
			)
		case err != nil:
			logging.WarnWithContext(d.logger, "scheduled sync failed to start", "scheduled_sync_failed",
				logging.String(logging.FieldIndexType, indexType),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check daemon logs and the cursor database"),
				logging.String(logging.FieldImpact, "index not refreshed this interval"),
			)
		case res.Busy:
			d.logger.Debug("scheduled sync skipped; already running", logging.String(logging.FieldIndexType, indexType))
		default:
			d.logger.Info("scheduled sync started",
				logging.String(logging.FieldIndexType, indexType),
				logging.String(logging.FieldRunID, res.RunID),
			)
		}
	}
}
