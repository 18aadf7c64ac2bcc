package tasks

import (
	"context"
	"fmt"

	"github.com/edgard/checkgrabber/internal/notify"
)

// newStatsReportTask sends the per-kind summary to the notification route.
func newStatsReportTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "stats_report")

	return func(ctx context.Context) error {
		if deps.Notifier == nil {
			log.DebugContext(ctx, "No notification route, skipping report")
			return nil
		}

		agg, err := deps.Store.GetAggregate(ctx)
		if err != nil {
			return fmt.Errorf("failed to load aggregate stats: %w", err)
		}

		if err := deps.Notifier.Notify(ctx, notify.FormatStats(agg)); err != nil {
			return fmt.Errorf("failed to send stats report: %w", err)
		}
		log.InfoContext(ctx, "Stats report sent", "kinds", len(agg))
		return nil
	}
}
