package tasks

import (
	"context"
)

// ScheduledTaskFunc is the signature of every scheduled task. It should honour ctx.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks returns every task keyed by the name used under scheduler.tasks in the config.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := make(map[string]ScheduledTaskFunc)

	tasks["sql_maintenance"] = newSQLMaintenanceTask(deps)
	tasks["stats_report"] = newStatsReportTask(deps)
	if deps.Captcha != nil {
		tasks["captcha_balance"] = newCaptchaBalanceTask(deps)
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
