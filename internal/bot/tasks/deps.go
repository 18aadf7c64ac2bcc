// Package tasks implements the periodic jobs run by the scheduler.
package tasks

import (
	"context"
	"log/slog"

	"github.com/edgard/checkgrabber/internal/database"
)

// Notifier delivers report text.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// BalanceChecker reports the captcha service balance.
type BalanceChecker interface {
	Enabled() bool
	Balance(ctx context.Context) (float64, error)
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger   *slog.Logger
	Store    database.Store
	Notifier Notifier
	Captcha  BalanceChecker
}
