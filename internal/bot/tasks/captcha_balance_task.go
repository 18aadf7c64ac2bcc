package tasks

import (
	"context"
	"fmt"
)

// lowBalance is the threshold below which the admin is warned.
const lowBalance = 1.0

// newCaptchaBalanceTask logs the solver balance and warns when it runs low.
func newCaptchaBalanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "captcha_balance")

	return func(ctx context.Context) error {
		if !deps.Captcha.Enabled() {
			return nil
		}

		balance, err := deps.Captcha.Balance(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch captcha balance: %w", err)
		}
		log.InfoContext(ctx, "Captcha balance", "balance", balance)

		if balance < lowBalance && deps.Notifier != nil {
			if err := deps.Notifier.Notify(ctx, fmt.Sprintf("⚠️ Баланс сервиса капчи: %.2f", balance)); err != nil {
				return fmt.Errorf("failed to send balance warning: %w", err)
			}
		}
		return nil
	}
}
