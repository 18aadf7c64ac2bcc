package notify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/edgard/checkgrabber/internal/database"
	"github.com/edgard/checkgrabber/internal/logger"
)

// FormatActivated renders the activation line. Codes are truncated to 20 characters.
func FormatActivated(kind, code string, amount float64, currency, account, source string) string {
	return fmt.Sprintf("✅ Чек активирован\nБот: %s\nКод: %s\nСумма: %g %s\nАккаунт: %s\nИсточник: %s",
		strings.ToUpper(kind), logger.Truncate(code, 20), amount, currency, account, source)
}

// FormatStats renders the per-kind summary, kinds sorted by name.
func FormatStats(agg map[string]database.KindAggregate) string {
	var b strings.Builder
	b.WriteString("📊 Статистика активации чеков:\n")
	if len(agg) == 0 {
		b.WriteString("\nПока ничего не активировано.")
		return b.String()
	}

	kinds := make([]string, 0, len(agg))
	for k := range agg {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	for _, k := range kinds {
		a := agg[k]
		fmt.Fprintf(&b, "\n%s:\n  Всего чеков: %d\n  Общая сумма: %g\n  Аккаунтов: %d\n",
			strings.ToUpper(k), a.TotalCount, a.TotalAmount, a.UniqueAccounts)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatAccountStats renders one line per account and kind.
func FormatAccountStats(stats []database.AccountStats) string {
	if len(stats) == 0 {
		return "Нет данных по аккаунтам."
	}
	var b strings.Builder
	for _, s := range stats {
		fmt.Fprintf(&b, "%s [%s]: %d чеков, %g %s\n", s.AccountID, s.BotKind, s.ChecksCount, s.TotalAmount, s.Currency)
	}
	return strings.TrimRight(b.String(), "\n")
}
