package config

import "time"

// DefaultConfigPath is used when no --config flag is given.
const DefaultConfigPath = "./config.yaml"

// EnvPrefix prefixes every environment override, e.g. GRABBER_TELEGRAM_API_HASH.
const EnvPrefix = "GRABBER"

// defaults holds every key viper should know about. Keys without a sensible
// default are listed with a zero value so environment overrides still bind.
var defaults = map[string]any{
	"log.level": "info",
	"log.json":  false,

	"database.path": "checks.db",

	"telegram.api_id":                0,
	"telegram.api_hash":              "",
	"telegram.accounts_file":         "accounts.txt",
	"telegram.sessions_dir":          "sessions",
	"telegram.on_disconnect":         "drop",
	"telegram.reconnect_attempts":    3,
	"telegram.bootstrap_concurrency": 10,
	"telegram.bot_targets.cryptobot": "CryptoBot",
	"telegram.bot_targets.xrocket":   "xrocket_bot",

	"redeem.max_concurrent":   150,
	"redeem.activation_delay": 50 * time.Millisecond,
	"redeem.retry_delay":      150 * time.Millisecond,
	"redeem.max_retries":      2,
	"redeem.history_depth":    1,
	"redeem.optimistic":       true,

	"rate_limit.per_minute":   20,
	"rate_limit.human_delays": false,
	"rate_limit.min_delay":    100 * time.Millisecond,
	"rate_limit.max_delay":    500 * time.Millisecond,

	"create.after_activation":  false,
	"create.amount":            0.1,
	"create.currency":          "USDT",
	"create.distribution_chat": "",
	"create.settle_delay":      2500 * time.Millisecond,
	"create.history_depth":     5,

	"monitor.ignore_private_bot_chats": false,
	"monitor.dedupe_capacity":          20000,
	"monitor.shutdown_timeout":         30 * time.Second,

	"captcha.enabled":       false,
	"captcha.api_key":       "",
	"captcha.base_url":      "https://api.2captcha.com",
	"captcha.poll_interval": 3 * time.Second,
	"captcha.max_polls":     40,

	"notify.bot_token":       "",
	"notify.admin_user_id":   0,
	"notify.chat_id":         0,
	"notify.log_activated":   true,
	"notify.rate_per_second": 1.0,
	"notify.burst":           3,

	"scheduler.tasks.stats_report.enabled":     true,
	"scheduler.tasks.stats_report.schedule":    "0 0 * * * *",
	"scheduler.tasks.sql_maintenance.enabled":  true,
	"scheduler.tasks.sql_maintenance.schedule": "0 30 4 * * *",
	"scheduler.tasks.captcha_balance.enabled":  false,
	"scheduler.tasks.captcha_balance.schedule": "0 0 */6 * * *",

	"metrics.enabled": false,
	"metrics.addr":    ":9090",
}
