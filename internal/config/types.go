// Package config manages application configuration from defaults, an optional
// YAML file, a .env file and GRABBER_* environment variables.
package config

import (
	"errors"
	"time"
)

// ErrConfiguration wraps every load or validation failure.
var ErrConfiguration = errors.New("configuration error")

// Config is the root configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Redeem    RedeemConfig    `mapstructure:"redeem"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Create    CreateConfig    `mapstructure:"create"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Captcha   CaptchaConfig   `mapstructure:"captcha"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// LogConfig configures the slog logger.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig configures the SQLite ledger.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// TelegramConfig holds the user-session settings.
type TelegramConfig struct {
	APIID                int        `mapstructure:"api_id" validate:"gte=0"`
	APIHash              string     `mapstructure:"api_hash"`
	AccountsFile         string     `mapstructure:"accounts_file" validate:"required"`
	SessionsDir          string     `mapstructure:"sessions_dir" validate:"required"`
	OnDisconnect         string     `mapstructure:"on_disconnect" validate:"oneof=drop retry_with_backoff"`
	ReconnectAttempts    int        `mapstructure:"reconnect_attempts" validate:"gte=0"`
	BootstrapConcurrency int        `mapstructure:"bootstrap_concurrency" validate:"gte=1"`
	BotTargets           BotTargets `mapstructure:"bot_targets"`
}

// BotTargets names the bot dialog each kind of voucher is redeemed in.
type BotTargets struct {
	CryptoBot string `mapstructure:"cryptobot" validate:"required"`
	XRocket   string `mapstructure:"xrocket" validate:"required"`
}

// RedeemConfig tunes redemption attempts.
type RedeemConfig struct {
	MaxConcurrent   int64         `mapstructure:"max_concurrent" validate:"gte=1"`
	ActivationDelay time.Duration `mapstructure:"activation_delay" validate:"gte=0"`
	RetryDelay      time.Duration `mapstructure:"retry_delay" validate:"gte=0"`
	MaxRetries      int           `mapstructure:"max_retries" validate:"gte=0"`
	HistoryDepth    int           `mapstructure:"history_depth" validate:"gte=1"`
	Optimistic      bool          `mapstructure:"optimistic"`
}

// RateLimitConfig bounds commands per account. PerMinute 0 disables the limit.
type RateLimitConfig struct {
	PerMinute   int           `mapstructure:"per_minute" validate:"gte=0"`
	HumanDelays bool          `mapstructure:"human_delays"`
	MinDelay    time.Duration `mapstructure:"min_delay" validate:"gte=0"`
	MaxDelay    time.Duration `mapstructure:"max_delay" validate:"gtefield=MinDelay"`
}

// CreateConfig controls voucher creation after a successful redemption.
type CreateConfig struct {
	AfterActivation  bool          `mapstructure:"after_activation"`
	Amount           float64       `mapstructure:"amount" validate:"gt=0"`
	Currency         string        `mapstructure:"currency" validate:"required"`
	DistributionChat string        `mapstructure:"distribution_chat"`
	SettleDelay      time.Duration `mapstructure:"settle_delay" validate:"gte=0"`
	HistoryDepth     int           `mapstructure:"history_depth" validate:"gte=1"`
}

// MonitorConfig controls inbound message handling.
type MonitorConfig struct {
	IgnorePrivateBotChats bool          `mapstructure:"ignore_private_bot_chats"`
	DedupeCapacity        int           `mapstructure:"dedupe_capacity" validate:"gte=1"`
	ShutdownTimeout       time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// CaptchaConfig configures the captcha solving service.
type CaptchaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	APIKey       string        `mapstructure:"api_key" validate:"required_if=Enabled true"`
	BaseURL      string        `mapstructure:"base_url" validate:"required,url"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	MaxPolls     int           `mapstructure:"max_polls" validate:"gte=1"`
}

// NotifyConfig configures status messages. With a bot token they go through
// the control bot; otherwise through any connected session.
type NotifyConfig struct {
	BotToken      string  `mapstructure:"bot_token"`
	AdminUserID   int64   `mapstructure:"admin_user_id" validate:"required_with=BotToken"`
	ChatID        int64   `mapstructure:"chat_id"`
	LogActivated  bool    `mapstructure:"log_activated"`
	RatePerSecond float64 `mapstructure:"rate_per_second" validate:"gt=0"`
	Burst         int     `mapstructure:"burst" validate:"gte=1"`
}

// SchedulerConfig lists the periodic tasks.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig is one scheduled task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required_if=Enabled true"`
}
