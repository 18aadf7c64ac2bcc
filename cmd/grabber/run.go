package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/spf13/cobra"

	"github.com/edgard/checkgrabber/internal/bot"
	"github.com/edgard/checkgrabber/internal/bot/handlers"
	"github.com/edgard/checkgrabber/internal/bot/tasks"
	"github.com/edgard/checkgrabber/internal/captcha"
	"github.com/edgard/checkgrabber/internal/checks"
	"github.com/edgard/checkgrabber/internal/config"
	"github.com/edgard/checkgrabber/internal/create"
	"github.com/edgard/checkgrabber/internal/database"
	"github.com/edgard/checkgrabber/internal/dispatch"
	"github.com/edgard/checkgrabber/internal/logger"
	"github.com/edgard/checkgrabber/internal/metrics"
	"github.com/edgard/checkgrabber/internal/notify"
	"github.com/edgard/checkgrabber/internal/ratelimit"
	"github.com/edgard/checkgrabber/internal/redeem"
	"github.com/edgard/checkgrabber/internal/session"
	"github.com/edgard/checkgrabber/internal/session/mtproto"
	"github.com/edgard/checkgrabber/internal/telegram"
)

var errRunFailed = errors.New("grabber stopped with an error")

func newRunCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect every account and redeem vouchers until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				slog.Error("Failed to load configuration", "error", err)
				return err
			}
			if code := run(cmd.Context(), cfg); code != 0 {
				return errRunFailed
			}
			return nil
		},
	}
}

// run wires every component, runs until ctx is cancelled and returns an exit code.
func run(ctx context.Context, cfg *config.Config) int {
	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	accounts, err := session.LoadAccounts(cfg.Telegram.AccountsFile, cfg.Telegram.APIID, cfg.Telegram.APIHash)
	if err != nil {
		log.Error("Failed to load accounts", "path", cfg.Telegram.AccountsFile, "error", err)
		return 1
	}
	log.Info("Accounts loaded", "count", len(accounts))

	pool := session.NewPool(log, &mtproto.Connector{SessionsDir: cfg.Telegram.SessionsDir, Logger: log}, accounts, session.PoolConfig{
		OnDisconnect:         session.DisconnectPolicy(cfg.Telegram.OnDisconnect),
		ReconnectAttempts:    cfg.Telegram.ReconnectAttempts,
		BootstrapConcurrency: cfg.Telegram.BootstrapConcurrency,
	})

	governor := ratelimit.New(ratelimit.Config{
		PerMinute:   cfg.RateLimit.PerMinute,
		HumanDelays: cfg.RateLimit.HumanDelays,
		MinDelay:    cfg.RateLimit.MinDelay,
		MaxDelay:    cfg.RateLimit.MaxDelay,
	})
	redeemer := redeem.New(log, redeem.Config{
		MaxConcurrent:   cfg.Redeem.MaxConcurrent,
		ActivationDelay: cfg.Redeem.ActivationDelay,
		RetryDelay:      cfg.Redeem.RetryDelay,
		MaxRetries:      cfg.Redeem.MaxRetries,
		HistoryDepth:    cfg.Redeem.HistoryDepth,
		Optimistic:      cfg.Redeem.Optimistic,
	}, governor, redeem.WithInFlightHook(metrics.SetInFlight))
	creator := create.New(log, create.Config{
		SettleDelay:  cfg.Create.SettleDelay,
		HistoryDepth: cfg.Create.HistoryDepth,
	})

	solver := captcha.New(captcha.Config{
		Enabled:      cfg.Captcha.Enabled,
		APIKey:       cfg.Captcha.APIKey,
		BaseURL:      cfg.Captcha.BaseURL,
		PollInterval: cfg.Captcha.PollInterval,
		MaxPolls:     cfg.Captcha.MaxPolls,
	}, nil, log)
	if solver.Enabled() {
		balance, err := solver.Balance(ctx)
		if err != nil {
			log.Warn("Failed to check captcha balance", "error", err)
		} else {
			log.Info("Captcha service ready", "balance", balance)
		}
	}

	var control *tgbot.Bot
	var sender notify.Sender
	switch {
	case cfg.Notify.BotToken != "":
		control, err = telegram.NewTelegramBot(cfg.Notify.BotToken, log, tgbot.WithMiddlewares(logger.Middleware(log)))
		if err != nil {
			log.Error("Failed to create control bot", "error", err)
			return 1
		}
		hDeps := handlers.HandlerDeps{Logger: log, Store: store, Sessions: pool, AdminUserID: cfg.Notify.AdminUserID}
		if _, err := telegram.RegisterHandlers(control, log, handlers.RegisterAllCommands(hDeps)); err != nil {
			log.Error("Failed to register control bot handlers", "error", err)
			return 1
		}
		chatID := cfg.Notify.ChatID
		if chatID == 0 {
			chatID = cfg.Notify.AdminUserID
		}
		sender = notify.BotSender(control, chatID)
	case cfg.Notify.ChatID != 0:
		sender = notify.SessionSender(pool.Any, cfg.Notify.ChatID)
	}
	notifier := notify.New(log, sender, cfg.Notify.RatePerSecond, cfg.Notify.Burst)

	coordinator := dispatch.New(log, dispatch.Config{
		Targets: map[checks.Kind]string{
			checks.KindCryptoBot: cfg.Telegram.BotTargets.CryptoBot,
			checks.KindXRocket:   cfg.Telegram.BotTargets.XRocket,
		},
		IgnorePrivateBotChats: cfg.Monitor.IgnorePrivateBotChats,
		DedupeCapacity:        cfg.Monitor.DedupeCapacity,
		CreateAfterActivation: cfg.Create.AfterActivation,
		CreateAmount:          cfg.Create.Amount,
		CreateCurrency:        cfg.Create.Currency,
		DistributionChat:      cfg.Create.DistributionChat,
		NotifyActivated:       cfg.Notify.LogActivated && notifier.Enabled(),
		CaptchaEnabled:        solver.Enabled(),
	}, redeemer, creator, store, notifier)

	tDeps := tasks.TaskDeps{Logger: log, Store: store, Captcha: solver}
	if notifier.Enabled() {
		tDeps.Notifier = notifier
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	components := bot.Components{
		Pool:       pool,
		Dispatcher: coordinator,
		Scheduler:  sched,
	}
	if control != nil {
		components.Control = control
	}
	if cfg.Metrics.Enabled {
		components.Metrics = metrics.NewServer(cfg.Metrics.Addr, log, store.Ping)
	}

	app := bot.NewBot(log, components, cfg.Monitor.ShutdownTimeout)

	log.Info("Starting grabber...")
	runErr := app.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Grabber stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Grabber stopped gracefully.")
	return 0
}
