// Package create asks a promotional bot to issue a new voucher and recovers the
// share link from its reply.
package create

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/edgard/checkgrabber/internal/checks"
	"github.com/edgard/checkgrabber/internal/metrics"
	"github.com/edgard/checkgrabber/internal/ratelimit"
	"github.com/edgard/checkgrabber/internal/session"
)

// Config tunes the engine.
type Config struct {
	// SettleDelay is waited after each command before reading replies.
	SettleDelay time.Duration
	// HistoryDepth is how many recent dialog messages are scanned per command.
	HistoryDepth int
}

// DefaultConfig returns the delays the bots are known to need.
func DefaultConfig() Config {
	return Config{SettleDelay: 2500 * time.Millisecond, HistoryDepth: 5}
}

// Commands returns the create-voucher spellings a bot kind accepts, most likely first.
func Commands(kind checks.Kind) []string {
	switch kind {
	case checks.KindCryptoBot:
		return []string{"/createCheck", "/createcheck", "/create", "/check", "/newcheck"}
	case checks.KindXRocket:
		return []string{"/createcheck", "/create", "/check", "/newcheck", "/create_check"}
	default:
		return nil
	}
}

// Engine issues vouchers through an account's bot dialog.
type Engine struct {
	cfg    Config
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates an Engine.
func New(logger *slog.Logger, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = def.SettleDelay
	}
	if cfg.HistoryDepth <= 0 {
		cfg.HistoryDepth = def.HistoryDepth
	}
	return &Engine{
		cfg:    cfg,
		logger: logger.With("component", "create_engine"),
		sleep:  ratelimit.Sleep,
	}
}

// SetSleep replaces the delay function. Intended for tests.
func (e *Engine) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	e.sleep = sleep
}

// Create tries each command spelling for kind against target until a reply
// yields a share link. It reports false when no spelling worked.
func (e *Engine) Create(ctx context.Context, sess session.Session, kind checks.Kind, target string, amount float64, currency string) (string, bool) {
	log := e.logger.With("account", sess.AccountID(), "kind", kind.String(), "target", target)
	args := strconv.FormatFloat(amount, 'f', -1, 64) + " " + currency

	for _, cmd := range Commands(kind) {
		if ctx.Err() != nil {
			break
		}
		if err := sess.SendMessage(ctx, target, cmd+" "+args, true); err != nil {
			log.DebugContext(ctx, "Create command rejected", "command", cmd, "error", err)
			if wait, ok := session.AsFloodWait(err); ok {
				_ = e.sleep(ctx, wait)
			}
			continue
		}
		if err := e.sleep(ctx, e.cfg.SettleDelay); err != nil {
			break
		}

		history, err := sess.RecentHistory(ctx, target, e.cfg.HistoryDepth)
		if err != nil {
			log.DebugContext(ctx, "Failed to read create reply", "command", cmd, "error", err)
			continue
		}
		if link, ok := linkFromHistory(history, target); ok {
			log.InfoContext(ctx, "Voucher created", "command", cmd)
			metrics.RecordCheckCreated(kind.String(), true)
			return link, true
		}
	}

	log.WarnContext(ctx, "No create command produced a voucher link")
	metrics.RecordCheckCreated(kind.String(), false)
	return "", false
}

func linkFromHistory(history []session.Message, target string) (string, bool) {
	for _, msg := range history {
		if !msg.FromBot {
			continue
		}
		if link, ok := ExtractLink(msg.Text, target); ok {
			return link, true
		}
		for _, row := range msg.Buttons {
			for _, b := range row {
				if b.URL != "" && strings.Contains(strings.ToLower(b.URL), "start=") {
					return b.URL, true
				}
			}
		}
	}
	return "", false
}

// FormatBroadcast renders the distribution message for a new voucher.
func FormatBroadcast(kind checks.Kind, link string) string {
	return "💰 Новый чек от " + strings.ToUpper(kind.String()) + ":\n\n" + link
}
