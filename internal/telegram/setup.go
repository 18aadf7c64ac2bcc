// Package telegram builds the control bot and registers its handlers.
package telegram

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/go-telegram/bot"

	"github.com/edgard/checkgrabber/internal/bot/handlers"
)

var (
	// ErrEmptyToken is returned when no control bot token is configured.
	ErrEmptyToken = errors.New("control bot token cannot be empty")
	// ErrNilBot is returned when registering on a nil bot.
	ErrNilBot = errors.New("bot instance cannot be nil")
)

// NewTelegramBot creates the control bot. bot.New validates the token with getMe
// unless opts skip it.
func NewTelegramBot(token string, logger *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}
	if logger == nil {
		logger = slog.Default()
	}

	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create control bot: %w", err)
	}

	logger.With("component", "control_bot").Info("Control bot created")
	return b, nil
}

// chain wraps handler so the first middleware in mw runs first.
func chain(handler bot.HandlerFunc, mw []bot.Middleware) bot.HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

// RegisterHandlers registers every handler with its middleware, in command order.
// It returns the ids assigned by the bot.
func RegisterHandlers(b *bot.Bot, logger *slog.Logger, registered map[string]handlers.RegisteredHandler) ([]string, error) {
	if b == nil {
		return nil, ErrNilBot
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "handler_registry")

	commands := make([]string, 0, len(registered))
	for cmd := range registered {
		commands = append(commands, cmd)
	}
	sort.Strings(commands)

	ids := make([]string, 0, len(commands))
	for _, cmd := range commands {
		h := registered[cmd]
		if h.Handler == nil {
			log.Warn("Skipping command without handler", "command", cmd)
			continue
		}
		ids = append(ids, b.RegisterHandler(h.HandlerType, h.Pattern, h.MatchType, chain(h.Handler, h.Middleware)))
		log.Debug("Registered command", "command", cmd, "middleware_count", len(h.Middleware))
	}

	log.Info("Control bot commands registered", "count", len(ids))
	return ids, nil
}
