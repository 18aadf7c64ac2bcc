package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/checkgrabber/internal/notify"
)

// NewStatsHandler returns a handler for /stats, the per-kind summary.
func NewStatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		respond(ctx, b, update, deps, "stats", func(ctx context.Context) (string, error) {
			agg, err := deps.Store.GetAggregate(ctx)
			if err != nil {
				return "", err
			}
			count, err := deps.Store.CountRedemptions(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s\n\nЗаписей в журнале: %d", notify.FormatStats(agg), count), nil
		})
	}
}

// NewAccountsHandler returns a handler for /accounts. An argument filters by account.
func NewAccountsHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		respond(ctx, b, update, deps, "accounts", func(ctx context.Context) (string, error) {
			_, account, _ := strings.Cut(update.Message.Text, " ")
			stats, err := deps.Store.GetStats(ctx, strings.TrimSpace(account))
			if err != nil {
				return "", err
			}
			return notify.FormatAccountStats(stats), nil
		})
	}
}

// NewSessionsHandler returns a handler for /sessions, listing connected accounts.
func NewSessionsHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		respond(ctx, b, update, deps, "sessions", func(context.Context) (string, error) {
			sessions := deps.Sessions.Sessions()
			if len(sessions) == 0 {
				return "Нет подключённых аккаунтов.", nil
			}
			var sb strings.Builder
			fmt.Fprintf(&sb, "Подключено аккаунтов: %d\n", len(sessions))
			for _, s := range sessions {
				sb.WriteString("• " + s.AccountID() + "\n")
			}
			return strings.TrimRight(sb.String(), "\n"), nil
		})
	}
}

func respond(ctx context.Context, b *bot.Bot, update *models.Update, deps HandlerDeps, name string, render func(context.Context) (string, error)) {
	log := deps.Logger.With("handler", name)
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	text, err := render(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to render reply", "error", err)
		text = msgGeneralError
	}
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "error", err, "chat_id", chatID)
	}
}
