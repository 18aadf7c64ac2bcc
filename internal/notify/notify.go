// Package notify delivers status lines (activations, new vouchers, periodic
// statistics) to the operator's log chat.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/time/rate"

	"github.com/edgard/checkgrabber/internal/session"
)

// ErrNoRoute is returned when there is nowhere to deliver a notification.
var ErrNoRoute = errors.New("no notification route available")

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, text string) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, text string) error { return f(ctx, text) }

// Notifier paces messages to a Sender. A nil Notifier or one without a sender
// drops everything.
type Notifier struct {
	sender  Sender
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Notifier allowing perSecond messages with the given burst.
func New(logger *slog.Logger, sender Sender, perSecond float64, burst int) *Notifier {
	if burst < 1 {
		burst = 1
	}
	return &Notifier{
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		logger:  logger.With("component", "notifier"),
	}
}

// Enabled reports whether messages will be delivered.
func (n *Notifier) Enabled() bool {
	return n != nil && n.sender != nil
}

// Notify waits for the pacing limiter and sends text.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	if !n.Enabled() {
		return nil
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notification not sent: %w", err)
	}
	if err := n.sender.Send(ctx, text); err != nil {
		n.logger.WarnContext(ctx, "Failed to deliver notification", "error", err)
		return err
	}
	return nil
}

// BotSender sends through the control bot.
func BotSender(b *tgbot.Bot, chatID int64) Sender {
	return SenderFunc(func(ctx context.Context, text string) error {
		_, err := b.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: chatID, Text: text})
		if err != nil {
			return fmt.Errorf("control bot send to %d: %w", chatID, err)
		}
		return nil
	})
}

// SessionSender sends through whichever session pick returns.
func SessionSender(pick func() (session.Session, bool), chatID int64) Sender {
	target := strconv.FormatInt(chatID, 10)
	return SenderFunc(func(ctx context.Context, text string) error {
		sess, ok := pick()
		if !ok {
			return ErrNoRoute
		}
		if err := sess.SendMessage(ctx, target, text, false); err != nil {
			return fmt.Errorf("session %s send to %s: %w", sess.AccountID(), target, err)
		}
		return nil
	})
}
