package create_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/edgard/checkgrabber/internal/checks"
	"github.com/edgard/checkgrabber/internal/create"
	"github.com/edgard/checkgrabber/internal/session"
)

func TestExtractLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{
			name: "https link with start",
			text: "Чек создан: https://t.me/CryptoBot?start=CQabcdef1234.",
			want: "https://t.me/CryptoBot?start=CQabcdef1234",
			ok:   true,
		},
		{
			name: "bare domain link gets a scheme",
			text: "Share: t.me/xrocket?start=mci_AbCdEf123456",
			want: "https://t.me/xrocket?start=mci_AbCdEf123456",
			ok:   true,
		},
		{
			name: "link inside parentheses",
			text: "(t.me/CryptoBot?start=CQ999999999x)",
			want: "https://t.me/CryptoBot?start=CQ999999999x",
			ok:   true,
		},
		{
			name: "bare code fallback",
			text: "Your check code: cABCDEFGHIJK12",
			want: "https://t.me/CryptoBot?start=cABCDEFGHIJK12",
			ok:   true,
		},
		{
			name: "non telegram url is not a voucher",
			text: "See https://example.com/help for details",
		},
		{
			name: "short code is not a voucher",
			text: "code cABC123",
		},
		{name: "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := create.ExtractLink(tt.text, "CryptoBot")
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommandsPerKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/createCheck", create.Commands(checks.KindCryptoBot)[0])
	assert.Contains(t, create.Commands(checks.KindXRocket), "/create_check")
	assert.Empty(t, create.Commands(checks.KindUnknown))
}

func TestFormatBroadcast(t *testing.T) {
	t.Parallel()

	msg := create.FormatBroadcast(checks.KindXRocket, "https://t.me/xrocket?start=abc")
	assert.True(t, strings.HasPrefix(msg, "💰 Новый чек от XROCKET:"))
	assert.True(t, strings.HasSuffix(msg, "\n\nhttps://t.me/xrocket?start=abc"))
}

// dialog answers a command only once the configured spelling is sent.
type dialog struct {
	accept  string
	reply   session.Message
	failing map[string]bool

	mu      sync.Mutex
	sent    []string
	replied bool
}

func (d *dialog) AccountID() string { return "acc" }

func (d *dialog) SendMessage(_ context.Context, _ string, text string, _ bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, text)
	cmd, _, _ := strings.Cut(text, " ")
	if d.failing[cmd] {
		return errors.New("command not supported")
	}
	if cmd == d.accept {
		d.replied = true
	}
	return nil
}

func (d *dialog) RecentHistory(context.Context, string, int) ([]session.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.replied {
		return []session.Message{{FromBot: true, Content: checks.Content{Text: "Unknown command"}}}, nil
	}
	return []session.Message{d.reply}, nil
}

func newEngine() *create.Engine {
	e := create.New(slog.New(slog.NewTextHandler(io.Discard, nil)), create.Config{SettleDelay: time.Millisecond})
	e.SetSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() })
	return e
}

func TestCreateWalksCommandSpellings(t *testing.T) {
	t.Parallel()

	d := &dialog{
		accept:  "/create",
		failing: map[string]bool{"/createCheck": true},
		reply:   session.Message{FromBot: true, Content: checks.Content{Text: "Done: https://t.me/CryptoBot?start=CQnewvoucher1"}},
	}

	link, ok := newEngine().Create(context.Background(), d, checks.KindCryptoBot, "CryptoBot", 0.1, "USDT")

	assert.True(t, ok)
	assert.Equal(t, "https://t.me/CryptoBot?start=CQnewvoucher1", link)
	assert.Equal(t, []string{"/createCheck 0.1 USDT", "/createcheck 0.1 USDT", "/create 0.1 USDT"}, d.sent)
}

func TestCreateUsesInlineButton(t *testing.T) {
	t.Parallel()

	d := &dialog{
		accept: "/createcheck",
		reply: session.Message{FromBot: true, Content: checks.Content{
			Text: "Check ready",
			Buttons: [][]checks.Button{
				{{Text: "Help", URL: "https://help.example.com"}},
				{{Text: "Share", URL: "https://t.me/xrocket?start=mci_voucher123"}},
			},
		}},
	}

	link, ok := newEngine().Create(context.Background(), d, checks.KindXRocket, "xrocket_bot", 1, "TON")

	assert.True(t, ok)
	assert.Equal(t, "https://t.me/xrocket?start=mci_voucher123", link)
}

func TestCreateGivesUp(t *testing.T) {
	t.Parallel()

	d := &dialog{accept: "/never"}

	link, ok := newEngine().Create(context.Background(), d, checks.KindXRocket, "xrocket_bot", 1, "USDT")

	assert.False(t, ok)
	assert.Empty(t, link)
	assert.Len(t, d.sent, len(create.Commands(checks.KindXRocket)))
}
