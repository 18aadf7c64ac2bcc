package telegram_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/checkgrabber/internal/bot/handlers"
	"github.com/edgard/checkgrabber/internal/telegram"
)

func TestNewTelegramBotRejectsEmptyToken(t *testing.T) {
	t.Parallel()

	_, err := telegram.NewTelegramBot("", nil)
	assert.ErrorIs(t, err, telegram.ErrEmptyToken)
}

func TestRegisterHandlers(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	t.Cleanup(srv.Close)

	b, err := telegram.NewTelegramBot("123456:TEST", slog.New(slog.NewTextHandler(io.Discard, nil)),
		tgbot.WithServerURL(srv.URL), tgbot.WithSkipGetMe())
	require.NoError(t, err)

	noop := func(context.Context, *tgbot.Bot, *models.Update) {}
	ids, err := telegram.RegisterHandlers(b, nil, map[string]handlers.RegisteredHandler{
		"/a": {HandlerType: tgbot.HandlerTypeMessageText, Pattern: "a", Handler: noop, MatchType: tgbot.MatchTypeCommandStartOnly},
		"/b": {HandlerType: tgbot.HandlerTypeMessageText, Pattern: "b", MatchType: tgbot.MatchTypeCommandStartOnly},
	})
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	_, err = telegram.RegisterHandlers(nil, nil, nil)
	assert.ErrorIs(t, err, telegram.ErrNilBot)
}
