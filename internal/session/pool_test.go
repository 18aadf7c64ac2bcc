package session_test

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
	"github.com/stretchr/testify/require"

	"github.com/edgard/checkgrabber/internal/session"
)

type stubSession struct{ id string }

func (s stubSession) AccountID() string { return s.id }

func (stubSession) SendMessage(context.Context, string, string, bool) error { return nil }

func (stubSession) RecentHistory(context.Context, string, int) ([]session.Message, error) {
	return nil, nil
}

// scriptedConnector runs each account according to a per-session-name script.
type scriptedConnector struct {
	mu    sync.Mutex
	calls map[string]int
	// behave returns the error to fail with before ready, or nil to go online.
	behave func(acc session.Account, call int) error
	// drop ends an online connection early on the given call numbers.
	drop func(acc session.Account, call int) bool
}

func (c *scriptedConnector) Connect(ctx context.Context, acc session.Account, _ session.Handler, ready func(session.Session)) error {
	c.mu.Lock()
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[acc.SessionName]++
	call := c.calls[acc.SessionName]
	c.mu.Unlock()

	if err := c.behave(acc, call); err != nil {
		return err
	}
	ready(stubSession{id: acc.Name()})
	if c.drop != nil && c.drop(acc, call) {
		return errors.New("connection reset")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (c *scriptedConnector) Calls(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPoolSkipsFailedAccounts(t *testing.T) {
	t.Parallel()

	connector := &scriptedConnector{
		behave: func(acc session.Account, _ int) error {
			if acc.SessionName == "locked" {
				return session.ErrUnauthorized
			}
			return nil
		},
	}
	accounts := []session.Account{{SessionName: "one"}, {SessionName: "locked"}, {SessionName: "two"}}
	pool := session.NewPool(discardLogger(), connector, accounts, session.PoolConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	n, err := pool.Start(ctx, func(context.Context, session.Event) {})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, pool.Sessions(), 2)

	s, ok := pool.Any()
	require.True(t, ok)
	assert.NotEqual(t, "locked", s.AccountID())

	cancel()
	pool.Wait()
	assert.Empty(t, pool.Sessions())
}

func TestPoolNoUsableSessions(t *testing.T) {
	t.Parallel()

	connector := &scriptedConnector{
		behave: func(session.Account, int) error { return errors.New("bad credentials") },
	}
	pool := session.NewPool(discardLogger(), connector, []session.Account{{SessionName: "x"}}, session.PoolConfig{})

	_, err := pool.Start(context.Background(), func(context.Context, session.Event) {})
	assert.ErrorIs(t, err, session.ErrNoSessions)
	pool.Wait()
}

func TestPoolReconnectsWithBackoff(t *testing.T) {
	t.Parallel()

	connector := &scriptedConnector{
		behave: func(session.Account, int) error { return nil },
		drop:   func(_ session.Account, call int) bool { return call <= 2 },
	}
	pool := session.NewPool(discardLogger(), connector, []session.Account{{SessionName: "flaky"}}, session.PoolConfig{
		OnDisconnect:      session.DisconnectRetry,
		ReconnectAttempts: 3,
		BackoffMin:        time.Millisecond,
		BackoffMax:        5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := pool.Start(ctx, func(context.Context, session.Event) {})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return connector.Calls("flaky") == 3 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return len(pool.Sessions()) == 1 }, time.Second, time.Millisecond)

	cancel()
	pool.Wait()
}

func TestPoolDropPolicyExcludesAccount(t *testing.T) {
	t.Parallel()

	connector := &scriptedConnector{
		behave: func(session.Account, int) error { return nil },
		drop:   func(session.Account, int) bool { return true },
	}
	pool := session.NewPool(discardLogger(), connector, []session.Account{{SessionName: "gone"}}, session.PoolConfig{
		OnDisconnect: session.DisconnectDrop,
	})

	_, err := pool.Start(context.Background(), func(context.Context, session.Event) {})
	require.NoError(t, err)

	pool.Wait()
	assert.Equal(t, 1, connector.Calls("gone"))
	assert.Empty(t, pool.Sessions())
}

func TestParseAccounts(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"# comment",
		"",
		"12345:abcdef:main:+79990001122",
		"::second",
		"notanumber:ffff:third:+100",
	}, "\n")

	accounts, err := session.ParseAccounts(strings.NewReader(input), 1, "default")
	require.NoError(t, err)
	assert.Equal(t, []session.Account{
		{AppID: 12345, AppHash: "abcdef", SessionName: "main", Phone: "+79990001122"},
		{AppID: 1, AppHash: "default", SessionName: "second"},
		{AppID: 1, AppHash: "ffff", SessionName: "third", Phone: "+100"},
	}, accounts)
	assert.Equal(t, "second", accounts[1].Name())

	_, err = session.ParseAccounts(strings.NewReader("only:two"), 1, "x")
	assert.Error(t, err)
}

func TestAsFloodWait(t *testing.T) {
	t.Parallel()

	err := errors.Join(errors.New("send failed"), &session.FloodWaitError{Wait: 7 * time.Second})
	wait, ok := session.AsFloodWait(err)
	assert.True(t, ok)
	assert.Equal(t, 7*time.Second, wait)

	_, ok = session.AsFloodWait(errors.New("other"))
	assert.False(t, ok)
}
