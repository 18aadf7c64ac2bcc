package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/checkgrabber/internal/session"
)

type fakePool struct {
	startErr error
	dropAll  chan struct{}

	mu      sync.Mutex
	sessCtx context.Context
	wg      sync.WaitGroup
}

func (p *fakePool) Start(ctx context.Context, _ session.Handler) (int, error) {
	if p.startErr != nil {
		return 0, p.startErr
	}
	p.mu.Lock()
	p.sessCtx = ctx
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		select {
		case <-ctx.Done():
		case <-p.dropAll:
		}
	}()
	return 1, nil
}

func (p *fakePool) Wait() { p.wg.Wait() }

func (p *fakePool) sessionsAlive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessCtx != nil && p.sessCtx.Err() == nil
}

type fakeDispatcher struct {
	pool            *fakePool
	shutdownCalled  bool
	aliveAtShutdown bool
}

func (d *fakeDispatcher) HandleEvent(context.Context, session.Event) {}

func (d *fakeDispatcher) Shutdown(context.Context) error {
	d.shutdownCalled = true
	d.aliveAtShutdown = d.pool.sessionsAlive()
	return nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRunDrainsBeforeClosingSessions(t *testing.T) {
	t.Parallel()

	pool := &fakePool{dropAll: make(chan struct{})}
	disp := &fakeDispatcher{pool: pool}
	b := NewBot(quiet(), Components{Pool: pool, Dispatcher: disp}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(ctx) }()

	require.Eventually(t, pool.sessionsAlive, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.True(t, disp.shutdownCalled)
	assert.True(t, disp.aliveAtShutdown, "sessions stay up during the drain")
	assert.False(t, pool.sessionsAlive())
}

func TestRunFailsWhenSessionsDrop(t *testing.T) {
	t.Parallel()

	pool := &fakePool{dropAll: make(chan struct{})}
	disp := &fakeDispatcher{pool: pool}
	b := NewBot(quiet(), Components{Pool: pool, Dispatcher: disp}, time.Second)

	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(context.Background()) }()

	require.Eventually(t, pool.sessionsAlive, time.Second, time.Millisecond)
	close(pool.dropAll)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrSessionsGone)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.True(t, disp.shutdownCalled)
}

func TestRunReportsStartFailure(t *testing.T) {
	t.Parallel()

	pool := &fakePool{startErr: session.ErrNoSessions}
	disp := &fakeDispatcher{pool: pool}
	err := NewBot(quiet(), Components{Pool: pool, Dispatcher: disp}, time.Second).Run(context.Background())

	assert.True(t, errors.Is(err, session.ErrNoSessions))
	assert.False(t, disp.shutdownCalled)
}
