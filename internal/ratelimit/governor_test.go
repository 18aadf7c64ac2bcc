package ratelimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/checkgrabber/internal/ratelimit"
)

// fakeClock advances virtual time on every sleep.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return ctx.Err()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

func TestGovernorWaitsForOldestToLeaveWindow(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	g := ratelimit.New(ratelimit.Config{PerMinute: 20}, ratelimit.WithClock(clock.Now, clock.Sleep))
	ctx := context.Background()

	// 20 sends spaced one second apart: the oldest is 19s old afterwards.
	for i := 0; i < 20; i++ {
		require.NoError(t, g.Wait(ctx, "acc"))
		if i < 19 {
			clock.Advance(time.Second)
		}
	}
	require.Empty(t, clock.Slept(), "no waits expected below the cap")
	require.Len(t, g.Recent("acc"), 20)

	require.NoError(t, g.Wait(ctx, "acc"))

	slept := clock.Slept()
	require.Len(t, slept, 1)
	assert.InDelta(t, (41*time.Second + 100*time.Millisecond).Seconds(), slept[0].Seconds(), 0.001)
	assert.LessOrEqual(t, len(g.Recent("acc")), 20)
}

func TestGovernorAccountsAreIndependent(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	g := ratelimit.New(ratelimit.Config{PerMinute: 1}, ratelimit.WithClock(clock.Now, clock.Sleep))
	ctx := context.Background()

	require.NoError(t, g.Wait(ctx, "a"))
	require.NoError(t, g.Wait(ctx, "b"))
	assert.Empty(t, clock.Slept())

	require.NoError(t, g.Wait(ctx, "a"))
	assert.Len(t, clock.Slept(), 1)
}

func TestGovernorHumanDelay(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	g := ratelimit.New(
		ratelimit.Config{PerMinute: 5, HumanDelays: true, MinDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond},
		ratelimit.WithClock(clock.Now, clock.Sleep),
		ratelimit.WithJitter(func(lo, hi time.Duration) time.Duration {
			assert.Equal(t, 100*time.Millisecond, lo)
			assert.Equal(t, 300*time.Millisecond, hi)
			return 200 * time.Millisecond
		}),
	)

	start := clock.Now()
	require.NoError(t, g.Wait(context.Background(), "acc"))

	assert.Equal(t, []time.Duration{200 * time.Millisecond}, clock.Slept())
	recent := g.Recent("acc")
	require.Len(t, recent, 1)
	assert.Equal(t, start.Add(200*time.Millisecond), recent[0], "send is recorded after the jitter")
}

func TestGovernorDisabled(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	g := ratelimit.New(ratelimit.Config{PerMinute: 0, HumanDelays: true, MaxDelay: time.Second},
		ratelimit.WithClock(clock.Now, clock.Sleep))

	for i := 0; i < 100; i++ {
		require.NoError(t, g.Wait(context.Background(), "acc"))
	}
	assert.Empty(t, clock.Slept())
}

func TestGovernorHonoursCancellation(t *testing.T) {
	t.Parallel()

	g := ratelimit.New(ratelimit.Config{PerMinute: 1})
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, g.Wait(ctx, "acc"))
	cancel()

	err := g.Wait(ctx, "acc")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleep(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ratelimit.Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ratelimit.Sleep(ctx, time.Hour), context.Canceled)
}
