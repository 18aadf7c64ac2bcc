// Package ratelimit paces outbound bot commands per account: a hard cap of
// commands inside a rolling one-minute window plus optional human-like jitter.
package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	// Window is the span the per-account cap applies to.
	Window = time.Minute
	// epsilon is added to computed waits so the oldest entry has left the window on wake-up.
	epsilon = 100 * time.Millisecond
)

// Config controls the governor.
type Config struct {
	// PerMinute caps commands per account inside Window. Zero disables the governor entirely.
	PerMinute   int
	HumanDelays bool
	MinDelay    time.Duration
	MaxDelay    time.Duration
}

// Governor hands out send slots per account.
type Governor struct {
	cfg Config

	mu       sync.Mutex
	accounts map[string]*account

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(lo, hi time.Duration) time.Duration
}

// account holds the send timestamps of one account. The gate is a one-slot
// semaphore so waiters can give up on context cancellation.
type account struct {
	gate chan struct{}
	sent []time.Time
}

// Option customises a Governor.
type Option func(*Governor)

// WithClock replaces the wall clock and sleep used by the governor.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Governor) {
		g.now = now
		g.sleep = sleep
	}
}

// WithJitter replaces the random delay source.
func WithJitter(jitter func(lo, hi time.Duration) time.Duration) Option {
	return func(g *Governor) {
		g.jitter = jitter
	}
}

// New creates a Governor.
func New(cfg Config, opts ...Option) *Governor {
	g := &Governor{
		cfg:      cfg,
		accounts: make(map[string]*account),
		now:      time.Now,
		sleep:    Sleep,
		jitter:   uniform,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Wait blocks until accountID may send another command, then records the send.
// Only one caller per account evaluates the window at a time.
func (g *Governor) Wait(ctx context.Context, accountID string) error {
	if g == nil || g.cfg.PerMinute <= 0 {
		return nil
	}

	acc := g.account(accountID)
	select {
	case acc.gate <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-acc.gate }()

	now := g.now()
	acc.prune(now)

	if len(acc.sent) >= g.cfg.PerMinute {
		wait := Window - now.Sub(acc.sent[0]) + epsilon
		if wait > 0 {
			if err := g.sleep(ctx, wait); err != nil {
				return err
			}
			acc.prune(g.now())
		}
	}

	if g.cfg.HumanDelays && g.cfg.MaxDelay > 0 {
		if err := g.sleep(ctx, g.jitter(g.cfg.MinDelay, g.cfg.MaxDelay)); err != nil {
			return err
		}
	}

	acc.sent = append(acc.sent, g.now())
	return nil
}

// Recent returns a copy of the send timestamps still inside the window.
func (g *Governor) Recent(accountID string) []time.Time {
	acc := g.account(accountID)
	acc.gate <- struct{}{}
	defer func() { <-acc.gate }()

	acc.prune(g.now())
	return append([]time.Time(nil), acc.sent...)
}

func (g *Governor) account(id string) *account {
	g.mu.Lock()
	defer g.mu.Unlock()

	acc, ok := g.accounts[id]
	if !ok {
		acc = &account{gate: make(chan struct{}, 1)}
		g.accounts[id] = acc
	}
	return acc
}

// prune drops timestamps that are at least Window old. Timestamps are appended in order.
func (a *account) prune(now time.Time) {
	keep := 0
	for keep < len(a.sent) && now.Sub(a.sent[keep]) >= Window {
		keep++
	}
	if keep > 0 {
		a.sent = append(a.sent[:0], a.sent[keep:]...)
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func uniform(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}
