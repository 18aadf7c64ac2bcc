package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"
)

// Connector brings one account online. Connect blocks for the lifetime of the
// connection; it calls ready exactly once the session can be used and returns
// when the connection ends. Returning before ready means bootstrap failed.
type Connector interface {
	Connect(ctx context.Context, acc Account, handler Handler, ready func(Session)) error
}

// DisconnectPolicy decides what happens when an established session drops.
type DisconnectPolicy string

const (
	DisconnectDrop  DisconnectPolicy = "drop"
	DisconnectRetry DisconnectPolicy = "retry_with_backoff"
)

// PoolConfig tunes bootstrap and reconnect behaviour.
type PoolConfig struct {
	OnDisconnect         DisconnectPolicy
	ReconnectAttempts    int
	BootstrapConcurrency int
	BackoffMin           time.Duration
	BackoffMax           time.Duration
}

// Pool owns every account session of the run.
type Pool struct {
	logger    *slog.Logger
	connector Connector
	accounts  []Account
	cfg       PoolConfig

	mu       sync.RWMutex
	sessions map[string]Session
	order    []string

	wg sync.WaitGroup
}

// NewPool creates a pool for the given accounts.
func NewPool(logger *slog.Logger, connector Connector, accounts []Account, cfg PoolConfig) *Pool {
	if cfg.BootstrapConcurrency <= 0 {
		cfg.BootstrapConcurrency = 10
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = time.Minute
	}
	return &Pool{
		logger:    logger.With("component", "session_pool"),
		connector: connector,
		accounts:  accounts,
		cfg:       cfg,
		sessions:  make(map[string]Session),
	}
}

// Start connects every account, at most BootstrapConcurrency at a time, and
// returns once each account is either online or skipped. Sessions keep
// running until ctx is cancelled; use Wait to block until they are all gone.
func (p *Pool) Start(ctx context.Context, handler Handler) (int, error) {
	if len(p.accounts) == 0 {
		return 0, ErrNoSessions
	}

	p.logger.Info("Connecting accounts", "count", len(p.accounts))

	results := make(chan bool, len(p.accounts))
	sem := make(chan struct{}, p.cfg.BootstrapConcurrency)
	for _, acc := range p.accounts {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runAccount(ctx, acc, handler, sem, results)
		}()
	}

	connected := 0
	for range p.accounts {
		select {
		case ok := <-results:
			if ok {
				connected++
			}
		case <-ctx.Done():
			return connected, ctx.Err()
		}
	}

	p.logger.Info("Accounts connected", "connected", connected, "total", len(p.accounts))
	if connected == 0 {
		return 0, ErrNoSessions
	}
	return connected, nil
}

// Wait blocks until every account goroutine has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Sessions returns the currently connected sessions in connection order.
func (p *Pool) Sessions() []Session {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Session, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, p.sessions[name])
	}
	return out
}

// Any returns one connected session, if there is one.
func (p *Pool) Any() (Session, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.order) == 0 {
		return nil, false
	}
	return p.sessions[p.order[0]], true
}

func (p *Pool) runAccount(ctx context.Context, acc Account, handler Handler, sem chan struct{}, results chan<- bool) {
	log := p.logger.With("account", acc.Name())

	var reportOnce, releaseOnce sync.Once
	report := func(ok bool) { reportOnce.Do(func() { results <- ok }) }

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		report(false)
		return
	}
	release := func() { releaseOnce.Do(func() { <-sem }) }

	b := &backoff.Backoff{Min: p.cfg.BackoffMin, Max: p.cfg.BackoffMax, Factor: 2, Jitter: true}
	var everReady atomic.Bool
	attempt := 0

	for {
		err := p.connector.Connect(ctx, acc, handler, func(s Session) {
			everReady.Store(true)
			p.register(acc, s)
			release()
			report(true)
			b.Reset()
			attempt = 0
			log.Info("Account session online", "account_id", s.AccountID())
		})
		p.unregister(acc)
		release()

		if ctx.Err() != nil {
			report(false)
			return
		}
		if !everReady.Load() {
			switch {
			case errors.Is(err, ErrUnauthorized):
				log.Warn("Skipping account: session is not authorized", "error", err)
			default:
				log.Error("Skipping account: bootstrap failed", "error", err)
			}
			report(false)
			return
		}
		if p.cfg.OnDisconnect != DisconnectRetry || attempt >= p.cfg.ReconnectAttempts {
			log.Warn("Account session dropped, excluding it for the rest of the run", "error", err, "attempts", attempt)
			return
		}

		attempt++
		wait := b.Duration()
		log.Warn("Account session dropped, reconnecting", "error", err, "attempt", attempt, "wait", wait)

		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
}

func (p *Pool) register(acc Account, s Session) {
	p.mu.Lock()
	defer p.mu.Unlock()

	name := acc.Name()
	if _, ok := p.sessions[name]; !ok {
		p.order = append(p.order, name)
	}
	p.sessions[name] = s
}

func (p *Pool) unregister(acc Account) {
	p.mu.Lock()
	defer p.mu.Unlock()

	name := acc.Name()
	if _, ok := p.sessions[name]; !ok {
		return
	}
	delete(p.sessions, name)
	for i, n := range p.order {
		if n == name {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}
