// Package redeem sends redemption commands to promotional bots and works out,
// from the bot's replies, whether the voucher was claimed.
package redeem

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/edgard/checkgrabber/internal/checks"
	"github.com/edgard/checkgrabber/internal/metrics"
	"github.com/edgard/checkgrabber/internal/ratelimit"
	"github.com/edgard/checkgrabber/internal/session"
)

// Config tunes the engine.
type Config struct {
	// MaxConcurrent bounds redemption attempts across all accounts.
	MaxConcurrent int64
	// ActivationDelay is waited after dispatch before the first peek.
	ActivationDelay time.Duration
	// RetryDelay precedes each additional peek.
	RetryDelay time.Duration
	// MaxRetries is the number of peeks after the first.
	MaxRetries int
	// HistoryDepth is how many recent dialog messages each peek reads.
	HistoryDepth int
	// Optimistic overlaps the send with the activation delay.
	Optimistic bool
}

// Gate paces commands per account.
type Gate interface {
	Wait(ctx context.Context, accountID string) error
}

// Engine runs redemption attempts.
type Engine struct {
	cfg        Config
	logger     *slog.Logger
	sem        *semaphore.Weighted
	gate       Gate
	classifier *Classifier
	sleep      func(ctx context.Context, d time.Duration) error

	inFlight   atomic.Int64
	onInFlight func(n int64)
}

// Option customises an Engine.
type Option func(*Engine)

// WithClassifier replaces the default reply rules.
func WithClassifier(c *Classifier) Option {
	return func(e *Engine) { e.classifier = c }
}

// WithSleep replaces the delay function.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// WithInFlightHook is called with the number of in-flight attempts whenever it changes.
func WithInFlightHook(hook func(n int64)) Option {
	return func(e *Engine) { e.onInFlight = hook }
}

// New creates an Engine. gate may be nil to skip per-account pacing.
func New(logger *slog.Logger, cfg Config, gate Gate, opts ...Option) *Engine {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.HistoryDepth <= 0 {
		cfg.HistoryDepth = 1
	}
	e := &Engine{
		cfg:        cfg,
		logger:     logger.With("component", "redeem_engine"),
		sem:        semaphore.NewWeighted(cfg.MaxConcurrent),
		gate:       gate,
		classifier: NewClassifier(),
		sleep:      ratelimit.Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Activate redeems code for the account behind sess by messaging target.
// It never returns an error: every failure is an Outcome.
func (e *Engine) Activate(ctx context.Context, sess session.Session, code checks.Code, target string) checks.Outcome {
	start := time.Now()
	out := e.activate(ctx, sess, code, target)
	metrics.RecordRedemption(code.Kind.String(), out.Label(), time.Since(start))
	return out
}

func (e *Engine) activate(ctx context.Context, sess session.Session, code checks.Code, target string) checks.Outcome {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return checks.Errored(err)
	}
	defer e.sem.Release(1)

	e.track(1)
	defer e.track(-1)

	log := e.logger.With("account", sess.AccountID(), "code", code.Value, "kind", code.Kind.String())

	if e.gate != nil {
		if err := e.gate.Wait(ctx, sess.AccountID()); err != nil {
			return checks.Errored(err)
		}
	}

	if out, ok := e.dispatch(ctx, sess, target, "/start "+code.Value); !ok {
		log.DebugContext(ctx, "Redemption command not delivered", "outcome", out.String())
		return out
	}

	if out, ok := e.peek(ctx, sess, target); ok {
		return out
	}
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		if err := e.sleep(ctx, e.cfg.RetryDelay); err != nil {
			return checks.Errored(err)
		}
		if out, ok := e.peek(ctx, sess, target); ok {
			log.DebugContext(ctx, "Bot reply classified after retry", "attempt", attempt)
			return out
		}
	}

	log.DebugContext(ctx, "No recognisable bot reply", "peeks", e.cfg.MaxRetries+1)
	return checks.Failed(checks.ReasonUnknownResponse)
}

// dispatch sends the command and waits the activation delay. ok is false when
// the attempt must stop with the returned outcome.
func (e *Engine) dispatch(ctx context.Context, sess session.Session, target, text string) (checks.Outcome, bool) {
	var sendErr error
	if e.cfg.Optimistic {
		done := make(chan error, 1)
		go func() {
			done <- sess.SendMessage(ctx, target, text, true)
		}()
		delayErr := e.sleep(ctx, e.cfg.ActivationDelay)
		sendErr = <-done
		if sendErr == nil && delayErr != nil {
			return checks.Errored(delayErr), false
		}
	} else {
		sendErr = sess.SendMessage(ctx, target, text, true)
		if sendErr == nil {
			if err := e.sleep(ctx, e.cfg.ActivationDelay); err != nil {
				return checks.Errored(err), false
			}
		}
	}

	if sendErr != nil {
		return e.failure(ctx, sendErr), false
	}
	return checks.Outcome{}, true
}

// peek reads the latest dialog messages. The first bot text either classifies
// the attempt or ends the scan.
func (e *Engine) peek(ctx context.Context, sess session.Session, target string) (checks.Outcome, bool) {
	history, err := sess.RecentHistory(ctx, target, e.cfg.HistoryDepth)
	if err != nil {
		return e.failure(ctx, err), true
	}

	for _, msg := range history {
		if !msg.FromBot || msg.Text == "" {
			continue
		}
		return e.classifier.Classify(msg.Text)
	}
	return checks.Outcome{}, false
}

// failure converts a session error into an outcome, honouring backoff requests.
func (e *Engine) failure(ctx context.Context, err error) checks.Outcome {
	if wait, ok := session.AsFloodWait(err); ok {
		e.logger.WarnContext(ctx, "Platform requested backoff", "wait", wait)
		if sleepErr := e.sleep(ctx, wait); sleepErr != nil && !errors.Is(sleepErr, context.Canceled) {
			e.logger.WarnContext(ctx, "Backoff sleep interrupted", "error", sleepErr)
		}
		return checks.RateLimited(wait)
	}
	return checks.Errored(err)
}

func (e *Engine) track(delta int64) {
	n := e.inFlight.Add(delta)
	metrics.SetInFlight(n)
	if e.onInFlight != nil {
		e.onInFlight(n)
	}
}

// InFlight returns the number of attempts currently holding a concurrency slot.
func (e *Engine) InFlight() int64 {
	return e.inFlight.Load()
}
