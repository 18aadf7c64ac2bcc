// Package bot wires the long-running components together and owns their
// startup and shutdown order.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edgard/checkgrabber/internal/session"
)

// ErrSessionsGone is returned when every account session ends before shutdown.
var ErrSessionsGone = errors.New("all account sessions disconnected")

// SessionPool connects the accounts and delivers their events.
type SessionPool interface {
	Start(ctx context.Context, handler session.Handler) (int, error)
	Wait()
}

// Dispatcher consumes events and drains its work on shutdown.
type Dispatcher interface {
	HandleEvent(ctx context.Context, ev session.Event)
	Shutdown(ctx context.Context) error
}

// ControlBot is the optional admin bot.
type ControlBot interface {
	Start(ctx context.Context)
}

// Runner is a component that runs until its context ends.
type Runner interface {
	Run(ctx context.Context) error
}

// Components are the parts the orchestrator runs. Control, Scheduler and
// Metrics may be nil.
type Components struct {
	Pool       SessionPool
	Dispatcher Dispatcher
	Control    ControlBot
	Scheduler  *Scheduler
	Metrics    Runner
}

// Bot orchestrates the components' lifecycle.
type Bot struct {
	logger          *slog.Logger
	c               Components
	shutdownTimeout time.Duration
}

// NewBot creates the orchestrator. shutdownTimeout bounds the dispatch drain.
func NewBot(logger *slog.Logger, c Components, shutdownTimeout time.Duration) *Bot {
	return &Bot{
		logger:          logger.With("component", "bot_orchestrator"),
		c:               c,
		shutdownTimeout: shutdownTimeout,
	}
}

// Run connects the sessions, runs every component until ctx is cancelled or
// one of them fails, then drains in-flight work before the sessions close.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	// Sessions outlive ctx so the drain can still talk to the bots.
	sessCtx, cancelSessions := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelSessions()

	connected, err := b.c.Pool.Start(sessCtx, b.c.Dispatcher.HandleEvent)
	if err != nil {
		cancelSessions()
		b.c.Pool.Wait()
		return fmt.Errorf("failed to start sessions: %w", err)
	}
	b.logger.Info("Sessions online", "connected", connected)

	sessionsDone := make(chan struct{})
	go func() {
		b.c.Pool.Wait()
		close(sessionsDone)
	}()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-sessionsDone:
			if gCtx.Err() == nil {
				return ErrSessionsGone
			}
		case <-gCtx.Done():
		}
		return nil
	})

	if b.c.Control != nil {
		g.Go(func() error {
			b.logger.Info("Starting control bot listener...")
			b.c.Control.Start(gCtx)
			b.logger.Info("Control bot listener stopped.")
			if gCtx.Err() == nil {
				return fmt.Errorf("control bot listener stopped unexpectedly")
			}
			return nil
		})
	}

	if b.c.Scheduler != nil {
		g.Go(func() error {
			if err := b.c.Scheduler.Start(gCtx); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}
			<-gCtx.Done()
			if err := b.c.Scheduler.Stop(); err != nil {
				b.logger.Error("Error stopping scheduler", "error", err)
			}
			return nil
		})
	}

	if b.c.Metrics != nil {
		g.Go(func() error {
			return b.c.Metrics.Run(gCtx)
		})
	}

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	runErr := g.Wait()

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), b.shutdownTimeout)
	defer cancelDrain()
	if err := b.c.Dispatcher.Shutdown(drainCtx); err != nil {
		b.logger.Warn("Dispatch drain incomplete", "error", err)
	}

	cancelSessions()
	<-sessionsDone

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", runErr)
		return runErr
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}
