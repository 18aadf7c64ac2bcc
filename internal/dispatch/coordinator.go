// Package dispatch turns inbound message events into redemption attempts and
// runs the follow-up work for each successful one.
package dispatch

import (
	"context"
	"database/sql"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/checkgrabber/internal/checks"
	"github.com/edgard/checkgrabber/internal/create"
	"github.com/edgard/checkgrabber/internal/database"
	"github.com/edgard/checkgrabber/internal/metrics"
	"github.com/edgard/checkgrabber/internal/notify"
	"github.com/edgard/checkgrabber/internal/session"
)

// persistTimeout bounds ledger writes, which outlive a forced shutdown.
const persistTimeout = 10 * time.Second

// Redeemer runs one redemption attempt.
type Redeemer interface {
	Activate(ctx context.Context, sess session.Session, code checks.Code, target string) checks.Outcome
}

// Creator issues a new voucher and returns its share link.
type Creator interface {
	Create(ctx context.Context, sess session.Session, kind checks.Kind, target string, amount float64, currency string) (string, bool)
}

// Ledger records successful redemptions.
type Ledger interface {
	RecordRedemption(ctx context.Context, r *database.Redemption) (bool, error)
	BumpStats(ctx context.Context, accountID, botKind string, amount float64, currency string) error
}

// Notifier receives status lines.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Config tunes the coordinator.
type Config struct {
	// Targets maps each kind to the bot dialog its codes are redeemed in.
	Targets map[checks.Kind]string
	// IgnorePrivateBotChats drops messages from private chats with a target bot.
	IgnorePrivateBotChats bool
	DedupeCapacity        int

	CreateAfterActivation bool
	CreateAmount          float64
	CreateCurrency        string
	// DistributionChat receives newly created vouchers; empty disables broadcasting.
	DistributionChat string

	NotifyActivated bool
	CaptchaEnabled  bool
}

// Coordinator owns every detached task it starts. Shutdown drains them.
type Coordinator struct {
	cfg      Config
	logger   *slog.Logger
	seen     *Seen
	redeemer Redeemer
	creator  Creator
	ledger   Ledger
	notifier Notifier

	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	mu      sync.RWMutex
	closed  bool
	pending atomic.Int64
}

// New creates a Coordinator. creator and notifier may be nil.
func New(logger *slog.Logger, cfg Config, redeemer Redeemer, creator Creator, ledger Ledger, notifier Notifier) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		cfg:      cfg,
		logger:   logger.With("component", "dispatch"),
		seen:     NewSeen(cfg.DedupeCapacity),
		redeemer: redeemer,
		creator:  creator,
		ledger:   ledger,
		notifier: notifier,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// HandleEvent is a session.Handler. It never blocks on network work.
func (c *Coordinator) HandleEvent(_ context.Context, ev session.Event) {
	msg := ev.Message

	if msg.FromSelf {
		metrics.RecordMessage("ignored")
		return
	}
	if c.cfg.IgnorePrivateBotChats && msg.Private && c.isTargetBot(msg.SenderUsername) {
		metrics.RecordMessage("ignored")
		return
	}

	key := Key{AccountID: ev.Session.AccountID(), ChatID: msg.ChatID, MessageID: msg.ID}
	if !c.seen.Add(key) {
		metrics.RecordMessage("duplicate")
		return
	}

	codes := checks.Extract(msg.Content)
	if len(codes) == 0 {
		metrics.RecordMessage("no_codes")
		return
	}
	metrics.RecordMessage("codes")

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}

	for _, code := range codes {
		target := c.cfg.Targets[code.Kind]
		if target == "" {
			c.logger.Debug("No bot target for kind", "kind", code.Kind.String())
			continue
		}
		c.spawn("redeem", func(ctx context.Context) {
			c.redeem(ctx, ev.Session, code, target, msg)
		})
	}
}

func (c *Coordinator) isTargetBot(username string) bool {
	if username == "" {
		return false
	}
	for _, t := range c.cfg.Targets {
		if strings.EqualFold(t, username) {
			return true
		}
	}
	return false
}

// spawn starts fn in the task group; a panic is logged, never propagated.
func (c *Coordinator) spawn(name string, fn func(ctx context.Context)) {
	c.pending.Add(1)
	c.group.Go(func() error {
		defer c.pending.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("Task panicked", "task", name, "panic", r, "stack", string(debug.Stack()))
			}
		}()
		fn(c.ctx)
		return nil
	})
}

func (c *Coordinator) redeem(ctx context.Context, sess session.Session, code checks.Code, target string, msg session.Message) {
	log := c.logger.With(
		"attempt_id", uuid.NewString(),
		"account", sess.AccountID(),
		"kind", code.Kind.String(),
		"code", code.Value,
		"source", msg.Source(),
	)

	out := c.redeemer.Activate(ctx, sess, code, target)
	if !out.Success {
		switch out.Reason {
		case checks.ReasonCaptchaRequired:
			// Solved captchas are not fed back into the bot dialog yet.
			log.WarnContext(ctx, "Captcha required, attempt abandoned", "solver_enabled", c.cfg.CaptchaEnabled)
		case checks.ReasonRateLimited:
			log.WarnContext(ctx, "Redemption rate limited", "wait", out.Wait)
		case checks.ReasonError:
			log.WarnContext(ctx, "Redemption failed", "error", out.Message)
		default:
			log.DebugContext(ctx, "Redemption did not succeed", "outcome", out.String())
		}
		return
	}

	log.InfoContext(ctx, "Check activated", "amount", out.AmountOrZero(), "currency", out.Currency)

	c.spawn("persist", func(ctx context.Context) {
		c.persist(ctx, sess, code, out, msg)
	})
	if c.notifier != nil && c.cfg.NotifyActivated {
		c.spawn("notify", func(ctx context.Context) {
			text := notify.FormatActivated(code.Kind.String(), code.Value, out.AmountOrZero(), out.Currency, sess.AccountID(), msg.Source())
			if err := c.notifier.Notify(ctx, text); err != nil {
				log.DebugContext(ctx, "Activation notification not sent", "error", err)
			}
		})
	}
	if c.cfg.CreateAfterActivation && c.creator != nil {
		c.spawn("create", func(ctx context.Context) {
			c.createAndBroadcast(ctx, sess, code.Kind, target)
		})
	}
}

// persist writes the ledger entry and bumps stats. It survives a forced shutdown.
func (c *Coordinator) persist(ctx context.Context, sess session.Session, code checks.Code, out checks.Outcome, msg session.Message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	entry := &database.Redemption{
		CheckCode:   code.Value,
		BotKind:     code.Kind.String(),
		Currency:    out.Currency,
		ActivatedBy: sess.AccountID(),
		SourceChat:  msg.Source(),
		MessageID:   int64(msg.ID),
		Status:      database.StatusActivated,
	}
	if out.Amount != nil {
		entry.Amount = sql.NullFloat64{Float64: *out.Amount, Valid: true}
	}

	log := c.logger.With("account", sess.AccountID(), "code", code.Value)

	inserted, err := c.ledger.RecordRedemption(ctx, entry)
	switch {
	case err != nil:
		metrics.RecordLedgerWrite("error")
		log.ErrorContext(ctx, "Failed to record redemption", "error", err)
	case inserted:
		metrics.RecordLedgerWrite("inserted")
	default:
		metrics.RecordLedgerWrite("duplicate")
	}

	if err := c.ledger.BumpStats(ctx, sess.AccountID(), code.Kind.String(), out.AmountOrZero(), out.Currency); err != nil {
		log.ErrorContext(ctx, "Failed to update stats", "error", err)
	}
}

func (c *Coordinator) createAndBroadcast(ctx context.Context, sess session.Session, kind checks.Kind, target string) {
	log := c.logger.With("account", sess.AccountID(), "kind", kind.String())

	link, ok := c.creator.Create(ctx, sess, kind, target, c.cfg.CreateAmount, c.cfg.CreateCurrency)
	if !ok {
		log.WarnContext(ctx, "Failed to create voucher")
		return
	}
	log.InfoContext(ctx, "Voucher created", "link", link)

	if c.cfg.DistributionChat == "" {
		return
	}
	if err := sess.SendMessage(ctx, c.cfg.DistributionChat, create.FormatBroadcast(kind, link), false); err != nil {
		log.WarnContext(ctx, "Failed to broadcast voucher", "chat", c.cfg.DistributionChat, "error", err)
		return
	}
	log.InfoContext(ctx, "Voucher broadcast", "chat", c.cfg.DistributionChat)
}

// Pending returns the number of running tasks.
func (c *Coordinator) Pending() int64 {
	return c.pending.Load()
}

// Shutdown stops accepting events and waits for running tasks. If ctx ends
// first, the tasks are cancelled and awaited, and ctx's error is returned.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Draining dispatch tasks", "pending", c.Pending())

	done := make(chan struct{})
	go func() {
		_ = c.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.cancel()
		c.logger.InfoContext(ctx, "Dispatch tasks drained")
		return nil
	case <-ctx.Done():
		c.logger.WarnContext(ctx, "Drain timed out, cancelling tasks", "pending", c.Pending())
		c.cancel()
		<-done
		return ctx.Err()
	}
}
