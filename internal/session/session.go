// Package session defines what the redemption pipeline needs from an
// automated user session, and manages the pool of sessions for the run.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edgard/checkgrabber/internal/checks"
)

var (
	// ErrUnauthorized is returned by a Connector when the stored session is not logged in.
	ErrUnauthorized = errors.New("session is not authorized")
	// ErrNoSessions is returned when no account could be connected at startup.
	ErrNoSessions = errors.New("no usable account sessions")
)

// FloodWaitError is the platform asking the caller to back off for Wait.
type FloodWaitError struct {
	Wait time.Duration
	Err  error
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait %s", e.Wait)
}

func (e *FloodWaitError) Unwrap() error {
	return e.Err
}

// AsFloodWait reports whether err carries a backoff request and for how long.
func AsFloodWait(err error) (time.Duration, bool) {
	var fw *FloodWaitError
	if errors.As(err, &fw) {
		return fw.Wait, true
	}
	return 0, false
}

// Message is a chat message as seen by one account.
type Message struct {
	ID        int
	ChatID    int64
	ChatTitle string
	Private   bool

	FromBot        bool
	FromSelf       bool
	SenderUsername string

	checks.Content
}

// Source names the chat a message came from, for the ledger.
func (m Message) Source() string {
	if m.ChatTitle != "" {
		return m.ChatTitle
	}
	return fmt.Sprintf("%d", m.ChatID)
}

// Session is one connected automated account.
type Session interface {
	// AccountID identifies the account in logs, rate windows and the ledger.
	AccountID() string
	// SendMessage sends text to target (a username or numeric chat id).
	// A platform backoff is reported as *FloodWaitError.
	SendMessage(ctx context.Context, target, text string, silent bool) error
	// RecentHistory returns up to limit messages of the dialog with target, newest first.
	RecentHistory(ctx context.Context, target string, limit int) ([]Message, error)
}

// Event is a new or edited message delivered to one account.
type Event struct {
	Session Session
	Message Message
	Edited  bool
}

// Handler consumes events. It must not block on network work.
type Handler func(ctx context.Context, ev Event)
