// Package handlers contains the control bot's command handlers, their
// registration and middleware.
package handlers

import (
	"log/slog"

	"github.com/edgard/checkgrabber/internal/database"
	"github.com/edgard/checkgrabber/internal/session"
)

// SessionLister exposes the connected account sessions.
type SessionLister interface {
	Sessions() []session.Session
}

// HandlerDeps provides dependencies for control bot handlers.
type HandlerDeps struct {
	Logger      *slog.Logger
	Store       database.Store
	Sessions    SessionLister
	AdminUserID int64
}

const (
	msgWelcome       = "👋 Check grabber control bot. Use /help to list commands."
	msgHelp          = "/stats - totals per bot kind\n/accounts - per-account counters\n/sessions - connected accounts"
	msgNotAuthorized = "🚫 Access denied."
	msgGeneralError  = "❌ Something went wrong, see the logs."
)
