// Package mtproto connects automated user accounts over MTProto using gotd/td
// and adapts them to the session contracts used by the redemption pipeline.
package mtproto

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message"
	tdsession "github.com/gotd/td/session"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/edgard/checkgrabber/internal/checks"
	"github.com/edgard/checkgrabber/internal/session"
)

// channelIDOffset turns an MTProto channel id into the Bot-API style chat id.
const channelIDOffset = -1000000000000

// Connector opens gotd clients backed by file session storage. Sessions must
// already be authorized; interactive login is not performed.
type Connector struct {
	SessionsDir string
	Logger      *slog.Logger
}

var _ session.Connector = (*Connector)(nil)

// Connect implements session.Connector.
func (c *Connector) Connect(ctx context.Context, acc session.Account, handler session.Handler, ready func(session.Session)) error {
	if err := os.MkdirAll(c.SessionsDir, 0o700); err != nil {
		return fmt.Errorf("failed to create sessions dir: %w", err)
	}

	log := c.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "mtproto", "session", acc.SessionName)

	dispatcher := tg.NewUpdateDispatcher()
	client := telegram.NewClient(acc.AppID, acc.AppHash, telegram.Options{
		SessionStorage: &tdsession.FileStorage{Path: filepath.Join(c.SessionsDir, acc.SessionName+".json")},
		UpdateHandler:  dispatcher,
	})

	return client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get auth status: %w", err)
		}
		if !status.Authorized {
			return fmt.Errorf("%w: %s", session.ErrUnauthorized, acc.Name())
		}

		self, err := client.Self(ctx)
		if err != nil {
			return fmt.Errorf("failed to get self: %w", err)
		}

		s := newSession(acc, self, client.API())
		s.bindUpdates(dispatcher, handler)
		log.Debug("MTProto client authorized", "user_id", self.ID, "username", self.Username)

		ready(s)

		<-ctx.Done()
		return ctx.Err()
	})
}

// Session is a connected gotd client.
type Session struct {
	accountID string
	selfID    int64
	api       *tg.Client
	sender    *message.Sender

	mu    sync.Mutex
	peers map[string]tg.InputPeerClass
}

var _ session.Session = (*Session)(nil)

func newSession(acc session.Account, self *tg.User, api *tg.Client) *Session {
	return &Session{
		accountID: fmt.Sprintf("%s (%d)", acc.Name(), self.ID),
		selfID:    self.ID,
		api:       api,
		sender:    message.NewSender(api),
		peers:     make(map[string]tg.InputPeerClass),
	}
}

// AccountID implements session.Session.
func (s *Session) AccountID() string {
	return s.accountID
}

// SendMessage implements session.Session.
func (s *Session) SendMessage(ctx context.Context, target, text string, silent bool) error {
	peer, err := s.resolve(ctx, target)
	if err != nil {
		return err
	}

	builder := &s.sender.To(peer).Builder
	if silent {
		builder = builder.Silent()
	}
	if _, err := builder.Text(ctx, text); err != nil {
		return wrapRPC(err, "send message")
	}
	return nil
}

// RecentHistory implements session.Session.
func (s *Session) RecentHistory(ctx context.Context, target string, limit int) ([]session.Message, error) {
	peer, err := s.resolve(ctx, target)
	if err != nil {
		return nil, err
	}

	res, err := s.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{Peer: peer, Limit: limit})
	if err != nil {
		return nil, wrapRPC(err, "get history")
	}

	var (
		msgs  []tg.MessageClass
		users []tg.UserClass
	)
	switch r := res.(type) {
	case *tg.MessagesMessages:
		msgs, users = r.Messages, r.Users
	case *tg.MessagesMessagesSlice:
		msgs, users = r.Messages, r.Users
	case *tg.MessagesChannelMessages:
		msgs, users = r.Messages, r.Users
	default:
		return nil, nil
	}

	ents := entities{users: make(map[int64]*tg.User, len(users))}
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			ents.users[user.ID] = user
		}
	}

	out := make([]session.Message, 0, len(msgs))
	for _, m := range msgs {
		if msg, ok := convert(ents, m); ok {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (s *Session) resolve(ctx context.Context, target string) (tg.InputPeerClass, error) {
	s.mu.Lock()
	peer, ok := s.peers[target]
	s.mu.Unlock()
	if ok {
		return peer, nil
	}

	var err error
	if id, convErr := strconv.ParseInt(target, 10, 64); convErr == nil {
		peer, err = s.sender.To(chatPeer(id)).AsInputPeer(ctx)
	} else {
		peer, err = s.sender.Resolve(strings.TrimPrefix(target, "@")).AsInputPeer(ctx)
	}
	if err != nil {
		return nil, wrapRPC(err, "resolve "+target)
	}

	s.mu.Lock()
	s.peers[target] = peer
	s.mu.Unlock()
	return peer, nil
}

// chatPeer maps a Bot-API style numeric chat id onto an input peer.
// Channel access hashes are not known here, so only basic groups resolve without a lookup.
func chatPeer(id int64) tg.InputPeerClass {
	switch {
	case id < channelIDOffset:
		return &tg.InputPeerChannel{ChannelID: channelIDOffset - id}
	case id < 0:
		return &tg.InputPeerChat{ChatID: -id}
	default:
		return &tg.InputPeerUser{UserID: id}
	}
}

func (s *Session) bindUpdates(d tg.UpdateDispatcher, handler session.Handler) {
	emit := func(ctx context.Context, e tg.Entities, m tg.MessageClass, edited bool) error {
		msg, ok := convert(entities{users: e.Users, chats: e.Chats, channels: e.Channels}, m)
		if !ok {
			return nil
		}
		handler(ctx, session.Event{Session: s, Message: msg, Edited: edited})
		return nil
	}

	d.OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		return emit(ctx, e, u.Message, false)
	})
	d.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		return emit(ctx, e, u.Message, false)
	})
	d.OnEditMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateEditMessage) error {
		return emit(ctx, e, u.Message, true)
	})
	d.OnEditChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateEditChannelMessage) error {
		return emit(ctx, e, u.Message, true)
	})
}

func wrapRPC(err error, op string) error {
	if d, ok := tgerr.AsFloodWait(err); ok {
		return &session.FloodWaitError{Wait: d, Err: err}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

type entities struct {
	users    map[int64]*tg.User
	chats    map[int64]*tg.Chat
	channels map[int64]*tg.Channel
}

func convert(e entities, m tg.MessageClass) (session.Message, bool) {
	msg, ok := m.(*tg.Message)
	if !ok {
		return session.Message{}, false
	}

	out := session.Message{ID: msg.ID, FromSelf: msg.Out}
	if msg.Media != nil {
		out.Caption = msg.Message
	} else {
		out.Text = msg.Message
	}

	var senderID int64
	switch p := msg.PeerID.(type) {
	case *tg.PeerUser:
		out.ChatID = p.UserID
		out.Private = true
		if u, ok := e.users[p.UserID]; ok {
			out.ChatTitle = u.Username
		}
		if !msg.Out {
			senderID = p.UserID
		}
	case *tg.PeerChat:
		out.ChatID = -p.ChatID
		if c, ok := e.chats[p.ChatID]; ok {
			out.ChatTitle = c.Title
		}
	case *tg.PeerChannel:
		out.ChatID = channelIDOffset - p.ChannelID
		if c, ok := e.channels[p.ChannelID]; ok {
			out.ChatTitle = c.Title
		}
	}
	if from, ok := msg.GetFromID(); ok {
		if pu, ok := from.(*tg.PeerUser); ok {
			senderID = pu.UserID
		}
	}
	if u, ok := e.users[senderID]; ok && senderID != 0 {
		out.FromBot = u.Bot
		out.FromSelf = out.FromSelf || u.Self
		out.SenderUsername = u.Username
	}

	if markup, ok := msg.ReplyMarkup.(*tg.ReplyInlineMarkup); ok {
		for _, row := range markup.Rows {
			var buttons []checks.Button
			for _, b := range row.Buttons {
				switch btn := b.(type) {
				case *tg.KeyboardButtonURL:
					buttons = append(buttons, checks.Button{Text: btn.Text, URL: btn.URL})
				case *tg.KeyboardButtonCallback:
					buttons = append(buttons, checks.Button{Text: btn.Text})
				case *tg.KeyboardButton:
					buttons = append(buttons, checks.Button{Text: btn.Text})
				}
			}
			out.Buttons = append(out.Buttons, buttons)
		}
	}
	return out, true
}
