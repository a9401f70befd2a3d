package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"scamwatch/internal/metrics"
	"scamwatch/internal/model"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/updates"
	updhook "github.com/gotd/td/telegram/updates/hook"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const userLookupTimeout = 30 * time.Second

// Handler receives the platform updates the pipeline cares about.
type Handler interface {
	HandleMessage(ctx context.Context, msg *model.Message)
	HandleChat(ctx context.Context, chat *model.Chat)
	HandleUser(ctx context.Context, user *model.User)
}

// Config holds the settings of the MTProto client.
type Config struct {
	AppID       int
	AppHash     string
	SessionPath string
	// Workers bounds the number of updates handled concurrently.
	Workers int
	Metrics *metrics.Metrics
	// UpdateState keeps the update sequence across restarts. When nil the
	// sequence lives in memory and only reconnect gaps are recovered.
	UpdateState *UpdateState
}

// Client wraps the gotd user client.
type Client struct {
	client        *telegram.Client
	api           *tg.Client
	gaps          *updates.Manager
	sender        *message.Sender
	authenticator auth.UserAuthenticator
	authz         *Authorization
	peers         *peerCache
	workers       *semaphore.Weighted
	handler       Handler
	selfID        atomic.Int64
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// New creates a client. The session is persisted at cfg.SessionPath.
func New(cfg Config, authenticator auth.UserAuthenticator, authz *Authorization, logger *slog.Logger, zapLogger *zap.Logger) (*Client, error) {
	if cfg.AppID == 0 || cfg.AppHash == "" {
		return nil, errors.New("telegram app id and hash are required")
	}
	if cfg.SessionPath == "" {
		return nil, errors.New("telegram session path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.SessionPath), 0o700); err != nil {
		return nil, fmt.Errorf("ensure session dir: %w", err)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}

	c := &Client{
		authenticator: authenticator,
		authz:         authz,
		peers:         newPeerCache(),
		workers:       semaphore.NewWeighted(int64(cfg.Workers)),
		metrics:       cfg.Metrics,
		logger:        logger.With("component", "telegram"),
	}

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		c.onMessage(ctx, e, u.Message)
		return nil
	})
	dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		c.onMessage(ctx, e, u.Message)
		return nil
	})

	gapsCfg := updates.Config{
		Handler: dispatcher,
		Logger:  zapLogger.Named("updates"),
	}
	if cfg.UpdateState != nil {
		gapsCfg.Storage = cfg.UpdateState
		gapsCfg.AccessHasher = cfg.UpdateState
	}
	c.gaps = updates.New(gapsCfg)

	c.client = telegram.NewClient(cfg.AppID, cfg.AppHash, telegram.Options{
		Logger:         zapLogger,
		SessionStorage: &session.FileStorage{Path: cfg.SessionPath},
		UpdateHandler:  c.gaps,
		Middlewares:    []telegram.Middleware{updhook.UpdateHook(c.gaps.Handle)},
	})
	c.api = c.client.API()
	c.sender = message.NewSender(c.api)

	return c, nil
}

// SetHandler registers the update handler. It must be called before Run.
func (c *Client) SetHandler(h Handler) {
	c.handler = h
}

// Run connects, authorizes if needed and blocks until ctx is cancelled.
// Updates missed while offline are fetched again before live ones.
func (c *Client) Run(ctx context.Context) error {
	if c.handler == nil {
		return errors.New("telegram handler not set")
	}
	err := c.client.Run(ctx, func(ctx context.Context) error {
		c.authz.Set(AuthPending)
		flow := auth.NewFlow(c.authenticator, auth.SendCodeOptions{})
		if err := c.client.Auth().IfNecessary(ctx, flow); err != nil {
			c.authz.Set(AuthFailed)
			return clientErr("auth", err)
		}

		self, err := c.client.Self(ctx)
		if err != nil {
			c.authz.Set(AuthFailed)
			return clientErr("self", err)
		}
		c.selfID.Store(self.ID)

		return c.gaps.Run(ctx, c.api, self.ID, updates.AuthOptions{
			OnStart: func(context.Context) {
				c.authz.Set(AuthReady)
				c.logger.Info("telegram client authorized", "user_id", self.ID, "username", self.Username)
			},
		})
	})
	c.authz.Set(AuthClosed)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *Client) onMessage(ctx context.Context, e tg.Entities, raw tg.MessageClass) {
	msg, ok := raw.(*tg.Message)
	if !ok {
		return
	}

	changed := c.peers.learn(e)
	users := make([]*model.User, 0, len(changed))
	for _, u := range changed {
		users = append(users, userFromTG(u))
	}
	chat := chatFromEntities(e, msg.PeerID)
	m := messageFromTG(msg, c.selfID.Load())

	if err := c.workers.Acquire(ctx, 1); err != nil {
		c.logger.Warn("update dropped on shutdown", "message_id", m.ID, "chat_id", m.ChatID)
		return
	}
	go func() {
		defer c.workers.Release(1)
		for _, u := range users {
			c.handler.HandleUser(ctx, u)
		}
		if chat != nil {
			c.handler.HandleChat(ctx, chat)
		}
		c.handler.HandleMessage(ctx, m)
	}()
}

// RequestUser fetches the profile of the sender of msg in the background and
// hands it to the handler.
func (c *Client) RequestUser(ctx context.Context, msg *model.Message) {
	input, err := c.inputUser(msg)
	if err != nil {
		c.logger.Warn("cannot address user", "user_id", msg.SenderID, "error", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(ctx, userLookupTimeout)
		defer cancel()

		users, err := c.api.UsersGetUsers(ctx, []tg.InputUserClass{input})
		if err != nil {
			c.metrics.Error("telegram")
			c.logger.Warn("user lookup failed", "user_id", msg.SenderID, "error", clientErr("users.getUsers", err))
			return
		}
		for _, raw := range users {
			if u, ok := raw.(*tg.User); ok {
				c.handler.HandleUser(ctx, userFromTG(u))
			}
		}
	}()
}

func (c *Client) inputUser(msg *model.Message) (tg.InputUserClass, error) {
	if hash, ok := c.peers.userHash(msg.SenderID); ok {
		return &tg.InputUser{UserID: msg.SenderID, AccessHash: hash}, nil
	}
	peer, err := c.peers.inputPeer(msg.ChatID)
	if err != nil {
		return nil, err
	}
	return &tg.InputUserFromMessage{Peer: peer, MsgID: int(msg.ID), UserID: msg.SenderID}, nil
}

// SendReply posts text as a reply to replyToID in chatID, with the draft
// cleared and link previews disabled.
func (c *Client) SendReply(ctx context.Context, chatID, replyToID int64, text string) error {
	peer, err := c.peers.inputPeer(chatID)
	if err != nil {
		return clientErr("send", err)
	}
	if _, err := c.sender.To(peer).Reply(int(replyToID)).NoWebpage().Clear().Text(ctx, text); err != nil {
		c.metrics.Error("telegram")
		return clientErr("send", err)
	}
	return nil
}
