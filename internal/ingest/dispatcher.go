package ingest

import (
	"context"
	"log/slog"
	"time"

	"scamwatch/internal/metrics"
	"scamwatch/internal/model"
	"scamwatch/internal/store"
)

const releaseTimeout = 5 * time.Second

// Classifier is the scam logic the dispatcher relies on.
type Classifier interface {
	IsThreat(ctx context.Context, msg *model.Message) bool
	Analyse(ctx context.Context, msg *model.Message) ([]model.ScamType, error)
	IsNewUserScam(ctx context.Context, user *model.User) bool
}

// UserRequester asks the platform for the full profile of a message sender.
// The call must not block: the profile arrives later through HandleUser.
type UserRequester interface {
	RequestUser(ctx context.Context, msg *model.Message)
}

// SanctionQueue accepts detected sanctions for the responder.
type SanctionQueue interface {
	Push(ctx context.Context, s *model.Sanction) error
}

// Deps groups the collaborators of a Dispatcher. Requester, Deduper and
// Metrics are optional.
type Deps struct {
	Store      store.Store
	Classifier Classifier
	Queue      SanctionQueue
	Requester  UserRequester
	Deduper    Deduper
	Metrics    *metrics.Metrics
}

// Dispatcher turns platform updates into stored records and sanctions.
// Handlers never return errors: failures are logged and the update is
// considered handled.
type Dispatcher struct {
	store      store.Store
	classifier Classifier
	queue      SanctionQueue
	requester  UserRequester
	deduper    Deduper
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// New creates a dispatcher.
func New(deps Deps, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:      deps.Store,
		classifier: deps.Classifier,
		queue:      deps.Queue,
		requester:  deps.Requester,
		deduper:    deps.Deduper,
		metrics:    deps.Metrics,
		logger:     logger.With("component", "dispatcher"),
	}
}

// HandleMessage processes a new inbound message.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg *model.Message) {
	d.metrics.Update("message")
	logger := d.logger.With("message_id", msg.ID, "chat_id", msg.ChatID, "sender_id", msg.SenderID)

	if msg.SenderID != 0 && !msg.Outgoing {
		d.requestIfUnknown(ctx, logger, msg)
	}

	if !d.classifier.IsThreat(ctx, msg) {
		return
	}

	findings, err := d.classifier.Analyse(ctx, msg)
	if err != nil {
		d.metrics.Error("classifier")
		logger.Warn("analysis incomplete", "error", err)
	}
	for _, f := range findings {
		d.metrics.Finding(f.Name())
	}

	msg.MarkFindings(findings)
	if err := d.store.Save(ctx, msg); err != nil {
		d.metrics.Error("store")
		logger.Error("failed saving message", "error", err)
	}

	if len(findings) == 0 {
		return
	}

	if !model.IsGroup(msg.ChatID) {
		logger.Info("scam detected in private chat, no sanction", "scam_types", scamNames(findings))
		return
	}

	claimed := false
	if d.deduper != nil {
		var err error
		claimed, err = d.deduper.Claim(ctx, msg.ChatID, msg.ID)
		switch {
		case err != nil:
			claimed = false
			d.metrics.Error("dedupe")
			logger.Warn("sanction claim failed, enqueueing anyway", "error", err)
		case !claimed:
			d.metrics.Sanction("deduplicated")
			logger.Info("message already sanctioned")
			return
		}
	}

	sanction, err := model.NewSanction(msg, findings)
	if err != nil {
		logger.Error("failed building sanction", "error", err)
		return
	}
	if err := d.queue.Push(ctx, sanction); err != nil {
		logger.Warn("sanction not enqueued", "trace_id", sanction.TraceID, "error", err)
		if claimed {
			d.release(ctx, logger, msg)
		}
		return
	}
	logger.Info("sanction enqueued", "trace_id", sanction.TraceID, "scam_types", sanction.Names())
}

// release frees the claim so a replay of the message can be sanctioned. It
// runs even when ctx is done, since a cancelled push is one of the causes.
func (d *Dispatcher) release(ctx context.Context, logger *slog.Logger, msg *model.Message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := d.deduper.Release(ctx, msg.ChatID, msg.ID); err != nil {
		d.metrics.Error("dedupe")
		logger.Warn("failed releasing sanction claim", "error", err)
	}
}

func (d *Dispatcher) requestIfUnknown(ctx context.Context, logger *slog.Logger, msg *model.Message) {
	_, found, err := d.store.Get(ctx, model.UsersCollection, msg.SenderID)
	if err != nil {
		d.metrics.Error("store")
		logger.Warn("sender lookup failed", "error", err)
		return
	}
	if found || d.requester == nil {
		return
	}
	logger.Debug("unknown sender, requesting profile")
	d.requester.RequestUser(ctx, msg)
}

// HandleChat stores a chat the first time it is seen.
func (d *Dispatcher) HandleChat(ctx context.Context, chat *model.Chat) {
	d.metrics.Update("chat")
	logger := d.logger.With("chat_id", chat.ID)

	_, found, err := d.store.Get(ctx, model.ChatsCollection, chat.ID)
	if err != nil {
		d.metrics.Error("store")
		logger.Error("chat lookup failed", "error", err)
		return
	}
	if found {
		return
	}
	if err := d.store.Save(ctx, chat); err != nil {
		d.metrics.Error("store")
		logger.Error("failed saving chat", "error", err)
		return
	}
	logger.Info("new chat", "title", chat.Title, "type", chat.Type)
}

// HandleUser stores a new user or merges a fresh observation into the known one.
func (d *Dispatcher) HandleUser(ctx context.Context, fresh *model.User) {
	d.metrics.Update("user")
	logger := d.logger.With("user_id", fresh.ID)

	doc, found, err := d.store.Get(ctx, model.UsersCollection, fresh.ID)
	if err != nil {
		d.metrics.Error("store")
		logger.Error("user lookup failed", "error", err)
		return
	}

	user := fresh
	if found {
		user = model.UserFromDocument(doc)
		user.ID = fresh.ID
		if !user.Scam && !user.Bypass {
			user.Scam = d.classifier.IsNewUserScam(ctx, fresh)
		}
		user.Merge(fresh)
	} else {
		user.Bypass = false
		user.Scam = d.classifier.IsNewUserScam(ctx, fresh)
	}

	if err := d.store.Save(ctx, user); err != nil {
		d.metrics.Error("store")
		logger.Error("failed saving user", "error", err)
		return
	}
	if user.Scam {
		logger.Info("user flagged as scammer", "username", user.Username, "first_name", user.FirstName, "last_name", user.LastName)
	}
}

func scamNames(findings []model.ScamType) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.Name()
	}
	return out
}
