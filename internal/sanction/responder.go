package sanction

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"scamwatch/internal/metrics"
	"scamwatch/internal/model"
	"scamwatch/internal/store"

	"golang.org/x/time/rate"
)

// Sender delivers a reply to a message.
type Sender interface {
	SendReply(ctx context.Context, chatID, replyToID int64, text string) error
}

// Config tunes the responder.
type Config struct {
	// Send enables live mode. When false replies are only logged.
	Send    bool
	MinWait time.Duration
	MaxWait time.Duration
	// MaxPerMinute caps live replies. Zero disables the cap.
	MaxPerMinute int
}

// Responder is the single consumer of the sanction queue. It replies to one
// sanction at a time after a randomised delay, then records it.
type Responder struct {
	queue   *Queue
	sender  Sender
	store   store.Store
	texts   Texts
	cfg     Config
	limiter *rate.Limiter
	metrics *metrics.Metrics
	logger  *slog.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	randN  func(n int64) int64
	now    func() time.Time
	onDone func(*model.Sanction)
}

// NewResponder creates a responder draining q.
func NewResponder(q *Queue, sender Sender, st store.Store, texts Texts, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Responder {
	if cfg.MaxWait < cfg.MinWait {
		cfg.MaxWait = cfg.MinWait
	}
	r := &Responder{
		queue:   q,
		sender:  sender,
		store:   st,
		texts:   texts,
		cfg:     cfg,
		metrics: m,
		logger:  logger.With("component", "responder"),
		sleep:   sleepCtx,
		randN:   rand.Int64N,
		now:     time.Now,
	}
	if cfg.MaxPerMinute > 0 {
		r.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.MaxPerMinute)), 1)
	}
	return r
}

// Delay draws the wait applied before a reply, uniformly in [MinWait, MaxWait].
func (r *Responder) Delay() time.Duration {
	span := r.cfg.MaxWait - r.cfg.MinWait
	if span <= 0 {
		return r.cfg.MinWait
	}
	return r.cfg.MinWait + time.Duration(r.randN(int64(span)+1))
}

// Run handles sanctions until ctx is cancelled.
func (r *Responder) Run(ctx context.Context) error {
	mode := "dry-run"
	if r.cfg.Send {
		mode = "live"
	}
	r.logger.Info("responder started", "mode", mode, "min_wait", r.cfg.MinWait, "max_wait", r.cfg.MaxWait)

	for {
		s, err := r.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				r.logger.Info("responder stopped", "pending", r.queue.Len())
				return nil
			}
			return err
		}
		r.Handle(ctx, s)
	}
}

// persistTimeout bounds the final save, which outlives a shutdown that lands
// after the reply went out.
const persistTimeout = 10 * time.Second

// Handle replies to a single sanction and persists it. Failures are logged.
func (r *Responder) Handle(ctx context.Context, s *model.Sanction) {
	logger := r.logger.With(
		"trace_id", s.TraceID,
		"message_id", s.Message.ID,
		"chat_id", s.Message.ChatID,
		"scam_types", s.Names(),
	)

	text := r.texts.Compose(s)

	delay := r.Delay()
	r.metrics.ObserveDelay(delay)
	logger.Info("waiting before reply", "delay", delay)
	if err := r.sleep(ctx, delay); err != nil {
		logger.Warn("sanction abandoned on shutdown", "error", err)
		return
	}

	if r.cfg.Send {
		s.Sent = r.send(ctx, logger, s, text)
	} else {
		r.metrics.Sanction("dry_run")
		logger.Info("dry run, reply not sent")
		logger.Debug("reply text", "text", text)
	}

	s.HandledAt = r.now()
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := r.store.Save(saveCtx, s); err != nil {
		r.metrics.Error("responder")
		logger.Error("failed saving sanction", "error", err)
	}

	if r.onDone != nil {
		r.onDone(s)
	}
}

func (r *Responder) send(ctx context.Context, logger *slog.Logger, s *model.Sanction, text string) bool {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			logger.Warn("send rate limiter interrupted", "error", err)
			return false
		}
	}
	if err := r.sender.SendReply(ctx, s.Message.ChatID, s.Message.ID, text); err != nil {
		r.metrics.Sanction("send_failed")
		logger.Error("failed sending reply", "error", err)
		return false
	}
	r.metrics.Sanction("sent")
	logger.Info("reply sent")
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
