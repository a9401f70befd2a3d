package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"scamwatch/internal/model"
	"scamwatch/internal/store"
)

// ccMarker is the exact message text treated as a scam marker on its own.
const ccMarker = "CC"

// escortMarker flags usernames of new accounts.
const escortMarker = "ESCORT"

// Classifier decides which messages are worth analysing and why they are scams.
type Classifier struct {
	store   store.Store
	lists   Lists
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// New returns a classifier. Messages older than timeout are never threats.
func New(st store.Store, lists Lists, timeout time.Duration, logger *slog.Logger) *Classifier {
	return &Classifier{
		store:   st,
		lists:   lists,
		timeout: timeout,
		now:     time.Now,
		logger:  logger.With("component", "classifier"),
	}
}

// SetClock replaces the time source.
func (c *Classifier) SetClock(now func() time.Time) {
	c.now = now
}

// IsThreat reports whether msg should be analysed. Checks run in order:
// outgoing, sender bypass, staleness.
func (c *Classifier) IsThreat(ctx context.Context, msg *model.Message) bool {
	if msg.Outgoing {
		c.logger.Debug("outgoing message ignored", "message_id", msg.ID)
		return false
	}

	if msg.SenderID != 0 {
		user, err := c.user(ctx, msg.SenderID)
		if err != nil {
			c.logger.Warn("bypass lookup failed", "user_id", msg.SenderID, "error", err)
		} else if user != nil && user.Bypass {
			c.logger.Info("sender is bypassed", "message_id", msg.ID, "user_id", msg.SenderID)
			return false
		}
	}

	if age := c.now().Sub(msg.Date); age >= c.timeout {
		c.logger.Info("message too old", "message_id", msg.ID, "age", age.Round(time.Second), "timeout", c.timeout)
		return false
	}
	return true
}

// Analyse returns the scam findings for msg. When a lookup fails the findings
// gathered so far are returned together with the error.
func (c *Classifier) Analyse(ctx context.Context, msg *model.Message) ([]model.ScamType, error) {
	var (
		findings []model.ScamType
		errs     []error
	)

	if text := msg.Text(); text != "" {
		matched, err := c.keywordMatch(ctx, Normalize(text))
		if err != nil {
			errs = append(errs, err)
		}
		if matched != "" {
			c.logger.Info("keyword found", "message_id", msg.ID, "chat_id", msg.ChatID, "match", matched)
			findings = append(findings, model.Keyword())
		}
	}

	if msg.SenderID != 0 {
		user, err := c.user(ctx, msg.SenderID)
		if err != nil {
			errs = append(errs, err)
		} else if user != nil && user.Scam {
			c.logger.Info("sender is a known scammer", "message_id", msg.ID, "user_id", msg.SenderID)
			findings = append(findings, model.Account(msg.SenderID))
		}
	}

	return findings, errors.Join(errs...)
}

// keywordMatch returns a description of the first match in text, "" if none.
func (c *Classifier) keywordMatch(ctx context.Context, text string) (string, error) {
	if text == ccMarker {
		return ccMarker, nil
	}
	kw, err := c.lists.Keywords(ctx)
	if err != nil {
		return "", err
	}
	for _, lang := range []struct {
		code  string
		words []string
	}{
		{"fr", kw.FR},
		{"en", kw.EN},
		{"de", kw.DE},
	} {
		for _, word := range lang.words {
			if strings.Contains(text, word) {
				return lang.code + ":" + word, nil
			}
		}
	}
	return "", nil
}

// IsNewUserScam applies the identity heuristics to a user not yet flagged.
func (c *Classifier) IsNewUserScam(ctx context.Context, u *model.User) bool {
	username := Normalize(u.Username)
	first := Normalize(strings.TrimSpace(u.FirstName))
	last := Normalize(strings.TrimSpace(u.LastName))

	if strings.Contains(username, escortMarker) {
		c.logger.Info("username flagged", "user_id", u.ID, "rule", "escort")
		return true
	}

	// Accounts without any name, deleted ones included, match too.
	if first == last {
		c.logger.Info("username flagged", "user_id", u.ID, "rule", "first_equals_last")
		return true
	}

	names, err := c.lists.ForbiddenNames(ctx)
	if err != nil {
		c.logger.Warn("forbidden names unavailable", "user_id", u.ID, "error", err)
		return false
	}
	for _, name := range names {
		if strings.Contains(first, name) || strings.Contains(last, name) {
			c.logger.Info("username flagged", "user_id", u.ID, "rule", "forbidden_name", "name", name)
			return true
		}
	}
	return false
}

func (c *Classifier) user(ctx context.Context, id int64) (*model.User, error) {
	doc, found, err := c.store.Get(ctx, model.UsersCollection, id)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return model.UserFromDocument(doc), nil
}
