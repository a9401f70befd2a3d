package model

import (
	"errors"
	"time"

	"scamwatch/internal/store"

	"github.com/google/uuid"
)

// ScamKind discriminates scam findings.
type ScamKind int

const (
	KindKeyword ScamKind = iota + 1
	KindAccount
)

// ScamType is a single reason for sanctioning a message.
type ScamType struct {
	Kind ScamKind
	// UserID is the flagged sender for KindAccount findings.
	UserID int64
}

// Keyword returns a keyword finding.
func Keyword() ScamType { return ScamType{Kind: KindKeyword} }

// Account returns a finding for a sender already flagged as a scammer.
func Account(userID int64) ScamType { return ScamType{Kind: KindAccount, UserID: userID} }

// Name is the label persisted in the stats collection.
func (s ScamType) Name() string {
	switch s.Kind {
	case KindKeyword:
		return "Keyword"
	case KindAccount:
		return "Account"
	}
	return "Unknown"
}

func (s ScamType) String() string { return s.Name() }

// Sanction is a detected scam waiting for a warning reply. It is written to
// the stats collection once handled and never read back.
type Sanction struct {
	Message   *Message
	ScamTypes []ScamType
	TraceID   string

	// Set by the responder before persisting.
	HandledAt time.Time
	Sent      bool
}

// NewSanction builds a sanction for msg. findings must not be empty.
func NewSanction(msg *Message, findings []ScamType) (*Sanction, error) {
	if msg == nil {
		return nil, errors.New("sanction without message")
	}
	if len(findings) == 0 {
		return nil, errors.New("sanction without findings")
	}
	return &Sanction{
		Message:   msg,
		ScamTypes: append([]ScamType(nil), findings...),
		TraceID:   uuid.NewString(),
	}, nil
}

// Has reports whether a finding of kind is present.
func (s *Sanction) Has(kind ScamKind) bool {
	for _, st := range s.ScamTypes {
		if st.Kind == kind {
			return true
		}
	}
	return false
}

// Names returns the persisted labels of the findings in order.
func (s *Sanction) Names() []string {
	out := make([]string, len(s.ScamTypes))
	for i, st := range s.ScamTypes {
		out[i] = st.Name()
	}
	return out
}

// CollectionName implements store.Record.
func (s *Sanction) CollectionName() string { return StatsCollection }

// RecordID implements store.Record.
func (s *Sanction) RecordID() int64 { return s.Message.ID }

// Document implements store.Record.
func (s *Sanction) Document() (store.Document, error) {
	doc, _ := s.UpdateDocument()
	doc["id"] = s.Message.ID
	return doc, nil
}

// UpdateDocument implements store.Record.
func (s *Sanction) UpdateDocument() (store.Document, error) {
	at := s.HandledAt
	if at.IsZero() {
		at = time.Now()
	}
	return store.Document{
		"message":    s.Message.ID,
		"chat_id":    s.Message.ChatID,
		"scam-types": s.Names(),
		"date":       at.Unix(),
		"sent":       s.Sent,
	}, nil
}
