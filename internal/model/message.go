package model

import (
	"time"

	"scamwatch/internal/store"
)

// Collection names used by the pipeline.
const (
	MessagesCollection = "messages"
	UsersCollection    = "users"
	ChatsCollection    = "chats"
	ConfigCollection   = "config"
	StatsCollection    = "stats"
)

// ContentType tags the kind of payload a message carried.
type ContentType string

const (
	ContentText        ContentType = "MessageText"
	ContentPhoto       ContentType = "MessagePhoto"
	ContentVideo       ContentType = "MessageVideo"
	ContentAnimation   ContentType = "MessageAnimation"
	ContentAudio       ContentType = "MessageAudio"
	ContentVoiceNote   ContentType = "MessageVoiceNote"
	ContentVideoNote   ContentType = "MessageVideoNote"
	ContentDocument    ContentType = "MessageDocument"
	ContentSticker     ContentType = "MessageSticker"
	ContentContact     ContentType = "MessageContact"
	ContentLocation    ContentType = "MessageLocation"
	ContentVenue       ContentType = "MessageVenue"
	ContentPoll        ContentType = "MessagePoll"
	ContentDice        ContentType = "MessageDice"
	ContentGame        ContentType = "MessageGame"
	ContentInvoice     ContentType = "MessageInvoice"
	ContentUnsupported ContentType = "MessageUnsupported"
	ContentNone        ContentType = "None"
)

// HasText reports whether the content type carries analysable text.
func (c ContentType) HasText() bool {
	switch c {
	case ContentText, ContentPhoto, ContentVideo:
		return true
	}
	return false
}

// Message is an inbound chat message as stored in the messages collection.
type Message struct {
	ID                int64
	SenderID          int64
	ChatID            int64
	Date              time.Time
	EditDate          time.Time
	RestrictionReason string
	Type              ContentType
	Content           string
	Extra             []string
	IsScam            bool
	Trigger           bool

	// Outgoing is set for messages sent by the account itself. It is not stored.
	Outgoing bool
}

// Text returns the text or caption of the message, "" for other content types.
func (m *Message) Text() string {
	if !m.Type.HasText() {
		return ""
	}
	return m.Content
}

// MarkFindings records the outcome of the analysis on the message.
func (m *Message) MarkFindings(findings []ScamType) {
	m.Trigger = len(findings) > 0
	m.IsScam = false
	for _, f := range findings {
		if f.Kind == KindKeyword {
			m.IsScam = true
		}
	}
}

// Merge refreshes the content from a newer observation of the same message.
func (m *Message) Merge(fresh *Message) {
	m.Content = fresh.Content
}

// CollectionName implements store.Record.
func (m *Message) CollectionName() string { return MessagesCollection }

// RecordID implements store.Record.
func (m *Message) RecordID() int64 { return m.ID }

// Document implements store.Record.
func (m *Message) Document() (store.Document, error) {
	doc, _ := m.UpdateDocument()
	doc["id"] = m.ID
	return doc, nil
}

// UpdateDocument implements store.Record.
func (m *Message) UpdateDocument() (store.Document, error) {
	extra := m.Extra
	if extra == nil {
		extra = []string{}
	}
	return store.Document{
		"sender":             m.SenderID,
		"chat_id":            m.ChatID,
		"date":               unixSeconds(m.Date),
		"edit_date":          unixSeconds(m.EditDate),
		"restriction_reason": m.RestrictionReason,
		"type":               string(m.Type),
		"content":            m.Content,
		"extra":              extra,
		"is_scam":            m.IsScam,
		"trigger":            m.Trigger,
	}, nil
}

// MessageFromDocument decodes a stored message.
func MessageFromDocument(doc store.Document) *Message {
	id, _ := doc.Int64("id")
	sender, _ := doc.Int64("sender")
	chatID, _ := doc.Int64("chat_id")
	date, _ := doc.Int64("date")
	edit, _ := doc.Int64("edit_date")
	return &Message{
		ID:                id,
		SenderID:          sender,
		ChatID:            chatID,
		Date:              fromUnix(date),
		EditDate:          fromUnix(edit),
		RestrictionReason: doc.String("restriction_reason"),
		Type:              ContentType(doc.String("type")),
		Content:           doc.String("content"),
		Extra:             doc.Strings("extra"),
		IsScam:            doc.Bool("is_scam"),
		Trigger:           doc.Bool("trigger"),
	}
}

func unixSeconds(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
