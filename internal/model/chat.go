package model

import "scamwatch/internal/store"

// ChatType is the kind of conversation.
type ChatType string

const (
	ChatBasicGroup ChatType = "BasicGroup"
	ChatPrivate    ChatType = "Private"
	ChatSupergroup ChatType = "Supergroup"
	ChatChannel    ChatType = "Channel"
	ChatUnknown    ChatType = "Unknown"
)

// Chat is a conversation as stored in the chats collection.
type Chat struct {
	ID    int64
	Title string
	Type  ChatType
}

// IsGroup reports whether id denotes a group or channel.
func IsGroup(chatID int64) bool {
	return chatID < 0
}

// Merge refreshes the title.
func (c *Chat) Merge(fresh *Chat) {
	c.Title = fresh.Title
}

// CollectionName implements store.Record.
func (c *Chat) CollectionName() string { return ChatsCollection }

// RecordID implements store.Record.
func (c *Chat) RecordID() int64 { return c.ID }

// Document implements store.Record.
func (c *Chat) Document() (store.Document, error) {
	return store.Document{
		"id":    c.ID,
		"title": c.Title,
		"type":  string(c.Type),
	}, nil
}

// UpdateDocument implements store.Record.
func (c *Chat) UpdateDocument() (store.Document, error) {
	return store.Document{"title": c.Title}, nil
}

// ChatFromDocument decodes a stored chat.
func ChatFromDocument(doc store.Document) *Chat {
	id, _ := doc.Int64("id")
	return &Chat{
		ID:    id,
		Title: doc.String("title"),
		Type:  ChatType(doc.String("type")),
	}
}
