package model

import (
	"context"
	"testing"
	"time"

	"scamwatch/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserBypassNeverWrittenOnUpdate(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	mem.Put(UsersCollection, 10, store.Document{"first_name": "Old", "bypass": true})

	u := &User{ID: 10, FirstName: "New", Bypass: false}
	require.NoError(t, mem.Save(ctx, u))

	doc, found, err := mem.Get(ctx, UsersCollection, 10)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, doc.Bool("bypass"))
	assert.Equal(t, "New", doc.String("first_name"))
}

func TestUserInsertedWithoutBypass(t *testing.T) {
	u := &User{ID: 3, Bypass: true}
	doc, err := u.Document()
	require.NoError(t, err)
	assert.Equal(t, false, doc["bypass"])

	update, err := u.UpdateDocument()
	require.NoError(t, err)
	_, has := update["bypass"]
	assert.False(t, has)
}

func TestUserMergeKeepsKnownPhone(t *testing.T) {
	existing := &User{ID: 1, FirstName: "A", PhoneNumber: "331234", Scam: true}
	existing.Merge(&User{ID: 1, FirstName: "B", LastName: "C", Username: "bc", PhoneNumber: "999"})
	assert.Equal(t, "B", existing.FirstName)
	assert.Equal(t, "C", existing.LastName)
	assert.Equal(t, "bc", existing.Username)
	assert.Equal(t, "331234", existing.PhoneNumber)
	assert.True(t, existing.Scam)

	unknown := &User{ID: 2}
	unknown.Merge(&User{ID: 2, PhoneNumber: "999"})
	assert.Equal(t, "999", unknown.PhoneNumber)
}

func TestUserRoundTripThroughDocument(t *testing.T) {
	u := &User{ID: 77, FirstName: "Ana", Username: "ana", Type: UserRegular, Scam: true, IsVerified: true}
	doc, err := u.Document()
	require.NoError(t, err)
	got := UserFromDocument(doc)
	assert.Equal(t, u, got)
}

func TestMessageTextOnlyForTextualContent(t *testing.T) {
	for _, tc := range []struct {
		typ  ContentType
		want string
	}{
		{ContentText, "hello"},
		{ContentPhoto, "hello"},
		{ContentVideo, "hello"},
		{ContentDocument, ""},
		{ContentSticker, ""},
	} {
		m := &Message{Type: tc.typ, Content: "hello"}
		assert.Equal(t, tc.want, m.Text(), tc.typ)
	}
}

func TestMessageMarkFindings(t *testing.T) {
	m := &Message{}
	m.MarkFindings(nil)
	assert.False(t, m.Trigger)
	assert.False(t, m.IsScam)

	m.MarkFindings([]ScamType{Account(5)})
	assert.True(t, m.Trigger)
	assert.False(t, m.IsScam)

	m.MarkFindings([]ScamType{Account(5), Keyword()})
	assert.True(t, m.Trigger)
	assert.True(t, m.IsScam)
}

func TestMessageDocumentUsesUnixSeconds(t *testing.T) {
	sent := time.Unix(1700000000, 0)
	m := &Message{ID: 9, SenderID: 4, ChatID: -100123, Date: sent, Type: ContentText, Content: "x"}
	doc, err := m.Document()
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), doc["date"])
	assert.Equal(t, int64(0), doc["edit_date"])
	assert.Equal(t, []string{}, doc["extra"])

	back := MessageFromDocument(doc)
	assert.Equal(t, sent.Unix(), back.Date.Unix())
	assert.True(t, back.EditDate.IsZero())
	assert.Equal(t, ContentText, back.Type)
}

func TestChatUpdateTouchesTitleOnly(t *testing.T) {
	c := &Chat{ID: -5, Title: "t", Type: ChatBasicGroup}
	update, err := c.UpdateDocument()
	require.NoError(t, err)
	assert.Equal(t, store.Document{"title": "t"}, update)
	assert.True(t, IsGroup(c.ID))
	assert.False(t, IsGroup(5))
}

func TestChatMergeRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.Save(ctx, &Chat{ID: -1000000000042, Title: "Old", Type: ChatSupergroup}))

	doc, found, err := mem.Get(ctx, ChatsCollection, -1000000000042)
	require.NoError(t, err)
	require.True(t, found)
	stored := ChatFromDocument(doc)
	assert.Equal(t, &Chat{ID: -1000000000042, Title: "Old", Type: ChatSupergroup}, stored)

	stored.Merge(&Chat{ID: -1000000000042, Title: "New", Type: ChatChannel})
	assert.Equal(t, ChatSupergroup, stored.Type)
	require.NoError(t, mem.Save(ctx, stored))

	doc, _, err = mem.Get(ctx, ChatsCollection, -1000000000042)
	require.NoError(t, err)
	assert.Equal(t, &Chat{ID: -1000000000042, Title: "New", Type: ChatSupergroup}, ChatFromDocument(doc))
}

func TestMessageMergeRefreshesContentOnly(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	date := time.Unix(1700000000, 0)
	msg := &Message{ID: 3, SenderID: 9, ChatID: -7, Date: date, Type: ContentText, Content: "first"}
	msg.MarkFindings([]ScamType{Keyword()})
	require.NoError(t, mem.Save(ctx, msg))

	doc, _, err := mem.Get(ctx, MessagesCollection, 3)
	require.NoError(t, err)
	stored := MessageFromDocument(doc)
	stored.Merge(&Message{ID: 3, SenderID: 1, Content: "edited"})

	assert.Equal(t, "edited", stored.Content)
	assert.Equal(t, int64(9), stored.SenderID)
	assert.Equal(t, int64(-7), stored.ChatID)
	assert.Equal(t, date.Unix(), stored.Date.Unix())
	assert.True(t, stored.IsScam)
	assert.True(t, stored.Trigger)
}

func TestKeywordsDocumentIsUpperCased(t *testing.T) {
	k := &Keywords{FR: []string{"arnaque", " "}, EN: []string{"Scam"}}
	doc, err := k.Document()
	require.NoError(t, err)
	assert.Equal(t, KeywordsID, doc["id"])
	back := KeywordsFromDocument(doc)
	assert.Equal(t, []string{"ARNAQUE", "SCAM"}, back.All())
}

func TestSanctionDocument(t *testing.T) {
	msg := &Message{ID: 42, ChatID: -100123}
	s, err := NewSanction(msg, []ScamType{Keyword(), Account(8)})
	require.NoError(t, err)
	require.NotEmpty(t, s.TraceID)

	s.HandledAt = time.Unix(1700000100, 0)
	s.Sent = true
	doc, err := s.Document()
	require.NoError(t, err)
	assert.Equal(t, int64(42), doc["id"])
	assert.Equal(t, int64(42), doc["message"])
	assert.Equal(t, int64(-100123), doc["chat_id"])
	assert.Equal(t, []string{"Keyword", "Account"}, doc["scam-types"])
	assert.Equal(t, int64(1700000100), doc["date"])
	assert.Equal(t, true, doc["sent"])
	assert.True(t, s.Has(KindAccount))
}

func TestNewSanctionRejectsEmptyFindings(t *testing.T) {
	_, err := NewSanction(&Message{ID: 1}, nil)
	require.Error(t, err)
	_, err = NewSanction(nil, []ScamType{Keyword()})
	require.Error(t, err)
}
