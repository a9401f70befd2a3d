package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"scamwatch/internal/model"
	"scamwatch/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubClassifier struct {
	threat   bool
	findings []model.ScamType
	err      error
	newScam  bool
	newCalls int
}

func (s *stubClassifier) IsThreat(context.Context, *model.Message) bool { return s.threat }

func (s *stubClassifier) Analyse(context.Context, *model.Message) ([]model.ScamType, error) {
	return s.findings, s.err
}

func (s *stubClassifier) IsNewUserScam(context.Context, *model.User) bool {
	s.newCalls++
	return s.newScam
}

type captureQueue struct {
	mu    sync.Mutex
	items []*model.Sanction
	err   error
}

func (q *captureQueue) Push(_ context.Context, s *model.Sanction) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.items = append(q.items, s)
	return nil
}

type captureRequester struct {
	requested []int64
}

func (r *captureRequester) RequestUser(_ context.Context, msg *model.Message) {
	r.requested = append(r.requested, msg.SenderID)
}

type fixture struct {
	store      *store.Memory
	classifier *stubClassifier
	queue      *captureQueue
	requester  *captureRequester
	dispatcher *Dispatcher
}

func newFixture() *fixture {
	f := &fixture{
		store:      store.NewMemory(),
		classifier: &stubClassifier{},
		queue:      &captureQueue{},
		requester:  &captureRequester{},
	}
	f.dispatcher = New(Deps{
		Store:      f.store,
		Classifier: f.classifier,
		Queue:      f.queue,
		Requester:  f.requester,
		Deduper:    NewMemoryDeduper(time.Hour),
	}, discardLogger())
	return f
}

func message(chatID int64) *model.Message {
	return &model.Message{ID: 10, SenderID: 20, ChatID: chatID, Type: model.ContentText, Content: "x", Date: time.Now()}
}

func TestHandleMessageEnqueuesForGroups(t *testing.T) {
	f := newFixture()
	f.classifier.threat = true
	f.classifier.findings = []model.ScamType{model.Keyword()}

	f.dispatcher.HandleMessage(context.Background(), message(-100123))

	require.Len(t, f.queue.items, 1)
	assert.Equal(t, int64(10), f.queue.items[0].Message.ID)
	assert.Equal(t, []string{"Keyword"}, f.queue.items[0].Names())

	doc, found, err := f.store.Get(context.Background(), model.MessagesCollection, 10)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, doc.Bool("trigger"))
}

func TestHandleMessageNeverSanctionsPrivateChats(t *testing.T) {
	for _, chatID := range []int64{0, 20} {
		f := newFixture()
		f.classifier.threat = true
		f.classifier.findings = []model.ScamType{model.Keyword(), model.Account(20)}

		f.dispatcher.HandleMessage(context.Background(), message(chatID))

		assert.Empty(t, f.queue.items)
		_, found, err := f.store.Get(context.Background(), model.MessagesCollection, 10)
		require.NoError(t, err)
		assert.True(t, found)
	}
}

func TestHandleMessageNotThreat(t *testing.T) {
	f := newFixture()
	f.classifier.findings = []model.ScamType{model.Keyword()}

	f.dispatcher.HandleMessage(context.Background(), message(-1))

	assert.Empty(t, f.queue.items)
	assert.Equal(t, 0, f.store.Count(model.MessagesCollection))
}

func TestHandleMessageCleanIsStoredNonTriggering(t *testing.T) {
	f := newFixture()
	f.classifier.threat = true

	f.dispatcher.HandleMessage(context.Background(), message(-1))

	assert.Empty(t, f.queue.items)
	doc, found, err := f.store.Get(context.Background(), model.MessagesCollection, 10)
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, doc.Bool("trigger"))
}

func TestHandleMessagePartialFindings(t *testing.T) {
	f := newFixture()
	f.classifier.threat = true
	f.classifier.findings = []model.ScamType{model.Keyword()}
	f.classifier.err = errors.New("users lookup failed")

	f.dispatcher.HandleMessage(context.Background(), message(-1))

	assert.Len(t, f.queue.items, 1)
}

func TestHandleMessageRequestsUnknownSender(t *testing.T) {
	f := newFixture()
	f.dispatcher.HandleMessage(context.Background(), message(-1))
	assert.Equal(t, []int64{20}, f.requester.requested)

	f.store.Put(model.UsersCollection, 20, store.Document{"first_name": "Known"})
	f.dispatcher.HandleMessage(context.Background(), message(-1))
	assert.Equal(t, []int64{20}, f.requester.requested)
}

func TestHandleMessageDeduplicates(t *testing.T) {
	f := newFixture()
	f.classifier.threat = true
	f.classifier.findings = []model.ScamType{model.Keyword()}

	f.dispatcher.HandleMessage(context.Background(), message(-1))
	f.dispatcher.HandleMessage(context.Background(), message(-1))
	assert.Len(t, f.queue.items, 1)

	other := message(-2)
	f.dispatcher.HandleMessage(context.Background(), other)
	assert.Len(t, f.queue.items, 2)
}

func TestHandleMessageReleasesClaimWhenPushFails(t *testing.T) {
	f := newFixture()
	f.classifier.threat = true
	f.classifier.findings = []model.ScamType{model.Keyword()}
	f.queue.err = errors.New("queue closed")

	f.dispatcher.HandleMessage(context.Background(), message(-1))
	assert.Empty(t, f.queue.items)

	f.queue.err = nil
	f.dispatcher.HandleMessage(context.Background(), message(-1))
	require.Len(t, f.queue.items, 1)

	f.dispatcher.HandleMessage(context.Background(), message(-1))
	assert.Len(t, f.queue.items, 1)
}

func TestHandleMessageReleasesClaimAfterCancel(t *testing.T) {
	f := newFixture()
	f.classifier.threat = true
	f.classifier.findings = []model.ScamType{model.Keyword()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.queue.err = context.Canceled

	f.dispatcher.HandleMessage(ctx, message(-1))

	ok, err := f.dispatcher.deduper.Claim(context.Background(), -1, 10)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHandleChat(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.dispatcher.HandleChat(ctx, &model.Chat{ID: -5, Title: "first", Type: model.ChatSupergroup})
	f.dispatcher.HandleChat(ctx, &model.Chat{ID: -5, Title: "second", Type: model.ChatSupergroup})

	doc, found, err := f.store.Get(ctx, model.ChatsCollection, -5)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "first", doc.String("title"))
	assert.Equal(t, 1, f.store.Count(model.ChatsCollection))
}

func TestHandleUserInsertsNew(t *testing.T) {
	f := newFixture()
	f.classifier.newScam = true
	ctx := context.Background()

	f.dispatcher.HandleUser(ctx, &model.User{ID: 30, FirstName: "Ana", LastName: "Ana", Bypass: true})

	doc, found, err := f.store.Get(ctx, model.UsersCollection, 30)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, doc.Bool("scam"))
	assert.False(t, doc.Bool("bypass"))
}

func TestHandleUserMergesExisting(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.store.Put(model.UsersCollection, 30, store.Document{
		"first_name":   "Old",
		"phone_number": "33600",
		"scam":         false,
		"bypass":       false,
	})
	f.classifier.newScam = true

	f.dispatcher.HandleUser(ctx, &model.User{ID: 30, FirstName: "New", PhoneNumber: "44700", Username: "new"})

	doc, _, err := f.store.Get(ctx, model.UsersCollection, 30)
	require.NoError(t, err)
	assert.Equal(t, "New", doc.String("first_name"))
	assert.Equal(t, "new", doc.String("username"))
	assert.Equal(t, "33600", doc.String("phone_number"))
	assert.True(t, doc.Bool("scam"))
	assert.Equal(t, 1, f.classifier.newCalls)
}

func TestHandleUserKeepsFlagsOfScammersAndBypassed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.store.Put(model.UsersCollection, 31, store.Document{"scam": true})
	f.store.Put(model.UsersCollection, 32, store.Document{"bypass": true})

	f.dispatcher.HandleUser(ctx, &model.User{ID: 31, FirstName: "A"})
	f.dispatcher.HandleUser(ctx, &model.User{ID: 32, FirstName: "B"})

	assert.Equal(t, 0, f.classifier.newCalls)
	doc, _, _ := f.store.Get(ctx, model.UsersCollection, 31)
	assert.True(t, doc.Bool("scam"))
	doc, _, _ = f.store.Get(ctx, model.UsersCollection, 32)
	assert.True(t, doc.Bool("bypass"))
	assert.False(t, doc.Bool("scam"))
}

func TestMemoryDeduperExpires(t *testing.T) {
	d := NewMemoryDeduper(time.Minute)
	now := time.Unix(0, 0)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := d.Claim(ctx, -1, 5)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = d.Claim(ctx, -1, 5)
	assert.False(t, ok)

	now = now.Add(time.Minute)
	ok, _ = d.Claim(ctx, -1, 5)
	assert.True(t, ok)

	require.NoError(t, d.Release(ctx, -1, 5))
	ok, _ = d.Claim(ctx, -1, 5)
	assert.True(t, ok)
}

type fakeClaimer struct {
	keys map[string]bool
	ttl  time.Duration
}

func (c *fakeClaimer) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.ttl = ttl
	if c.keys[key] {
		return false, nil
	}
	c.keys[key] = true
	return true, nil
}

func (c *fakeClaimer) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.keys, k)
	}
	return nil
}

func TestRedisDeduperUsesChatAndMessage(t *testing.T) {
	c := &fakeClaimer{keys: map[string]bool{}}
	d := NewRedisDeduper(c, 2*time.Hour)
	ctx := context.Background()

	ok, err := d.Claim(ctx, -100, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = d.Claim(ctx, -100, 1)
	assert.False(t, ok)
	ok, _ = d.Claim(ctx, -200, 1)
	assert.True(t, ok)
	assert.True(t, c.keys["scamwatch:sanction:-100:1"])
	assert.Equal(t, 2*time.Hour, c.ttl)

	require.NoError(t, d.Release(ctx, -100, 1))
	assert.False(t, c.keys["scamwatch:sanction:-100:1"])
	ok, _ = d.Claim(ctx, -100, 1)
	assert.True(t, ok)
}
