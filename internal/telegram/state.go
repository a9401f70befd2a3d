package telegram

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"scamwatch/internal/store"

	"github.com/gotd/td/telegram/updates"
)

// UpdatesStateCollection holds the update sequence of the account so missed
// updates are fetched again after a restart.
const UpdatesStateCollection = "updates_state"

var errStateNotFound = errors.New("update state not found")

var (
	_ updates.StateStorage        = (*UpdateState)(nil)
	_ updates.ChannelAccessHasher = (*UpdateState)(nil)
)

// UpdateState persists pts, qts, date and seq along with per-channel pts and
// access hashes in the document store. Every change writes the whole document
// of the account.
type UpdateState struct {
	store store.Store

	mu       sync.Mutex
	accounts map[int64]*accountState
	// pending holds access hashes received before the account state exists.
	pending map[int64]map[int64]int64
}

type accountState struct {
	userID   int64
	state    updates.State
	channels map[int64]int
	hashes   map[int64]int64
}

// NewUpdateState returns a state storage backed by st.
func NewUpdateState(st store.Store) *UpdateState {
	return &UpdateState{
		store:    st,
		accounts: make(map[int64]*accountState),
		pending:  make(map[int64]map[int64]int64),
	}
}

// load returns the cached account state, reading it from the store once.
// Callers hold mu.
func (s *UpdateState) load(ctx context.Context, userID int64) (*accountState, bool, error) {
	if acc, ok := s.accounts[userID]; ok {
		return acc, true, nil
	}
	doc, found, err := s.store.Get(ctx, UpdatesStateCollection, userID)
	if err != nil || !found {
		return nil, false, err
	}
	acc := accountFromDocument(userID, doc)
	s.accounts[userID] = acc
	return acc, true, nil
}

func (s *UpdateState) update(ctx context.Context, userID int64, apply func(acc *accountState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, found, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if !found {
		return errStateNotFound
	}
	apply(acc)
	return s.store.Save(ctx, acc)
}

// GetState implements updates.StateStorage.
func (s *UpdateState) GetState(ctx context.Context, userID int64) (updates.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, found, err := s.load(ctx, userID)
	if err != nil || !found {
		return updates.State{}, false, err
	}
	return acc.state, true, nil
}

// SetState implements updates.StateStorage. Known channel pts are reset.
func (s *UpdateState) SetState(ctx context.Context, userID int64, state updates.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, found, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if !found {
		acc = &accountState{userID: userID, hashes: make(map[int64]int64)}
		for id, hash := range s.pending[userID] {
			acc.hashes[id] = hash
		}
		delete(s.pending, userID)
		s.accounts[userID] = acc
	}
	acc.state = state
	acc.channels = make(map[int64]int)
	return s.store.Save(ctx, acc)
}

// SetPts implements updates.StateStorage.
func (s *UpdateState) SetPts(ctx context.Context, userID int64, pts int) error {
	return s.update(ctx, userID, func(acc *accountState) { acc.state.Pts = pts })
}

// SetQts implements updates.StateStorage.
func (s *UpdateState) SetQts(ctx context.Context, userID int64, qts int) error {
	return s.update(ctx, userID, func(acc *accountState) { acc.state.Qts = qts })
}

// SetDate implements updates.StateStorage.
func (s *UpdateState) SetDate(ctx context.Context, userID int64, date int) error {
	return s.update(ctx, userID, func(acc *accountState) { acc.state.Date = date })
}

// SetSeq implements updates.StateStorage.
func (s *UpdateState) SetSeq(ctx context.Context, userID int64, seq int) error {
	return s.update(ctx, userID, func(acc *accountState) { acc.state.Seq = seq })
}

// SetDateSeq implements updates.StateStorage.
func (s *UpdateState) SetDateSeq(ctx context.Context, userID int64, date, seq int) error {
	return s.update(ctx, userID, func(acc *accountState) {
		acc.state.Date = date
		acc.state.Seq = seq
	})
}

// GetChannelPts implements updates.StateStorage.
func (s *UpdateState) GetChannelPts(ctx context.Context, userID, channelID int64) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, found, err := s.load(ctx, userID)
	if err != nil || !found {
		return 0, false, err
	}
	pts, ok := acc.channels[channelID]
	return pts, ok, nil
}

// SetChannelPts implements updates.StateStorage.
func (s *UpdateState) SetChannelPts(ctx context.Context, userID, channelID int64, pts int) error {
	return s.update(ctx, userID, func(acc *accountState) { acc.channels[channelID] = pts })
}

// ForEachChannels implements updates.StateStorage.
func (s *UpdateState) ForEachChannels(ctx context.Context, userID int64, f func(ctx context.Context, channelID int64, pts int) error) error {
	s.mu.Lock()
	acc, found, err := s.load(ctx, userID)
	var channels map[int64]int
	if found {
		channels = make(map[int64]int, len(acc.channels))
		for id, pts := range acc.channels {
			channels[id] = pts
		}
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	for id, pts := range channels {
		if err := f(ctx, id, pts); err != nil {
			return err
		}
	}
	return nil
}

// SetChannelAccessHash implements updates.ChannelAccessHasher. Hashes seen
// before the first SetState are kept in memory until then.
func (s *UpdateState) SetChannelAccessHash(ctx context.Context, userID, channelID, accessHash int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, found, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if !found {
		if s.pending[userID] == nil {
			s.pending[userID] = make(map[int64]int64)
		}
		s.pending[userID][channelID] = accessHash
		return nil
	}
	acc.hashes[channelID] = accessHash
	return s.store.Save(ctx, acc)
}

// GetChannelAccessHash implements updates.ChannelAccessHasher.
func (s *UpdateState) GetChannelAccessHash(ctx context.Context, userID, channelID int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, found, err := s.load(ctx, userID)
	if err != nil {
		return 0, false, err
	}
	if !found {
		hash, ok := s.pending[userID][channelID]
		return hash, ok, nil
	}
	hash, ok := acc.hashes[channelID]
	return hash, ok, nil
}

// CollectionName implements store.Record.
func (a *accountState) CollectionName() string { return UpdatesStateCollection }

// RecordID implements store.Record.
func (a *accountState) RecordID() int64 { return a.userID }

// Document implements store.Record.
func (a *accountState) Document() (store.Document, error) {
	doc, _ := a.UpdateDocument()
	doc["id"] = a.userID
	return doc, nil
}

// UpdateDocument implements store.Record.
func (a *accountState) UpdateDocument() (store.Document, error) {
	channels := make(map[string]any, len(a.channels))
	for id, pts := range a.channels {
		channels[strconv.FormatInt(id, 10)] = int64(pts)
	}
	hashes := make(map[string]any, len(a.hashes))
	for id, hash := range a.hashes {
		hashes[strconv.FormatInt(id, 10)] = hash
	}
	return store.Document{
		"pts":           int64(a.state.Pts),
		"qts":           int64(a.state.Qts),
		"date":          int64(a.state.Date),
		"seq":           int64(a.state.Seq),
		"channels":      channels,
		"access_hashes": hashes,
	}, nil
}

func accountFromDocument(userID int64, doc store.Document) *accountState {
	field := func(key string) int {
		v, _ := doc.Int64(key)
		return int(v)
	}
	acc := &accountState{
		userID: userID,
		state: updates.State{
			Pts:  field("pts"),
			Qts:  field("qts"),
			Date: field("date"),
			Seq:  field("seq"),
		},
		channels: make(map[int64]int),
		hashes:   make(map[int64]int64),
	}
	channels := doc.Map("channels")
	for key := range channels {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		if pts, ok := channels.Int64(key); ok {
			acc.channels[id] = int(pts)
		}
	}
	hashes := doc.Map("access_hashes")
	for key := range hashes {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		if hash, ok := hashes.Int64(key); ok {
			acc.hashes[id] = hash
		}
	}
	return acc
}
