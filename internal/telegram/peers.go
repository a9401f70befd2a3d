package telegram

import (
	"fmt"
	"sync"

	"github.com/gotd/td/tg"
)

// peerCache remembers access hashes seen in updates so that replies and
// user lookups can address peers, and detects changed user profiles.
type peerCache struct {
	mu       sync.RWMutex
	users    map[int64]int64
	channels map[int64]int64
	profiles map[int64]string
}

func newPeerCache() *peerCache {
	return &peerCache{
		users:    make(map[int64]int64),
		channels: make(map[int64]int64),
		profiles: make(map[int64]string),
	}
}

// learn stores access hashes from e and returns the users that are new or
// whose profile changed since they were last seen.
func (p *peerCache) learn(e tg.Entities) []*tg.User {
	p.mu.Lock()
	defer p.mu.Unlock()

	var changed []*tg.User
	for id, u := range e.Users {
		if !u.Min || p.users[id] == 0 {
			if hash, ok := u.GetAccessHash(); ok {
				p.users[id] = hash
			}
		}
		if u.Min || u.Self {
			continue
		}
		fp := profileFingerprint(u)
		if p.profiles[id] != fp {
			p.profiles[id] = fp
			changed = append(changed, u)
		}
	}
	for id, c := range e.Channels {
		if hash, ok := c.GetAccessHash(); ok && (!c.Min || p.channels[id] == 0) {
			p.channels[id] = hash
		}
	}
	return changed
}

func (p *peerCache) userHash(userID int64) (int64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	hash, ok := p.users[userID]
	return hash, ok
}

// inputPeer builds the addressable peer for a storage chat id.
func (p *peerCache) inputPeer(chatID int64) (tg.InputPeerClass, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch {
	case chatID > 0:
		hash, ok := p.users[chatID]
		if !ok {
			return nil, fmt.Errorf("no access hash for user %d", chatID)
		}
		return &tg.InputPeerUser{UserID: chatID, AccessHash: hash}, nil
	case chatID <= -channelIDOffset:
		channelID := -chatID - channelIDOffset
		hash, ok := p.channels[channelID]
		if !ok {
			return nil, fmt.Errorf("no access hash for channel %d", channelID)
		}
		return &tg.InputPeerChannel{ChannelID: channelID, AccessHash: hash}, nil
	case chatID < 0:
		return &tg.InputPeerChat{ChatID: -chatID}, nil
	}
	return nil, fmt.Errorf("invalid chat id %d", chatID)
}

func profileFingerprint(u *tg.User) string {
	return fmt.Sprintf("%s\x00%s\x00%s\x00%s\x00%t%t%t%t%t",
		u.FirstName, u.LastName, u.Username, u.Phone,
		u.Verified, u.Support, u.Scam, u.Bot, u.Deleted)
}
