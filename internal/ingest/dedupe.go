package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Deduper claims a message for sanctioning. Only the first claim of a given
// (chat, message) pair succeeds while the claim is alive.
type Deduper interface {
	Claim(ctx context.Context, chatID, messageID int64) (bool, error)
	// Release drops a claim whose sanction could not be enqueued.
	Release(ctx context.Context, chatID, messageID int64) error
}

// Claimer is implemented by cache.Redis.
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// RedisDeduper stores claims as expiring Redis keys.
type RedisDeduper struct {
	claimer Claimer
	ttl     time.Duration
}

// NewRedisDeduper returns a deduper whose claims expire after ttl.
func NewRedisDeduper(claimer Claimer, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{claimer: claimer, ttl: ttl}
}

// Claim implements Deduper.
func (d *RedisDeduper) Claim(ctx context.Context, chatID, messageID int64) (bool, error) {
	return d.claimer.Claim(ctx, claimKey(chatID, messageID), d.ttl)
}

// Release implements Deduper.
func (d *RedisDeduper) Release(ctx context.Context, chatID, messageID int64) error {
	return d.claimer.Delete(ctx, claimKey(chatID, messageID))
}

// MemoryDeduper keeps claims in process memory.
type MemoryDeduper struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	claims map[string]time.Time
}

// NewMemoryDeduper returns an in-process deduper whose claims expire after ttl.
func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	return &MemoryDeduper{
		ttl:    ttl,
		now:    time.Now,
		claims: make(map[string]time.Time),
	}
}

// Claim implements Deduper.
func (d *MemoryDeduper) Claim(_ context.Context, chatID, messageID int64) (bool, error) {
	key := claimKey(chatID, messageID)
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	for k, expires := range d.claims {
		if !now.Before(expires) {
			delete(d.claims, k)
		}
	}
	if _, taken := d.claims[key]; taken {
		return false, nil
	}
	d.claims[key] = now.Add(d.ttl)
	return true, nil
}

// Release implements Deduper.
func (d *MemoryDeduper) Release(_ context.Context, chatID, messageID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.claims, claimKey(chatID, messageID))
	return nil
}

func claimKey(chatID, messageID int64) string {
	return fmt.Sprintf("scamwatch:sanction:%d:%d", chatID, messageID)
}
