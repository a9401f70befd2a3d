package sanction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"scamwatch/internal/metrics"
	"scamwatch/internal/model"
)

// OverflowPolicy decides what happens when the queue is full.
type OverflowPolicy string

const (
	// Block waits until the responder frees a slot or the context ends.
	Block OverflowPolicy = "block"
	// DropNewest rejects the sanction being pushed.
	DropNewest OverflowPolicy = "drop-newest"
	// DropOldest evicts the oldest waiting sanction to make room.
	DropOldest OverflowPolicy = "drop-oldest"
)

// ErrQueueFull is returned by Push when a sanction is rejected under DropNewest.
var ErrQueueFull = errors.New("sanction queue full")

// ParseOverflowPolicy validates a policy name. An empty name selects DropOldest.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch p := OverflowPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DropOldest, nil
	case Block, DropNewest, DropOldest:
		return p, nil
	default:
		return "", fmt.Errorf("unknown overflow policy %q", s)
	}
}

// Queue is a bounded multi-producer single-consumer sanction queue. Items
// pushed by one goroutine are popped in the order they were pushed.
type Queue struct {
	items   chan *model.Sanction
	policy  OverflowPolicy
	evictMu sync.Mutex
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewQueue creates a queue holding at most capacity sanctions.
func NewQueue(capacity int, policy OverflowPolicy, m *metrics.Metrics, logger *slog.Logger) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	if policy == "" {
		policy = DropOldest
	}
	return &Queue{
		items:   make(chan *model.Sanction, capacity),
		policy:  policy,
		metrics: m,
		logger:  logger.With("component", "sanction_queue"),
	}
}

// Push adds s to the queue according to the overflow policy.
func (q *Queue) Push(ctx context.Context, s *model.Sanction) error {
	defer func() { q.metrics.SetQueueDepth(len(q.items)) }()

	select {
	case q.items <- s:
		q.metrics.Sanction("enqueued")
		return nil
	default:
	}

	switch q.policy {
	case Block:
		select {
		case q.items <- s:
			q.metrics.Sanction("enqueued")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	case DropNewest:
		q.dropped(s, "drop-newest")
		return ErrQueueFull
	default:
		q.evictMu.Lock()
		defer q.evictMu.Unlock()
		for {
			select {
			case q.items <- s:
				q.metrics.Sanction("enqueued")
				return nil
			default:
			}
			select {
			case old := <-q.items:
				q.dropped(old, "drop-oldest")
			default:
			}
		}
	}
}

func (q *Queue) dropped(s *model.Sanction, policy string) {
	q.metrics.Sanction("dropped")
	q.logger.Warn("sanction queue full, sanction dropped",
		"policy", policy,
		"trace_id", s.TraceID,
		"message_id", s.Message.ID,
		"chat_id", s.Message.ChatID,
	)
}

// Pop blocks until a sanction is available or ctx ends.
func (q *Queue) Pop(ctx context.Context) (*model.Sanction, error) {
	select {
	case s := <-q.items:
		q.metrics.SetQueueDepth(len(q.items))
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of waiting sanctions.
func (q *Queue) Len() int {
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.items)
}
