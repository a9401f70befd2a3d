package sanction

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"scamwatch/internal/metrics"
	"scamwatch/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSanction(t *testing.T, id int64) *model.Sanction {
	t.Helper()
	s, err := model.NewSanction(&model.Message{ID: id, ChatID: -100123}, []model.ScamType{model.Keyword()})
	require.NoError(t, err)
	return s
}

func popIDs(t *testing.T, q *Queue) []int64 {
	t.Helper()
	var ids []int64
	for q.Len() > 0 {
		s, err := q.Pop(context.Background())
		require.NoError(t, err)
		ids = append(ids, s.Message.ID)
	}
	return ids
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(10, Block, nil, discardLogger())
	ctx := context.Background()
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, q.Push(ctx, newSanction(t, i)))
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, popIDs(t, q))
}

func TestQueueDropNewest(t *testing.T) {
	q := NewQueue(2, DropNewest, nil, discardLogger())
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, newSanction(t, 1)))
	require.NoError(t, q.Push(ctx, newSanction(t, 2)))
	assert.ErrorIs(t, q.Push(ctx, newSanction(t, 3)), ErrQueueFull)
	assert.Equal(t, []int64{1, 2}, popIDs(t, q))
}

func TestQueueDropOldest(t *testing.T) {
	q := NewQueue(2, DropOldest, nil, discardLogger())
	ctx := context.Background()
	for i := int64(1); i <= 4; i++ {
		require.NoError(t, q.Push(ctx, newSanction(t, i)))
	}
	assert.Equal(t, []int64{3, 4}, popIDs(t, q))
}

func TestQueueBlockHonoursContext(t *testing.T) {
	q := NewQueue(1, Block, nil, discardLogger())
	require.NoError(t, q.Push(context.Background(), newSanction(t, 1)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Push(ctx, newSanction(t, 2)), context.DeadlineExceeded)
}

func TestQueueBlockResumesWhenConsumed(t *testing.T) {
	q := NewQueue(1, Block, nil, discardLogger())
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, newSanction(t, 1)))

	done := make(chan error, 1)
	go func() { done <- q.Push(ctx, newSanction(t, 2)) }()

	s, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.Message.ID)
	require.NoError(t, <-done)

	s, err = q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.Message.ID)
}

func TestQueuePerProducerOrder(t *testing.T) {
	const producers, perProducer = 4, 50
	q := NewQueue(producers*perProducer, Block, nil, discardLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				s, _ := model.NewSanction(&model.Message{ID: int64(p*1000 + i), ChatID: -1}, []model.ScamType{model.Keyword()})
				_ = q.Push(ctx, s)
			}
		}(p)
	}
	wg.Wait()

	last := map[int64]int64{}
	seen := 0
	for _, id := range popIDs(t, q) {
		p, i := id/1000, id%1000
		if prev, ok := last[p]; ok {
			assert.Greater(t, i, prev)
		}
		last[p] = i
		seen++
	}
	assert.Equal(t, producers*perProducer, seen)
}

func TestQueuePopCancelled(t *testing.T) {
	q := NewQueue(1, Block, nil, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseOverflowPolicy(t *testing.T) {
	p, err := ParseOverflowPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DropOldest, p)
	p, err = ParseOverflowPolicy("Block")
	require.NoError(t, err)
	assert.Equal(t, Block, p)
	_, err = ParseOverflowPolicy("spill")
	assert.Error(t, err)
}

func TestQueueDepthGaugeFollowsPushAndPop(t *testing.T) {
	m := &metrics.Metrics{
		Sanctions:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "sanctions_total"}, []string{"outcome"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{Name: "sanction_queue_depth"}),
	}
	q := NewQueue(8, DropOldest, m, discardLogger())
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, q.Push(ctx, newSanction(t, i)))
		assert.Equal(t, float64(i), testutil.ToFloat64(m.QueueDepth))
	}

	_, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.QueueDepth))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.Sanctions.WithLabelValues("enqueued")))
}
