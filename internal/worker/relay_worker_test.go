package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
	"github.com/cogniseal/cogniseal-ledger/internal/ledger"
	"github.com/cogniseal/cogniseal-ledger/internal/model"
)

type chanQueue struct {
	ch       chan model.Log
	mu       sync.Mutex
	requeued []model.Log
}

func newChanQueue() *chanQueue { return &chanQueue{ch: make(chan model.Log, 16)} }

func (q *chanQueue) Pop(ctx context.Context, timeout time.Duration) (*model.Log, error) {
	select {
	case l := <-q.ch:
		return &l, nil
	case <-time.After(timeout):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *chanQueue) Publish(_ context.Context, logs []model.Log) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.requeued = append(q.requeued, logs...)
	return nil
}

type recordingFeed struct {
	mu      sync.Mutex
	got     []model.Log
	failAll bool
	failTx  chain.Hash
}

func (f *recordingFeed) Broadcast(_ context.Context, logs []model.Log) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll && len(logs) > 1 {
		return errors.New("pipeline failed")
	}
	for _, l := range logs {
		if l.TxHash == f.failTx {
			return errors.New("publish failed")
		}
	}
	f.got = append(f.got, logs...)
	return nil
}

func (f *recordingFeed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

type mockWarmer struct {
	mock.Mock
}

func (m *mockWarmer) Warm(ctx context.Context, examID uint64) error {
	return m.Called(ctx, examID).Error(0)
}

func examCreatedLog(t *testing.T, examID uint64, tx byte) model.Log {
	t.Helper()
	data, err := json.Marshal(map[string]any{"title": "t", "question_count": 1, "passing_score": 1})
	require.NoError(t, err)
	return model.Log{
		Topics: []chain.Hash{ledger.TopicExamCreated, chain.Uint64Topic(examID), {}},
		Data:   data,
		TxHash: chain.Hash{tx},
	}
}

func gradedLog(tx byte) model.Log {
	return model.Log{
		Topics: []chain.Hash{ledger.TopicExamGraded, chain.Uint64Topic(1), chain.Uint64Topic(1), {}},
		Data:   json.RawMessage(`{}`),
		TxHash: chain.Hash{tx},
	}
}

func TestRelayWorkerBroadcastsAndWarms(t *testing.T) {
	queue := newChanQueue()
	feed := &recordingFeed{}
	warmer := new(mockWarmer)
	warmer.On("Warm", mock.Anything, uint64(4)).Return(nil).Once()

	w := NewRelayWorker(queue, feed, warmer, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	queue.ch <- examCreatedLog(t, 4, 1)
	queue.ch <- gradedLog(2)

	assert.Eventually(t, func() bool { return feed.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	warmer.AssertExpectations(t)
	assert.Empty(t, queue.requeued)
}

func TestRelayWorkerRequeuesFailedLogs(t *testing.T) {
	queue := newChanQueue()
	feed := &recordingFeed{failAll: true, failTx: chain.Hash{2}}
	w := NewRelayWorker(queue, feed, nil, zerolog.Nop())

	w.flushSafe(context.Background(), []model.Log{gradedLog(1), gradedLog(2), gradedLog(3)})

	assert.Equal(t, 2, feed.count())
	require.Len(t, queue.requeued, 1)
	assert.Equal(t, chain.Hash{2}, queue.requeued[0].TxHash)
}

func TestRelayWorkerIgnoresWarmFailures(t *testing.T) {
	queue := newChanQueue()
	feed := &recordingFeed{}
	warmer := new(mockWarmer)
	warmer.On("Warm", mock.Anything, uint64(1)).Return(errors.New("redis down"))
	warmer.On("Warm", mock.Anything, uint64(2)).Return(nil)

	w := NewRelayWorker(queue, feed, warmer, zerolog.Nop())
	w.flushSafe(context.Background(), []model.Log{examCreatedLog(t, 1, 1), examCreatedLog(t, 2, 2)})

	warmer.AssertNumberOfCalls(t, "Warm", 2)
	assert.Equal(t, 2, feed.count())
}
