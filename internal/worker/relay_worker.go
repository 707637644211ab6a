package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cogniseal/cogniseal-ledger/internal/ledger"
	"github.com/cogniseal/cogniseal-ledger/internal/model"
)

const (
	RelayBatchSize    = 100
	RelayBatchTimeout = 250 * time.Millisecond
	RelayPollTimeout  = 200 * time.Millisecond
)

// LogQueue is the durable queue mined logs wait in.
type LogQueue interface {
	// Pop returns nil, nil when nothing arrived within timeout.
	Pop(ctx context.Context, timeout time.Duration) (*model.Log, error)
	Publish(ctx context.Context, logs []model.Log) error
}

// LogBroadcaster fans logs out to live subscribers.
type LogBroadcaster interface {
	Broadcast(ctx context.Context, logs []model.Log) error
}

// ExamWarmer preloads a newly created exam into the read cache.
type ExamWarmer interface {
	Warm(ctx context.Context, examID uint64) error
}

// RelayWorker moves mined logs from the queue to the live feed and warms the
// exam cache when an exam is created.
type RelayWorker struct {
	queue  LogQueue
	feed   LogBroadcaster
	warmer ExamWarmer
	log    zerolog.Logger
}

// NewRelayWorker creates a RelayWorker. warmer may be nil.
func NewRelayWorker(queue LogQueue, feed LogBroadcaster, warmer ExamWarmer, log zerolog.Logger) *RelayWorker {
	return &RelayWorker{
		queue:  queue,
		feed:   feed,
		warmer: warmer,
		log:    log.With().Str("component", "relay_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *RelayWorker) Start(ctx context.Context) {
	w.log.Info().Msg("RelayWorker started")

	batch := make([]model.Log, 0, RelayBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= RelayBatchSize || time.Since(lastFlush) >= RelayBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			l, err := w.queue.Pop(ctx, RelayPollTimeout)
			if err != nil {
				if ctx.Err() == nil {
					w.log.Error().Err(err).Msg("Queue pop error")
				}
				continue
			}
			if l == nil {
				continue
			}
			batch = append(batch, *l)
		}
	}
}

// ----------------------------------------------------------------
// Broadcast with per-log fallback
// ----------------------------------------------------------------

func (w *RelayWorker) flushSafe(ctx context.Context, batch []model.Log) {
	if len(batch) == 0 {
		return
	}

	if err := w.feed.Broadcast(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("logs", len(batch)).Msg("batch broadcast failed, using fallback")

		for _, l := range batch {
			if err := w.feed.Broadcast(ctx, []model.Log{l}); err != nil {
				w.log.Error().Err(err).Str("tx", l.TxHash.String()).Msg("broadcast failed, requeueing")
				if err := w.queue.Publish(ctx, []model.Log{l}); err != nil {
					w.log.Error().Err(err).Msg("requeue failed, log dropped")
				}
			}
		}
	}

	w.warmCreatedExams(ctx, batch)
}

// warmCreatedExams preloads exams announced by ExamCreated logs. Cache
// failures are not fatal; reads fall back to the ledger.
func (w *RelayWorker) warmCreatedExams(ctx context.Context, batch []model.Log) {
	if w.warmer == nil {
		return
	}
	for _, l := range batch {
		created, err := ledger.DecodeExamCreated(l)
		if err != nil {
			continue
		}
		if err := w.warmer.Warm(ctx, created.ExamID); err != nil {
			w.log.Warn().Err(err).Uint64("exam_id", created.ExamID).Msg("exam cache warm failed")
		}
	}
}
