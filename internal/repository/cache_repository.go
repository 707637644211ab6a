package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cogniseal/cogniseal-ledger/internal/config"
	"github.com/cogniseal/cogniseal-ledger/internal/model"
)

// ErrCacheMiss is returned when a key is not cached.
var ErrCacheMiss = errors.New("cache miss")

// ExamCacheTTL bounds how long warmed exam data stays in Redis. Exams are
// immutable once created, so the TTL only evicts cold entries.
const ExamCacheTTL = 6 * time.Hour

// ExamCacheRepository caches exam metadata and public question lists.
type ExamCacheRepository struct {
	rdb *redis.Client
}

// NewExamCacheRepository creates a new ExamCacheRepository.
func NewExamCacheRepository(rdb *redis.Client) *ExamCacheRepository {
	return &ExamCacheRepository{rdb: rdb}
}

// Warm stores an exam and its questions in a single round-trip.
func (r *ExamCacheRepository) Warm(ctx context.Context, exam *model.Exam, questions []model.Question) error {
	examJSON, err := json.Marshal(exam)
	if err != nil {
		return fmt.Errorf("marshal exam: %w", err)
	}
	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	pipe := r.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.ExamKey(exam.ID), examJSON, ExamCacheTTL)
	pipe.Set(ctx, config.CacheKey.ExamQuestionsKey(exam.ID), questionsJSON, ExamCacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("warm exam cache: %w", err)
	}
	return nil
}

// GetExam returns ErrCacheMiss when the exam is not cached.
func (r *ExamCacheRepository) GetExam(ctx context.Context, examID uint64) (*model.Exam, error) {
	var exam model.Exam
	if err := r.get(ctx, config.CacheKey.ExamKey(examID), &exam); err != nil {
		return nil, err
	}
	return &exam, nil
}

// GetQuestions returns ErrCacheMiss when the question list is not cached.
// Encrypted answers are never cached.
func (r *ExamCacheRepository) GetQuestions(ctx context.Context, examID uint64) ([]model.Question, error) {
	var questions []model.Question
	if err := r.get(ctx, config.CacheKey.ExamQuestionsKey(examID), &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *ExamCacheRepository) get(ctx context.Context, key string, dst any) error {
	data, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// ChallengeRepository stores pending wallet login challenges.
type ChallengeRepository struct {
	rdb *redis.Client
}

// NewChallengeRepository creates a new ChallengeRepository.
func NewChallengeRepository(rdb *redis.Client) *ChallengeRepository {
	return &ChallengeRepository{rdb: rdb}
}

// Save replaces any pending challenge for address.
func (r *ChallengeRepository) Save(ctx context.Context, address, message string, ttl time.Duration) error {
	return r.rdb.Set(ctx, config.CacheKey.LoginChallengeKey(address), message, ttl).Err()
}

// Consume returns and deletes the pending challenge. A challenge can only be
// used once.
func (r *ChallengeRepository) Consume(ctx context.Context, address string) (string, error) {
	msg, err := r.rdb.GetDel(ctx, config.CacheKey.LoginChallengeKey(address)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return msg, err
}

// LogQueueRepository pushes mined logs onto the relay queue.
type LogQueueRepository struct {
	rdb *redis.Client
}

// NewLogQueueRepository creates a new LogQueueRepository.
func NewLogQueueRepository(rdb *redis.Client) *LogQueueRepository {
	return &LogQueueRepository{rdb: rdb}
}

// Publish enqueues logs in order with one RPUSH.
func (r *LogQueueRepository) Publish(ctx context.Context, logs []model.Log) error {
	values := make([]any, 0, len(logs))
	for _, l := range logs {
		raw, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("marshal log: %w", err)
		}
		values = append(values, raw)
	}
	return r.rdb.RPush(ctx, config.WorkerKey.LedgerLogsQueue, values...).Err()
}

// Pop blocks up to timeout for the next queued log. It returns nil and no
// error when the queue stayed empty.
func (r *LogQueueRepository) Pop(ctx context.Context, timeout time.Duration) (*model.Log, error) {
	item, err := r.rdb.BLPop(ctx, timeout, config.WorkerKey.LedgerLogsQueue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(item) < 2 {
		return nil, nil
	}
	var l model.Log
	if err := json.Unmarshal([]byte(item[1]), &l); err != nil {
		return nil, fmt.Errorf("decode queued log: %w", err)
	}
	return &l, nil
}

// LogFeedRepository fans mined logs out over Redis pub/sub.
type LogFeedRepository struct {
	rdb *redis.Client
}

// NewLogFeedRepository creates a new LogFeedRepository.
func NewLogFeedRepository(rdb *redis.Client) *LogFeedRepository {
	return &LogFeedRepository{rdb: rdb}
}

// Broadcast publishes each log on the live channel.
func (r *LogFeedRepository) Broadcast(ctx context.Context, logs []model.Log) error {
	pipe := r.rdb.Pipeline()
	for _, l := range logs {
		raw, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("marshal log: %w", err)
		}
		pipe.Publish(ctx, config.CacheKey.LogsChannel(), raw)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Subscribe streams live logs until ctx is done or the returned close
// function is called. Undecodable messages are skipped.
func (r *LogFeedRepository) Subscribe(ctx context.Context) (<-chan model.Log, func() error) {
	sub := r.rdb.Subscribe(ctx, config.CacheKey.LogsChannel())
	out := make(chan model.Log, 64)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var l model.Log
			if err := json.Unmarshal([]byte(msg.Payload), &l); err != nil {
				continue
			}
			select {
			case out <- l:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, sub.Close
}
