package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cogniseal/cogniseal-ledger/internal/ledger"
	"github.com/cogniseal/cogniseal-ledger/internal/model"
	"github.com/cogniseal/cogniseal-ledger/internal/repository"
	"github.com/cogniseal/cogniseal-ledger/internal/response"
)

// ExamCache caches exam metadata and public question lists.
type ExamCache interface {
	Warm(ctx context.Context, exam *model.Exam, questions []model.Question) error
	GetExam(ctx context.Context, examID uint64) (*model.Exam, error)
	GetQuestions(ctx context.Context, examID uint64) ([]model.Question, error)
}

// ExamService serves exam reads from the cache, falling back to the ledger.
type ExamService struct {
	ledger *ledger.Ledger
	cache  ExamCache
	log    zerolog.Logger
}

// NewExamService creates a new ExamService. cache may be nil.
func NewExamService(l *ledger.Ledger, cache ExamCache, log zerolog.Logger) *ExamService {
	return &ExamService{
		ledger: l,
		cache:  cache,
		log:    log.With().Str("component", "exam_service").Logger(),
	}
}

// List returns a page of exams in id order.
func (s *ExamService) List(ctx context.Context, page, perPage int) ([]model.Exam, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	count, err := s.ledger.GetExamCount(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("count exams: %w", err)
	}
	exams, err := s.ledger.ListExams(ctx, (page-1)*perPage, perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list exams: %w", err)
	}

	return exams, response.NewPagination(page, perPage, int(count)), nil
}

// Get returns an exam, warming the cache on a miss. Missing exams are
// reported as ledger.ErrNotFound.
func (s *ExamService) Get(ctx context.Context, examID uint64) (*model.Exam, error) {
	if s.cache != nil {
		exam, err := s.cache.GetExam(ctx, examID)
		if err == nil {
			return exam, nil
		}
		if !errors.Is(err, repository.ErrCacheMiss) {
			s.log.Warn().Err(err).Uint64("exam_id", examID).Msg("Exam cache read failed")
		}
	}

	exam, err := s.ledger.GetExamInfo(ctx, examID)
	if err != nil {
		return nil, err
	}
	s.warm(ctx, exam)
	return exam, nil
}

// Questions returns the public question list of an exam.
func (s *ExamService) Questions(ctx context.Context, examID uint64) ([]model.Question, error) {
	if s.cache != nil {
		questions, err := s.cache.GetQuestions(ctx, examID)
		if err == nil {
			return questions, nil
		}
		if !errors.Is(err, repository.ErrCacheMiss) {
			s.log.Warn().Err(err).Uint64("exam_id", examID).Msg("Question cache read failed")
		}
	}

	questions, err := s.ledger.ListQuestions(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam, err := s.ledger.GetExamInfo(ctx, examID); err == nil {
		s.warm(ctx, exam)
	}
	return questions, nil
}

// Warm loads an exam from the ledger into the cache.
func (s *ExamService) Warm(ctx context.Context, examID uint64) error {
	exam, err := s.ledger.GetExamInfo(ctx, examID)
	if err != nil {
		return fmt.Errorf("load exam %d: %w", examID, err)
	}
	questions, err := s.ledger.ListQuestions(ctx, examID)
	if err != nil {
		return fmt.Errorf("load questions of exam %d: %w", examID, err)
	}
	if s.cache == nil {
		return nil
	}
	return s.cache.Warm(ctx, exam, questions)
}

func (s *ExamService) warm(ctx context.Context, exam *model.Exam) {
	if s.cache == nil {
		return
	}
	questions, err := s.ledger.ListQuestions(ctx, exam.ID)
	if err != nil {
		s.log.Warn().Err(err).Uint64("exam_id", exam.ID).Msg("Failed to load questions for cache")
		return
	}
	if err := s.cache.Warm(ctx, exam, questions); err != nil {
		s.log.Warn().Err(err).Uint64("exam_id", exam.ID).Msg("Failed to warm exam cache")
	}
}
