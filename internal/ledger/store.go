package ledger

import (
	"context"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
	"github.com/cogniseal/cogniseal-ledger/internal/model"
)

// Reader holds the reads a transaction body needs.
type Reader interface {
	GetExam(ctx context.Context, examID uint64) (*model.Exam, error)
	GetQuestion(ctx context.Context, examID uint64, index uint32) (*model.Question, error)
	ListQuestions(ctx context.Context, examID uint64) ([]model.Question, error)
	// GetAttempt returns a zero attempt when the examinee never submitted.
	GetAttempt(ctx context.Context, examinee chain.Address, examID uint64) (*model.Attempt, error)
	GetSubmission(ctx context.Context, submissionID uint64) (*model.Submission, error)
	GetCertificate(ctx context.Context, examinee chain.Address, examID uint64) (*model.Certificate, error)
}

// Tx is one atomic ledger transaction. NextBlock must be called first; it
// takes the chain-head lock that totally orders writers.
type Tx interface {
	Reader
	NextBlock(ctx context.Context, timestamp int64) (uint64, error)
	NextExamID(ctx context.Context) (uint64, error)
	NextSubmissionID(ctx context.Context) (uint64, error)
	InsertExam(ctx context.Context, exam *model.Exam) error
	InsertQuestions(ctx context.Context, questions []model.Question) error
	SaveAttempt(ctx context.Context, attempt *model.Attempt) error
	InsertSubmission(ctx context.Context, sub *model.Submission) error
	InsertCertificate(ctx context.Context, cert *model.Certificate) error
	InsertReceipt(ctx context.Context, receipt *model.Receipt) error
}

// Store persists ledger state.
type Store interface {
	Reader
	// InTx runs fn in a transaction, committing when it returns nil.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Head(ctx context.Context) (uint64, error)
	ExamCount(ctx context.Context) (uint64, error)
	ListExams(ctx context.Context, offset, limit int) ([]model.Exam, error)
	ListAttempts(ctx context.Context, examID uint64) ([]model.Attempt, error)
	ListCertificates(ctx context.Context, examID uint64) ([]model.Certificate, error)
	GetReceipt(ctx context.Context, txHash chain.Hash) (*model.Receipt, error)
	QueryLogs(ctx context.Context, filter model.LogFilter) ([]model.Log, error)
}

// LogSink receives the logs of every mined transaction after commit.
type LogSink interface {
	Publish(ctx context.Context, logs []model.Log) error
}
