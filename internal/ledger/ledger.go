// Package ledger is the CogniSeal exam contract: an exam registry, encrypted
// grading, attempt tracking and certificates, executed as totally ordered
// transactions that each mine one block.
package ledger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
	"github.com/cogniseal/cogniseal-ledger/internal/fhe"
	"github.com/cogniseal/cogniseal-ledger/internal/model"
)

// Ledger executes CogniSeal transactions and serves its reads.
type Ledger struct {
	address chain.Address
	store   Store
	fhe     *fhe.Coprocessor
	sink    LogSink
	now     func() time.Time
	log     zerolog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the block timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLogSink forwards the logs of mined transactions to sink.
func WithLogSink(sink LogSink) Option {
	return func(l *Ledger) { l.sink = sink }
}

// New creates a Ledger deployed at address.
func New(address chain.Address, store Store, cop *fhe.Coprocessor, opts ...Option) *Ledger {
	l := &Ledger{
		address: address,
		store:   store,
		fhe:     cop,
		now:     time.Now,
		log:     log.With().Str("component", "ledger").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Address is the contract address events and handles are bound to.
func (l *Ledger) Address() chain.Address { return l.address }

// ChainID is the chain id of the backing coprocessor.
func (l *Ledger) ChainID() uint64 { return l.fhe.ChainID() }

// Coprocessor exposes the FHE network the ledger computes on.
func (l *Ledger) Coprocessor() *fhe.Coprocessor { return l.fhe }

// block collects the effects of the transaction being executed.
type block struct {
	number    uint64
	timestamp int64
	txHash    chain.Hash
	logs      []model.Log
}

func (b *block) emit(contract chain.Address, e event) error {
	topics, data := e.topics()
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode event data: %w", err)
	}
	b.logs = append(b.logs, model.Log{
		Address:     contract,
		Topics:      topics,
		Data:        raw,
		BlockNumber: b.number,
		Timestamp:   b.timestamp,
		TxHash:      b.txHash,
		LogIndex:    uint32(len(b.logs)),
	})
	return nil
}

// execute runs body as one mined transaction. Reverts and failures leave no
// trace: no block, no receipt, no state change.
func (l *Ledger) execute(ctx context.Context, from chain.Address, method string, payload any, body func(ctx context.Context, tx Tx, b *block) error) (*model.Receipt, error) {
	input, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s input: %w", method, err)
	}

	var receipt *model.Receipt
	err = l.store.InTx(ctx, func(tx Tx) error {
		ts := l.now().Unix()
		number, err := tx.NextBlock(ctx, ts)
		if err != nil {
			return fmt.Errorf("advance chain head: %w", err)
		}
		b := &block{
			number:    number,
			timestamp: ts,
			txHash:    txHash(l.ChainID(), number, from, method, input),
		}
		if err := body(ctx, tx, b); err != nil {
			return err
		}
		receipt = &model.Receipt{
			TxHash:      b.txHash,
			BlockNumber: b.number,
			Timestamp:   b.timestamp,
			From:        from,
			To:          l.address,
			Method:      method,
			Status:      model.ReceiptStatusSuccess,
			Logs:        b.logs,
		}
		return tx.InsertReceipt(ctx, receipt)
	})
	if err != nil {
		if reason, ok := RevertReason(err); ok {
			l.log.Debug().Str("method", method).Str("from", from.String()).Str("reason", reason).Msg("Transaction reverted")
		} else {
			l.log.Error().Err(err).Str("method", method).Msg("Transaction failed")
		}
		return nil, err
	}

	l.log.Info().
		Str("method", method).
		Str("from", from.String()).
		Uint64("block", receipt.BlockNumber).
		Str("tx", receipt.TxHash.String()).
		Msg("Transaction mined")

	if l.sink != nil && len(receipt.Logs) > 0 {
		if err := l.sink.Publish(ctx, receipt.Logs); err != nil {
			l.log.Warn().Err(err).Str("tx", receipt.TxHash.String()).Msg("Failed to publish logs")
		}
	}
	return receipt, nil
}

func txHash(chainID, number uint64, from chain.Address, method string, input []byte) chain.Hash {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], chainID)
	binary.BigEndian.PutUint64(buf[8:], number)
	return chain.Keccak256Hash(buf[:], from[:], []byte(method), input)
}

// importInput verifies an external encrypted input for this contract. A bad
// proof reverts; anything else is an infrastructure failure.
func (l *Ledger) importInput(ctx context.Context, h fhe.Handle, proof []byte, from chain.Address) (fhe.Handle, error) {
	out, err := l.fhe.VerifyInput(ctx, h, proof, l.address, from)
	if errors.Is(err, fhe.ErrInvalidProof) {
		return fhe.Handle{}, revert(ReasonInvalidInputProof)
	}
	if err != nil {
		return fhe.Handle{}, fmt.Errorf("verify input: %w", err)
	}
	if out.Type() != fhe.TypeUint32 {
		return fhe.Handle{}, revert(ReasonInvalidInputProof)
	}
	return out, nil
}

// CreateExam registers an exam with its encrypted answer key.
func (l *Ledger) CreateExam(ctx context.Context, from chain.Address, req *model.CreateExamRequest) (*model.Receipt, uint64, error) {
	n := len(req.QuestionTexts)
	if len(req.QuestionTypes) != n || len(req.EncryptedAnswers) != n || len(req.InputProofs) != n {
		return nil, 0, revert(ReasonArraysLengthMismatch)
	}
	if n == 0 {
		return nil, 0, revert(ReasonNoQuestions)
	}
	for _, t := range req.QuestionTypes {
		if !t.Valid() {
			return nil, 0, revert(ReasonInvalidQuestionType)
		}
	}
	if req.PassingScore > uint32(n) {
		return nil, 0, revert(ReasonInvalidPassingScore)
	}
	if req.MaxAttempts == 0 {
		return nil, 0, revert(ReasonMaxAttemptsZero)
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, 0, revert(ReasonTitleRequired)
	}

	var examID uint64
	receipt, err := l.execute(ctx, from, "createExam", req, func(ctx context.Context, tx Tx, b *block) error {
		id, err := tx.NextExamID(ctx)
		if err != nil {
			return err
		}
		questions := make([]model.Question, n)
		for i := range questions {
			answer, err := l.importInput(ctx, req.EncryptedAnswers[i], req.InputProofs[i], from)
			if err != nil {
				return err
			}
			questions[i] = model.Question{
				ExamID:          id,
				Index:           uint32(i),
				Text:            req.QuestionTexts[i],
				Type:            req.QuestionTypes[i],
				EncryptedAnswer: answer,
			}
		}

		exam := &model.Exam{
			ID:               id,
			Creator:          from,
			Title:            req.Title,
			Description:      req.Description,
			QuestionCount:    uint32(n),
			PassingScore:     req.PassingScore,
			TimeLimitMinutes: req.TimeLimitMinutes,
			MaxAttempts:      req.MaxAttempts,
			CooldownMinutes:  req.CooldownMinutes,
			IsActive:         true,
			CreatedAt:        b.timestamp,
		}
		if err := tx.InsertExam(ctx, exam); err != nil {
			return fmt.Errorf("insert exam: %w", err)
		}
		if err := tx.InsertQuestions(ctx, questions); err != nil {
			return fmt.Errorf("insert questions: %w", err)
		}
		examID = id
		return b.emit(l.address, ExamCreated{
			ExamID:        id,
			Creator:       from,
			Title:         req.Title,
			QuestionCount: exam.QuestionCount,
			PassingScore:  exam.PassingScore,
		})
	})
	if err != nil {
		return nil, 0, err
	}
	return receipt, examID, nil
}

// SubmitAnswers grades an encrypted submission. The score is the number of
// answers equal to the key, computed without decrypting either side.
func (l *Ledger) SubmitAnswers(ctx context.Context, from chain.Address, req *model.SubmitAnswersRequest) (*model.Receipt, uint64, error) {
	var submissionID uint64
	receipt, err := l.execute(ctx, from, "submitAnswers", req, func(ctx context.Context, tx Tx, b *block) error {
		exam, err := tx.GetExam(ctx, req.ExamID)
		if errors.Is(err, ErrNotFound) {
			return revert(ReasonExamNotFound)
		}
		if err != nil {
			return err
		}
		if !exam.IsActive {
			return revert(ReasonExamNotActive)
		}
		if len(req.EncryptedAnswers) != len(req.InputProofs) {
			return revert(ReasonArraysLengthMismatch)
		}
		if uint32(len(req.EncryptedAnswers)) != exam.QuestionCount {
			return revert(ReasonAnswerCount)
		}

		attempt, err := tx.GetAttempt(ctx, from, req.ExamID)
		if err != nil {
			return err
		}
		if attempt.AttemptCount >= exam.MaxAttempts {
			return revert(ReasonMaxAttempts)
		}
		if attempt.AttemptCount > 0 && b.timestamp < cooldownEnd(attempt, exam) {
			return revert(ReasonCooldown)
		}

		questions, err := tx.ListQuestions(ctx, req.ExamID)
		if err != nil {
			return err
		}
		score, err := l.grade(ctx, from, req, questions)
		if err != nil {
			return err
		}
		if err := l.fhe.Allow(ctx, l.address, score, from); err != nil {
			return fmt.Errorf("grant score: %w", err)
		}

		id, err := tx.NextSubmissionID(ctx)
		if err != nil {
			return err
		}
		sub := &model.Submission{
			ID:             id,
			Examinee:       from,
			ExamID:         req.ExamID,
			EncryptedScore: score,
			SubmittedAt:    b.timestamp,
			IsGraded:       true,
		}
		if err := tx.InsertSubmission(ctx, sub); err != nil {
			return fmt.Errorf("insert submission: %w", err)
		}
		attempt.Examinee = from
		attempt.ExamID = req.ExamID
		attempt.AttemptCount++
		attempt.LastAttemptTime = b.timestamp
		if err := tx.SaveAttempt(ctx, attempt); err != nil {
			return fmt.Errorf("save attempt: %w", err)
		}

		submissionID = id
		if err := b.emit(l.address, AnswersSubmitted{
			SubmissionID: id,
			ExamID:       req.ExamID,
			Examinee:     from,
			SubmittedAt:  b.timestamp,
		}); err != nil {
			return err
		}
		return b.emit(l.address, ExamGraded{
			SubmissionID:   id,
			ExamID:         req.ExamID,
			Examinee:       from,
			EncryptedScore: score,
		})
	})
	if err != nil {
		return nil, 0, err
	}
	return receipt, submissionID, nil
}

// grade computes Σ select(answer_i == key_i, 1, 0).
func (l *Ledger) grade(ctx context.Context, from chain.Address, req *model.SubmitAnswersRequest, questions []model.Question) (fhe.Handle, error) {
	one, err := l.fhe.TrivialEncrypt(ctx, l.address, fhe.TypeUint32, 1)
	if err != nil {
		return fhe.Handle{}, err
	}
	zero, err := l.fhe.TrivialEncrypt(ctx, l.address, fhe.TypeUint32, 0)
	if err != nil {
		return fhe.Handle{}, err
	}
	score := zero
	for i, q := range questions {
		answer, err := l.importInput(ctx, req.EncryptedAnswers[i], req.InputProofs[i], from)
		if err != nil {
			return fhe.Handle{}, err
		}
		correct, err := l.fhe.Eq(ctx, l.address, answer, q.EncryptedAnswer)
		if err != nil {
			return fhe.Handle{}, err
		}
		point, err := l.fhe.Select(ctx, l.address, correct, one, zero)
		if err != nil {
			return fhe.Handle{}, err
		}
		if score, err = l.fhe.Add(ctx, l.address, score, point); err != nil {
			return fhe.Handle{}, err
		}
	}
	return score, nil
}

// MintCertificate issues a certificate for a passing submission. The claimed
// score must equal the encrypted score; the comparison is done under
// encryption and only its boolean outcome is revealed to the ledger.
func (l *Ledger) MintCertificate(ctx context.Context, from chain.Address, req *model.MintCertificateRequest) (*model.Receipt, error) {
	return l.execute(ctx, from, "mintCertificate", req, func(ctx context.Context, tx Tx, b *block) error {
		sub, err := tx.GetSubmission(ctx, req.SubmissionID)
		if errors.Is(err, ErrNotFound) {
			return revert(ReasonSubmissionNotFound)
		}
		if err != nil {
			return err
		}
		if sub.Examinee != from {
			return revert(ReasonNotOwner)
		}
		if sub.ExamID != req.ExamID {
			return revert(ReasonExamMismatch)
		}
		if _, err := tx.GetCertificate(ctx, from, req.ExamID); err == nil {
			return revert(ReasonAlreadyMinted)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		exam, err := tx.GetExam(ctx, req.ExamID)
		if err != nil {
			return err
		}
		if req.DecryptedScore < exam.PassingScore {
			return revert(ReasonBelowThreshold)
		}

		claimed, err := l.fhe.TrivialEncrypt(ctx, l.address, fhe.TypeUint32, req.DecryptedScore)
		if err != nil {
			return err
		}
		matches, err := l.fhe.Eq(ctx, l.address, sub.EncryptedScore, claimed)
		if err != nil {
			return err
		}
		ok, err := l.fhe.OracleDecrypt(ctx, l.address, matches)
		if err != nil {
			return err
		}
		if ok != 1 {
			return revert(ReasonScoreMismatch)
		}

		cert := &model.Certificate{
			Examinee:     from,
			ExamID:       req.ExamID,
			SubmissionID: req.SubmissionID,
			MintedAt:     b.timestamp,
		}
		if err := tx.InsertCertificate(ctx, cert); err != nil {
			return fmt.Errorf("insert certificate: %w", err)
		}
		return b.emit(l.address, CertificateMinted{
			ExamID:       req.ExamID,
			Examinee:     from,
			SubmissionID: req.SubmissionID,
		})
	})
}

func cooldownEnd(a *model.Attempt, exam *model.Exam) int64 {
	return a.LastAttemptTime + int64(exam.CooldownMinutes)*60
}

// ─── Reads ────────────────────────────────────────────────────────────────

// GetExamCount returns the number of exams created so far.
func (l *Ledger) GetExamCount(ctx context.Context) (uint64, error) {
	return l.store.ExamCount(ctx)
}

// BlockNumber returns the height of the latest mined block.
func (l *Ledger) BlockNumber(ctx context.Context) (uint64, error) {
	return l.store.Head(ctx)
}

// GetExamInfo returns the public metadata of examID.
func (l *Ledger) GetExamInfo(ctx context.Context, examID uint64) (*model.Exam, error) {
	return l.store.GetExam(ctx, examID)
}

// ListExams returns exams in id order.
func (l *Ledger) ListExams(ctx context.Context, offset, limit int) ([]model.Exam, error) {
	return l.store.ListExams(ctx, offset, limit)
}

// GetQuestion returns question index of an exam. Out-of-range indexes revert
// like the contract call would.
func (l *Ledger) GetQuestion(ctx context.Context, examID uint64, index uint32) (*model.Question, error) {
	exam, err := l.store.GetExam(ctx, examID)
	if errors.Is(err, ErrNotFound) {
		return nil, revert(ReasonExamNotFound)
	}
	if err != nil {
		return nil, err
	}
	if index >= exam.QuestionCount {
		return nil, revert(ReasonInvalidQuestionIx)
	}
	return l.store.GetQuestion(ctx, examID, index)
}

func (l *Ledger) ListQuestions(ctx context.Context, examID uint64) ([]model.Question, error) {
	if _, err := l.store.GetExam(ctx, examID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, revert(ReasonExamNotFound)
		}
		return nil, err
	}
	return l.store.ListQuestions(ctx, examID)
}

// GetAttemptInfo reports attempts and eligibility as of the current time.
func (l *Ledger) GetAttemptInfo(ctx context.Context, examinee chain.Address, examID uint64) (*model.AttemptInfo, error) {
	exam, err := l.store.GetExam(ctx, examID)
	if errors.Is(err, ErrNotFound) {
		return nil, revert(ReasonExamNotFound)
	}
	if err != nil {
		return nil, err
	}
	attempt, err := l.store.GetAttempt(ctx, examinee, examID)
	if err != nil {
		return nil, err
	}
	return attemptInfo(attempt, exam, l.now().Unix()), nil
}

func attemptInfo(a *model.Attempt, exam *model.Exam, now int64) *model.AttemptInfo {
	info := &model.AttemptInfo{
		AttemptCount:    a.AttemptCount,
		LastAttemptTime: a.LastAttemptTime,
	}
	if a.AttemptCount > 0 {
		info.CooldownEndTime = cooldownEnd(a, exam)
	}
	info.CanAttempt = a.AttemptCount < exam.MaxAttempts &&
		(a.AttemptCount == 0 || now >= info.CooldownEndTime)
	return info
}

func (l *Ledger) GetSubmission(ctx context.Context, submissionID uint64) (*model.Submission, error) {
	return l.store.GetSubmission(ctx, submissionID)
}

// GetSubmissionScore returns the encrypted score handle of a submission.
func (l *Ledger) GetSubmissionScore(ctx context.Context, submissionID uint64) (fhe.Handle, error) {
	sub, err := l.store.GetSubmission(ctx, submissionID)
	if errors.Is(err, ErrNotFound) {
		return fhe.Handle{}, revert(ReasonSubmissionNotFound)
	}
	if err != nil {
		return fhe.Handle{}, err
	}
	return sub.EncryptedScore, nil
}

func (l *Ledger) HasCertificate(ctx context.Context, examinee chain.Address, examID uint64) (bool, error) {
	_, err := l.store.GetCertificate(ctx, examinee, examID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (l *Ledger) GetReceipt(ctx context.Context, hash chain.Hash) (*model.Receipt, error) {
	return l.store.GetReceipt(ctx, hash)
}

func (l *Ledger) QueryLogs(ctx context.Context, filter model.LogFilter) ([]model.Log, error) {
	return l.store.QueryLogs(ctx, filter)
}

// Roster joins attempts and certificates of an exam, one row per examinee.
func (l *Ledger) Roster(ctx context.Context, examID uint64) ([]model.RosterEntry, error) {
	attempts, err := l.store.ListAttempts(ctx, examID)
	if err != nil {
		return nil, err
	}
	certs, err := l.store.ListCertificates(ctx, examID)
	if err != nil {
		return nil, err
	}
	minted := make(map[chain.Address]int64, len(certs))
	for _, c := range certs {
		minted[c.Examinee] = c.MintedAt
	}
	rows := make([]model.RosterEntry, 0, len(attempts))
	for _, a := range attempts {
		at, ok := minted[a.Examinee]
		rows = append(rows, model.RosterEntry{
			Examinee:        a.Examinee,
			AttemptCount:    a.AttemptCount,
			LastAttemptTime: a.LastAttemptTime,
			HasCertificate:  ok,
			CertifiedAt:     at,
		})
	}
	return rows, nil
}
