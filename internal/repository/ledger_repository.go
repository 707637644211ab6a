package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
	"github.com/cogniseal/cogniseal-ledger/internal/fhe"
	"github.com/cogniseal/cogniseal-ledger/internal/ledger"
	"github.com/cogniseal/cogniseal-ledger/internal/model"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// LedgerRepository is the PostgreSQL ledger store.
type LedgerRepository struct {
	pool *pgxpool.Pool
	ledgerReader
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool, ledgerReader: ledgerReader{q: pool}}
}

// InTx runs fn in a read-committed transaction. Writers serialize on the
// ledger_head row lock taken by NextBlock.
func (r *LedgerRepository) InTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&ledgerTx{ledgerReader: ledgerReader{q: tx}, tx: tx})
	})
}

// Head returns the latest block number.
func (r *LedgerRepository) Head(ctx context.Context) (uint64, error) {
	var h int64
	err := r.pool.QueryRow(ctx, `SELECT height FROM ledger_head WHERE id = 1`).Scan(&h)
	return uint64(h), err
}

// ExamCount returns the number of exams ever created.
func (r *LedgerRepository) ExamCount(ctx context.Context) (uint64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT exam_seq FROM ledger_head WHERE id = 1`).Scan(&n)
	return uint64(n), err
}

// ListExams returns a page of exams in id order.
func (r *LedgerRepository) ListExams(ctx context.Context, offset, limit int) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

// ListAttempts returns every examinee's attempt counter for an exam.
func (r *LedgerRepository) ListAttempts(ctx context.Context, examID uint64) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT examinee, attempt_count, last_attempt_time
		 FROM attempts WHERE exam_id = $1 ORDER BY examinee`, int64(examID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Attempt
	for rows.Next() {
		var raw []byte
		a := model.Attempt{ExamID: examID}
		if err := rows.Scan(&raw, &a.AttemptCount, &a.LastAttemptTime); err != nil {
			return nil, err
		}
		a.Examinee = toAddress(raw)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListCertificates returns the certificates issued for an exam.
func (r *LedgerRepository) ListCertificates(ctx context.Context, examID uint64) ([]model.Certificate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT examinee, submission_id, minted_at
		 FROM certificates WHERE exam_id = $1 ORDER BY minted_at`, int64(examID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Certificate
	for rows.Next() {
		var raw []byte
		var subID int64
		c := model.Certificate{ExamID: examID}
		if err := rows.Scan(&raw, &subID, &c.MintedAt); err != nil {
			return nil, err
		}
		c.Examinee = toAddress(raw)
		c.SubmissionID = uint64(subID)
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetReceipt loads a receipt and its logs.
func (r *LedgerRepository) GetReceipt(ctx context.Context, txHash chain.Hash) (*model.Receipt, error) {
	var from, to []byte
	var block int64
	rc := &model.Receipt{TxHash: txHash}
	err := r.pool.QueryRow(ctx,
		`SELECT block_number, timestamp, from_address, to_address, method, status
		 FROM receipts WHERE tx_hash = $1`, txHash[:],
	).Scan(&block, &rc.Timestamp, &from, &to, &rc.Method, &rc.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rc.BlockNumber = uint64(block)
	rc.From = toAddress(from)
	rc.To = toAddress(to)

	rows, err := r.pool.Query(ctx,
		`SELECT `+logColumns+` FROM logs WHERE tx_hash = $1 ORDER BY log_index`, txHash[:])
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		rc.Logs = append(rc.Logs, *l)
	}
	return rc, rows.Err()
}

// QueryLogs returns logs matching filter in chain order.
func (r *LedgerRepository) QueryLogs(ctx context.Context, filter model.LogFilter) ([]model.Log, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	for i, topic := range filter.Topics {
		if topic != nil {
			where = append(where, fmt.Sprintf("topic%d = %s", i, arg(topic[:])))
		}
	}
	if filter.FromBlock > 0 {
		where = append(where, "block_number >= "+arg(int64(filter.FromBlock)))
	}
	if filter.ToBlock > 0 {
		where = append(where, "block_number <= "+arg(int64(filter.ToBlock)))
	}

	query := `SELECT ` + logColumns + ` FROM logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY block_number, log_index`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Log
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// ─── Reads shared by the pool and transactions ────────────────────────────

type ledgerReader struct {
	q querier
}

const examColumns = `id, creator, title, description, question_count, passing_score,
	time_limit_minutes, max_attempts, cooldown_minutes, is_active, created_at`

func scanExam(row pgx.Row) (*model.Exam, error) {
	var id int64
	var creator []byte
	e := &model.Exam{}
	if err := row.Scan(&id, &creator, &e.Title, &e.Description, &e.QuestionCount, &e.PassingScore,
		&e.TimeLimitMinutes, &e.MaxAttempts, &e.CooldownMinutes, &e.IsActive, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.ID = uint64(id)
	e.Creator = toAddress(creator)
	return e, nil
}

func (r ledgerReader) GetExam(ctx context.Context, examID uint64) (*model.Exam, error) {
	e, err := scanExam(r.q.QueryRow(ctx, `SELECT `+examColumns+` FROM exams WHERE id = $1`, int64(examID)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	return e, err
}

func (r ledgerReader) GetQuestion(ctx context.Context, examID uint64, index uint32) (*model.Question, error) {
	var answer []byte
	var qtype int16
	q := &model.Question{ExamID: examID, Index: index}
	err := r.q.QueryRow(ctx,
		`SELECT question_text, question_type, encrypted_answer
		 FROM questions WHERE exam_id = $1 AND idx = $2`, int64(examID), int32(index),
	).Scan(&q.Text, &qtype, &answer)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	q.Type = model.QuestionType(qtype)
	q.EncryptedAnswer = toHandle(answer)
	return q, nil
}

func (r ledgerReader) ListQuestions(ctx context.Context, examID uint64) ([]model.Question, error) {
	rows, err := r.q.Query(ctx,
		`SELECT idx, question_text, question_type, encrypted_answer
		 FROM questions WHERE exam_id = $1 ORDER BY idx`, int64(examID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Question
	for rows.Next() {
		var answer []byte
		var qtype int16
		q := model.Question{ExamID: examID}
		if err := rows.Scan(&q.Index, &q.Text, &qtype, &answer); err != nil {
			return nil, err
		}
		q.Type = model.QuestionType(qtype)
		q.EncryptedAnswer = toHandle(answer)
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r ledgerReader) GetAttempt(ctx context.Context, examinee chain.Address, examID uint64) (*model.Attempt, error) {
	a := &model.Attempt{Examinee: examinee, ExamID: examID}
	err := r.q.QueryRow(ctx,
		`SELECT attempt_count, last_attempt_time
		 FROM attempts WHERE examinee = $1 AND exam_id = $2`, examinee[:], int64(examID),
	).Scan(&a.AttemptCount, &a.LastAttemptTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return a, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r ledgerReader) GetSubmission(ctx context.Context, submissionID uint64) (*model.Submission, error) {
	var examinee, score []byte
	var examID int64
	s := &model.Submission{ID: submissionID}
	err := r.q.QueryRow(ctx,
		`SELECT examinee, exam_id, encrypted_score, submitted_at, is_graded
		 FROM submissions WHERE id = $1`, int64(submissionID),
	).Scan(&examinee, &examID, &score, &s.SubmittedAt, &s.IsGraded)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Examinee = toAddress(examinee)
	s.ExamID = uint64(examID)
	s.EncryptedScore = toHandle(score)
	return s, nil
}

func (r ledgerReader) GetCertificate(ctx context.Context, examinee chain.Address, examID uint64) (*model.Certificate, error) {
	var subID int64
	c := &model.Certificate{Examinee: examinee, ExamID: examID}
	err := r.q.QueryRow(ctx,
		`SELECT submission_id, minted_at
		 FROM certificates WHERE examinee = $1 AND exam_id = $2`, examinee[:], int64(examID),
	).Scan(&subID, &c.MintedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.SubmissionID = uint64(subID)
	return c, nil
}

// ─── Writes ───────────────────────────────────────────────────────────────

type ledgerTx struct {
	ledgerReader
	tx pgx.Tx
}

// NextBlock bumps the head under its row lock and records the block.
func (t *ledgerTx) NextBlock(ctx context.Context, timestamp int64) (uint64, error) {
	var h int64
	if err := t.tx.QueryRow(ctx,
		`UPDATE ledger_head SET height = height + 1 WHERE id = 1 RETURNING height`,
	).Scan(&h); err != nil {
		return 0, err
	}
	if _, err := t.tx.Exec(ctx,
		`INSERT INTO blocks (number, timestamp) VALUES ($1, $2)`, h, timestamp); err != nil {
		return 0, err
	}
	return uint64(h), nil
}

func (t *ledgerTx) NextExamID(ctx context.Context) (uint64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`UPDATE ledger_head SET exam_seq = exam_seq + 1 WHERE id = 1 RETURNING exam_seq`).Scan(&id)
	return uint64(id), err
}

func (t *ledgerTx) NextSubmissionID(ctx context.Context) (uint64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`UPDATE ledger_head SET submit_seq = submit_seq + 1 WHERE id = 1 RETURNING submit_seq`).Scan(&id)
	return uint64(id), err
}

func (t *ledgerTx) InsertExam(ctx context.Context, e *model.Exam) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO exams (`+examColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		int64(e.ID), e.Creator[:], e.Title, e.Description, e.QuestionCount, e.PassingScore,
		e.TimeLimitMinutes, e.MaxAttempts, e.CooldownMinutes, e.IsActive, e.CreatedAt)
	return err
}

// InsertQuestions writes all questions of an exam in one batch.
func (t *ledgerTx) InsertQuestions(ctx context.Context, questions []model.Question) error {
	batch := &pgx.Batch{}
	for _, q := range questions {
		batch.Queue(
			`INSERT INTO questions (exam_id, idx, question_text, question_type, encrypted_answer)
			 VALUES ($1, $2, $3, $4, $5)`,
			int64(q.ExamID), int32(q.Index), q.Text, int16(q.Type), q.EncryptedAnswer[:])
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *ledgerTx) SaveAttempt(ctx context.Context, a *model.Attempt) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO attempts (examinee, exam_id, attempt_count, last_attempt_time)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (examinee, exam_id)
		 DO UPDATE SET attempt_count = EXCLUDED.attempt_count,
		               last_attempt_time = EXCLUDED.last_attempt_time`,
		a.Examinee[:], int64(a.ExamID), a.AttemptCount, a.LastAttemptTime)
	return err
}

func (t *ledgerTx) InsertSubmission(ctx context.Context, s *model.Submission) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO submissions (id, examinee, exam_id, encrypted_score, submitted_at, is_graded)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		int64(s.ID), s.Examinee[:], int64(s.ExamID), s.EncryptedScore[:], s.SubmittedAt, s.IsGraded)
	return err
}

func (t *ledgerTx) InsertCertificate(ctx context.Context, c *model.Certificate) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO certificates (examinee, exam_id, submission_id, minted_at)
		 VALUES ($1, $2, $3, $4)`,
		c.Examinee[:], int64(c.ExamID), int64(c.SubmissionID), c.MintedAt)
	return err
}

// InsertReceipt stores the receipt and its logs.
func (t *ledgerTx) InsertReceipt(ctx context.Context, rc *model.Receipt) error {
	if _, err := t.tx.Exec(ctx,
		`INSERT INTO receipts (tx_hash, block_number, timestamp, from_address, to_address, method, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rc.TxHash[:], int64(rc.BlockNumber), rc.Timestamp, rc.From[:], rc.To[:], rc.Method, int16(rc.Status)); err != nil {
		return err
	}
	if len(rc.Logs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, l := range rc.Logs {
		var topics [4][]byte
		for i := range l.Topics {
			if i < len(topics) {
				topics[i] = l.Topics[i][:]
			}
		}
		batch.Queue(
			`INSERT INTO logs (block_number, log_index, tx_hash, timestamp, address,
			                   topic0, topic1, topic2, topic3, data)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			int64(l.BlockNumber), int32(l.LogIndex), l.TxHash[:], l.Timestamp, l.Address[:],
			topics[0], topics[1], topics[2], topics[3], []byte(l.Data))
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

// ─── Helpers ──────────────────────────────────────────────────────────────

const logColumns = `block_number, log_index, tx_hash, timestamp, address,
	topic0, topic1, topic2, topic3, data`

func scanLog(row pgx.Row) (*model.Log, error) {
	var (
		block   int64
		index   int32
		txHash  []byte
		address []byte
		topics  [4][]byte
		data    []byte
	)
	l := &model.Log{}
	if err := row.Scan(&block, &index, &txHash, &l.Timestamp, &address,
		&topics[0], &topics[1], &topics[2], &topics[3], &data); err != nil {
		return nil, err
	}
	l.BlockNumber = uint64(block)
	l.LogIndex = uint32(index)
	l.TxHash = toHash(txHash)
	l.Address = toAddress(address)
	for _, t := range topics {
		if t == nil {
			break
		}
		l.Topics = append(l.Topics, toHash(t))
	}
	l.Data = data
	return l, nil
}

func toAddress(b []byte) chain.Address {
	var a chain.Address
	copy(a[:], b)
	return a
}

func toHash(b []byte) chain.Hash {
	var h chain.Hash
	copy(h[:], b)
	return h
}

func toHandle(b []byte) fhe.Handle {
	var h fhe.Handle
	copy(h[:], b)
	return h
}
