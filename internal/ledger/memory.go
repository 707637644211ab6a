package ledger

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
	"github.com/cogniseal/cogniseal-ledger/internal/model"
)

type attemptKey struct {
	examinee chain.Address
	examID   uint64
}

type memState struct {
	head         uint64
	exams        map[uint64]model.Exam
	questions    map[uint64][]model.Question
	attempts     map[attemptKey]model.Attempt
	submissions  map[uint64]model.Submission
	certificates map[attemptKey]model.Certificate
	receipts     map[chain.Hash]model.Receipt
	logs         []model.Log
	examSeq      uint64
	submitSeq    uint64
}

// clone copies the maps so a transaction can be discarded. Stored values are
// never mutated in place, so a shallow copy per map is enough.
func (s *memState) clone() *memState {
	return &memState{
		head:         s.head,
		exams:        maps.Clone(s.exams),
		questions:    maps.Clone(s.questions),
		attempts:     maps.Clone(s.attempts),
		submissions:  maps.Clone(s.submissions),
		certificates: maps.Clone(s.certificates),
		receipts:     maps.Clone(s.receipts),
		logs:         s.logs[:len(s.logs):len(s.logs)],
		examSeq:      s.examSeq,
		submitSeq:    s.submitSeq,
	}
}

// MemoryStore keeps ledger state in process. Writers are serialized by a
// mutex and work on a copy that replaces the live state on commit.
type MemoryStore struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	state   *memState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		exams:        make(map[uint64]model.Exam),
		questions:    make(map[uint64][]model.Question),
		attempts:     make(map[attemptKey]model.Attempt),
		submissions:  make(map[uint64]model.Submission),
		certificates: make(map[attemptKey]model.Certificate),
		receipts:     make(map[chain.Hash]model.Receipt),
	}}
}

func (m *MemoryStore) snapshot() *memState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{memReader{m.snapshot().clone()}}
	if err := fn(tx); err != nil {
		return err
	}
	m.mu.Lock()
	m.state = tx.s
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) reader() memReader { return memReader{m.snapshot()} }

func (m *MemoryStore) GetExam(ctx context.Context, examID uint64) (*model.Exam, error) {
	return m.reader().GetExam(ctx, examID)
}

func (m *MemoryStore) GetQuestion(ctx context.Context, examID uint64, index uint32) (*model.Question, error) {
	return m.reader().GetQuestion(ctx, examID, index)
}

func (m *MemoryStore) ListQuestions(ctx context.Context, examID uint64) ([]model.Question, error) {
	return m.reader().ListQuestions(ctx, examID)
}

func (m *MemoryStore) GetAttempt(ctx context.Context, examinee chain.Address, examID uint64) (*model.Attempt, error) {
	return m.reader().GetAttempt(ctx, examinee, examID)
}

func (m *MemoryStore) GetSubmission(ctx context.Context, submissionID uint64) (*model.Submission, error) {
	return m.reader().GetSubmission(ctx, submissionID)
}

func (m *MemoryStore) GetCertificate(ctx context.Context, examinee chain.Address, examID uint64) (*model.Certificate, error) {
	return m.reader().GetCertificate(ctx, examinee, examID)
}

func (m *MemoryStore) Head(context.Context) (uint64, error) {
	return m.snapshot().head, nil
}

func (m *MemoryStore) ExamCount(context.Context) (uint64, error) {
	return uint64(len(m.snapshot().exams)), nil
}

func (m *MemoryStore) ListExams(_ context.Context, offset, limit int) ([]model.Exam, error) {
	s := m.snapshot()
	out := make([]model.Exam, 0, limit)
	for id := uint64(offset) + 1; id <= s.examSeq && len(out) < limit; id++ {
		if e, ok := s.exams[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryStore) ListAttempts(_ context.Context, examID uint64) ([]model.Attempt, error) {
	var out []model.Attempt
	for k, a := range m.snapshot().attempts {
		if k.examID == examID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Examinee.String() < out[j].Examinee.String() })
	return out, nil
}

func (m *MemoryStore) ListCertificates(_ context.Context, examID uint64) ([]model.Certificate, error) {
	var out []model.Certificate
	for k, c := range m.snapshot().certificates {
		if k.examID == examID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MintedAt < out[j].MintedAt })
	return out, nil
}

func (m *MemoryStore) GetReceipt(_ context.Context, txHash chain.Hash) (*model.Receipt, error) {
	r, ok := m.snapshot().receipts[txHash]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *MemoryStore) QueryLogs(_ context.Context, filter model.LogFilter) ([]model.Log, error) {
	var out []model.Log
	for _, l := range m.snapshot().logs {
		if !filter.Matches(l) {
			continue
		}
		out = append(out, l)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

type memReader struct {
	s *memState
}

func (r memReader) GetExam(_ context.Context, examID uint64) (*model.Exam, error) {
	e, ok := r.s.exams[examID]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (r memReader) GetQuestion(_ context.Context, examID uint64, index uint32) (*model.Question, error) {
	qs := r.s.questions[examID]
	if int(index) >= len(qs) {
		return nil, ErrNotFound
	}
	q := qs[index]
	return &q, nil
}

func (r memReader) ListQuestions(_ context.Context, examID uint64) ([]model.Question, error) {
	return append([]model.Question(nil), r.s.questions[examID]...), nil
}

func (r memReader) GetAttempt(_ context.Context, examinee chain.Address, examID uint64) (*model.Attempt, error) {
	a, ok := r.s.attempts[attemptKey{examinee, examID}]
	if !ok {
		return &model.Attempt{Examinee: examinee, ExamID: examID}, nil
	}
	return &a, nil
}

func (r memReader) GetSubmission(_ context.Context, submissionID uint64) (*model.Submission, error) {
	s, ok := r.s.submissions[submissionID]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r memReader) GetCertificate(_ context.Context, examinee chain.Address, examID uint64) (*model.Certificate, error) {
	c, ok := r.s.certificates[attemptKey{examinee, examID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

type memTx struct {
	memReader
}

func (t *memTx) NextBlock(_ context.Context, _ int64) (uint64, error) {
	t.s.head++
	return t.s.head, nil
}

func (t *memTx) NextExamID(context.Context) (uint64, error) {
	t.s.examSeq++
	return t.s.examSeq, nil
}

func (t *memTx) NextSubmissionID(context.Context) (uint64, error) {
	t.s.submitSeq++
	return t.s.submitSeq, nil
}

func (t *memTx) InsertExam(_ context.Context, exam *model.Exam) error {
	t.s.exams[exam.ID] = *exam
	return nil
}

func (t *memTx) InsertQuestions(_ context.Context, questions []model.Question) error {
	if len(questions) == 0 {
		return nil
	}
	t.s.questions[questions[0].ExamID] = append([]model.Question(nil), questions...)
	return nil
}

func (t *memTx) SaveAttempt(_ context.Context, a *model.Attempt) error {
	t.s.attempts[attemptKey{a.Examinee, a.ExamID}] = *a
	return nil
}

func (t *memTx) InsertSubmission(_ context.Context, sub *model.Submission) error {
	t.s.submissions[sub.ID] = *sub
	return nil
}

func (t *memTx) InsertCertificate(_ context.Context, c *model.Certificate) error {
	t.s.certificates[attemptKey{c.Examinee, c.ExamID}] = *c
	return nil
}

func (t *memTx) InsertReceipt(_ context.Context, r *model.Receipt) error {
	t.s.receipts[r.TxHash] = *r
	t.s.logs = append(t.s.logs, r.Logs...)
	return nil
}
