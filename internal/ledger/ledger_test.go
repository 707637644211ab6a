package ledger

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
	"github.com/cogniseal/cogniseal-ledger/internal/fhe"
	"github.com/cogniseal/cogniseal-ledger/internal/model"
)

var contractAddr = chain.MustParseAddress("0x5fbdb2315678afecb367f032d93f642f64180aa3")

type account struct {
	key  ed25519.PrivateKey
	addr chain.Address
}

func newAccount(t *testing.T) account {
	t.Helper()
	pub, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return account{key: key, addr: chain.AddressFromPublicKey(pub)}
}

type fixture struct {
	ledger   *Ledger
	store    *MemoryStore
	examiner account
	examinee account
	clock    *fakeClock
	sink     *recordingSink
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSink struct {
	mu   sync.Mutex
	logs []model.Log
}

func (s *recordingSink) Publish(_ context.Context, logs []model.Log) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, logs...)
	return nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cop, err := fhe.NewCoprocessor(31337, []byte("ledger-test-master-key"), fhe.NewMemoryStore())
	require.NoError(t, err)
	store := NewMemoryStore()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	sink := &recordingSink{}
	return &fixture{
		ledger:   New(contractAddr, store, cop, WithClock(clock.Now), WithLogSink(sink)),
		store:    store,
		examiner: newAccount(t),
		examinee: newAccount(t),
		clock:    clock,
		sink:     sink,
	}
}

// encrypt produces one handle and proof per value, as the client does.
func (f *fixture) encrypt(t *testing.T, who account, values ...uint32) ([]fhe.Handle, []chain.HexBytes) {
	t.Helper()
	inst := f.ledger.Coprocessor().Instance()
	handles := make([]fhe.Handle, len(values))
	proofs := make([]chain.HexBytes, len(values))
	for i, v := range values {
		out, err := inst.CreateEncryptedInput(contractAddr, who.addr).Add32(v).Encrypt(who.key)
		require.NoError(t, err)
		handles[i] = out.Handles[0]
		proofs[i] = out.InputProof
	}
	return handles, proofs
}

func (f *fixture) createExam(t *testing.T, answers []uint32, passing, maxAttempts, cooldown uint32) uint64 {
	t.Helper()
	handles, proofs := f.encrypt(t, f.examiner, answers...)
	texts := make([]string, len(answers))
	types := make([]model.QuestionType, len(answers))
	for i := range answers {
		texts[i] = "Question"
	}
	_, id, err := f.ledger.CreateExam(context.Background(), f.examiner.addr, &model.CreateExamRequest{
		Title:            "Basic Math Test",
		Description:      "A simple math test",
		QuestionTexts:    texts,
		QuestionTypes:    types,
		EncryptedAnswers: handles,
		InputProofs:      proofs,
		PassingScore:     passing,
		TimeLimitMinutes: 60,
		MaxAttempts:      maxAttempts,
		CooldownMinutes:  cooldown,
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) submit(t *testing.T, examID uint64, answers ...uint32) (*model.Receipt, uint64, error) {
	t.Helper()
	handles, proofs := f.encrypt(t, f.examinee, answers...)
	return f.ledger.SubmitAnswers(context.Background(), f.examinee.addr, &model.SubmitAnswersRequest{
		ExamID:           examID,
		EncryptedAnswers: handles,
		InputProofs:      proofs,
	})
}

// decryptScore runs the user decryption flow for the examinee.
func (f *fixture) decryptScore(t *testing.T, submissionID uint64) uint32 {
	t.Helper()
	ctx := context.Background()
	h, err := f.ledger.GetSubmissionScore(ctx, submissionID)
	require.NoError(t, err)

	sig, err := fhe.LoadOrSign(fhe.NewMemoryStorage(), f.ledger.Coprocessor().Instance(), []chain.Address{contractAddr}, f.examinee.key, f.clock.Now())
	require.NoError(t, err)
	res, err := f.ledger.Coprocessor().UserDecrypt(ctx, fhe.UserDecryptRequest{
		Pairs:         []fhe.HandleContractPair{{Handle: h, Contract: contractAddr}},
		Authorization: sig.Signature,
	}, f.clock.Now())
	require.NoError(t, err)
	v, err := sig.Open(res[h])
	require.NoError(t, err)
	return v
}

func requireRevert(t *testing.T, err error, reason string) {
	t.Helper()
	require.Error(t, err)
	got, ok := RevertReason(err)
	require.True(t, ok, "expected revert, got %v", err)
	assert.Equal(t, reason, got)
}

func TestCreateExam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.createExam(t, []uint32{4, 9}, 1, 3, 5)
	assert.Equal(t, uint64(1), id)

	count, err := f.ledger.GetExamCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	exam, err := f.ledger.GetExamInfo(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Basic Math Test", exam.Title)
	assert.Equal(t, uint32(2), exam.QuestionCount)
	assert.Equal(t, uint32(1), exam.PassingScore)
	assert.Equal(t, f.examiner.addr, exam.Creator)
	assert.True(t, exam.IsActive)
	assert.Equal(t, f.clock.Now().Unix(), exam.CreatedAt)

	q, err := f.ledger.GetQuestion(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "Question", q.Text)
	assert.Equal(t, model.QuestionTypeMultipleChoice, q.Type)

	_, err = f.ledger.GetQuestion(ctx, 1, 2)
	requireRevert(t, err, ReasonInvalidQuestionIx)
}

func TestExamIDsAreSequential(t *testing.T) {
	f := newFixture(t)
	for want := uint64(1); want <= 3; want++ {
		assert.Equal(t, want, f.createExam(t, []uint32{1}, 1, 1, 0))
	}
	count, err := f.ledger.GetExamCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	exams, err := f.ledger.ListExams(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, exams, 2)
	assert.Equal(t, uint64(2), exams[0].ID)
}

func TestCreateExamReverts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	handles, proofs := f.encrypt(t, f.examiner, 1, 2)

	valid := func() *model.CreateExamRequest {
		return &model.CreateExamRequest{
			Title:            "Test",
			QuestionTexts:    []string{"Question 1", "Question 2"},
			QuestionTypes:    []model.QuestionType{0, 0},
			EncryptedAnswers: handles,
			InputProofs:      proofs,
			PassingScore:     1,
			TimeLimitMinutes: 60,
			MaxAttempts:      3,
			CooldownMinutes:  5,
		}
	}

	tests := []struct {
		name   string
		mutate func(r *model.CreateExamRequest)
		reason string
	}{
		{"fewer answers than texts", func(r *model.CreateExamRequest) {
			r.EncryptedAnswers = r.EncryptedAnswers[:1]
			r.InputProofs = r.InputProofs[:1]
		}, ReasonArraysLengthMismatch},
		{"fewer types than texts", func(r *model.CreateExamRequest) { r.QuestionTypes = r.QuestionTypes[:1] }, ReasonArraysLengthMismatch},
		{"no questions", func(r *model.CreateExamRequest) {
			r.QuestionTexts, r.QuestionTypes, r.EncryptedAnswers, r.InputProofs = nil, nil, nil, nil
		}, ReasonNoQuestions},
		{"unknown question type", func(r *model.CreateExamRequest) { r.QuestionTypes[1] = 2 }, ReasonInvalidQuestionType},
		{"passing score above question count", func(r *model.CreateExamRequest) { r.PassingScore = 3 }, ReasonInvalidPassingScore},
		{"zero max attempts", func(r *model.CreateExamRequest) { r.MaxAttempts = 0 }, ReasonMaxAttemptsZero},
		{"blank title", func(r *model.CreateExamRequest) { r.Title = "  " }, ReasonTitleRequired},
		{"proofs swapped", func(r *model.CreateExamRequest) {
			r.InputProofs = []chain.HexBytes{proofs[1], proofs[0]}
		}, ReasonInvalidInputProof},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(req)
			_, _, err := f.ledger.CreateExam(ctx, f.examiner.addr, req)
			requireRevert(t, err, tt.reason)
		})
	}

	// Someone else cannot reuse the examiner's proofs.
	_, _, err := f.ledger.CreateExam(ctx, f.examinee.addr, valid())
	requireRevert(t, err, ReasonInvalidInputProof)

	count, err := f.ledger.GetExamCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	head, err := f.ledger.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Zero(t, head, "reverted calls are not mined")
}

func TestSubmitAnswersGrades(t *testing.T) {
	f := newFixture(t)
	examID := f.createExam(t, []uint32{4, 9}, 1, 3, 0)

	receipt, subID, err := f.submit(t, examID, 4, 9)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), subID)
	assert.Equal(t, uint32(2), f.decryptScore(t, subID))

	require.Len(t, receipt.Logs, 2)
	submitted, err := DecodeAnswersSubmitted(receipt.Logs[0])
	require.NoError(t, err)
	assert.Equal(t, subID, submitted.SubmissionID)
	assert.Equal(t, examID, submitted.ExamID)
	assert.Equal(t, f.examinee.addr, submitted.Examinee)

	graded, err := DecodeExamGraded(receipt.Logs[1])
	require.NoError(t, err)
	score, err := f.ledger.GetSubmissionScore(context.Background(), subID)
	require.NoError(t, err)
	assert.Equal(t, score, graded.EncryptedScore)

	_, subID, err = f.submit(t, examID, 4, 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), subID)
	assert.Equal(t, uint32(1), f.decryptScore(t, subID))
}

func TestScoreIsPrivateToExaminee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	examID := f.createExam(t, []uint32{4}, 1, 3, 0)
	_, subID, err := f.submit(t, examID, 4)
	require.NoError(t, err)

	h, err := f.ledger.GetSubmissionScore(ctx, subID)
	require.NoError(t, err)
	sig, err := fhe.LoadOrSign(fhe.NewMemoryStorage(), f.ledger.Coprocessor().Instance(), []chain.Address{contractAddr}, f.examiner.key, f.clock.Now())
	require.NoError(t, err)
	_, err = f.ledger.Coprocessor().UserDecrypt(ctx, fhe.UserDecryptRequest{
		Pairs:         []fhe.HandleContractPair{{Handle: h, Contract: contractAddr}},
		Authorization: sig.Signature,
	}, f.clock.Now())
	assert.ErrorIs(t, err, fhe.ErrNotAllowed)
}

func TestSubmitAnswersReverts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	examID := f.createExam(t, []uint32{4, 9}, 1, 3, 0)

	_, _, err := f.submit(t, 99, 4, 9)
	requireRevert(t, err, ReasonExamNotFound)

	_, _, err = f.submit(t, examID, 4)
	requireRevert(t, err, ReasonAnswerCount)

	handles, proofs := f.encrypt(t, f.examinee, 4, 9)
	_, _, err = f.ledger.SubmitAnswers(ctx, f.examinee.addr, &model.SubmitAnswersRequest{
		ExamID: examID, EncryptedAnswers: handles, InputProofs: proofs[:1],
	})
	requireRevert(t, err, ReasonArraysLengthMismatch)

	// Proofs are bound to the sender.
	_, _, err = f.ledger.SubmitAnswers(ctx, f.examiner.addr, &model.SubmitAnswersRequest{
		ExamID: examID, EncryptedAnswers: handles, InputProofs: proofs,
	})
	requireRevert(t, err, ReasonInvalidInputProof)

	info, err := f.ledger.GetAttemptInfo(ctx, f.examinee.addr, examID)
	require.NoError(t, err)
	assert.Zero(t, info.AttemptCount, "reverted submissions do not count")
}

func TestMaxAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	examID := f.createExam(t, []uint32{4, 9}, 1, 3, 0)

	// The same ciphertexts and proofs may be resubmitted.
	handles, proofs := f.encrypt(t, f.examinee, 1, 2)
	req := &model.SubmitAnswersRequest{ExamID: examID, EncryptedAnswers: handles, InputProofs: proofs}
	for i := 0; i < 3; i++ {
		_, _, err := f.ledger.SubmitAnswers(ctx, f.examinee.addr, req)
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}

	_, _, err := f.ledger.SubmitAnswers(ctx, f.examinee.addr, req)
	requireRevert(t, err, ReasonMaxAttempts)

	info, err := f.ledger.GetAttemptInfo(ctx, f.examinee.addr, examID)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), info.AttemptCount)
	assert.False(t, info.CanAttempt)
}

func TestCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	examID := f.createExam(t, []uint32{4}, 1, 5, 10)

	info, err := f.ledger.GetAttemptInfo(ctx, f.examinee.addr, examID)
	require.NoError(t, err)
	assert.True(t, info.CanAttempt)
	assert.Zero(t, info.CooldownEndTime)

	_, _, err = f.submit(t, examID, 1)
	require.NoError(t, err)
	submittedAt := f.clock.Now().Unix()

	info, err = f.ledger.GetAttemptInfo(ctx, f.examinee.addr, examID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), info.AttemptCount)
	assert.Equal(t, submittedAt, info.LastAttemptTime)
	assert.Equal(t, submittedAt+600, info.CooldownEndTime)
	assert.False(t, info.CanAttempt)

	f.clock.Advance(9 * time.Minute)
	_, _, err = f.submit(t, examID, 1)
	requireRevert(t, err, ReasonCooldown)

	f.clock.Advance(time.Minute)
	info, err = f.ledger.GetAttemptInfo(ctx, f.examinee.addr, examID)
	require.NoError(t, err)
	assert.True(t, info.CanAttempt)
	_, _, err = f.submit(t, examID, 1)
	require.NoError(t, err)
}

func TestMintCertificate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	examID := f.createExam(t, []uint32{4}, 1, 3, 0)
	_, subID, err := f.submit(t, examID, 4)
	require.NoError(t, err)

	has, err := f.ledger.HasCertificate(ctx, f.examinee.addr, examID)
	require.NoError(t, err)
	assert.False(t, has)

	receipt, err := f.ledger.MintCertificate(ctx, f.examinee.addr, &model.MintCertificateRequest{
		SubmissionID: subID, ExamID: examID, DecryptedScore: 1,
	})
	require.NoError(t, err)
	require.Len(t, receipt.Logs, 1)
	minted, err := DecodeCertificateMinted(receipt.Logs[0])
	require.NoError(t, err)
	assert.Equal(t, CertificateMinted{ExamID: examID, Examinee: f.examinee.addr, SubmissionID: subID}, *minted)

	has, err = f.ledger.HasCertificate(ctx, f.examinee.addr, examID)
	require.NoError(t, err)
	assert.True(t, has)

	_, err = f.ledger.MintCertificate(ctx, f.examinee.addr, &model.MintCertificateRequest{
		SubmissionID: subID, ExamID: examID, DecryptedScore: 1,
	})
	requireRevert(t, err, ReasonAlreadyMinted)
}

func TestMintCertificateReverts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	examID := f.createExam(t, []uint32{4, 9}, 1, 3, 0)
	otherExam := f.createExam(t, []uint32{1}, 1, 3, 0)
	_, failedID, err := f.submit(t, examID, 1, 2)
	require.NoError(t, err)
	_, passedID, err := f.submit(t, examID, 4, 2)
	require.NoError(t, err)

	tests := []struct {
		name   string
		from   chain.Address
		req    model.MintCertificateRequest
		reason string
	}{
		{"unknown submission", f.examinee.addr, model.MintCertificateRequest{SubmissionID: 42, ExamID: examID, DecryptedScore: 1}, ReasonSubmissionNotFound},
		{"not the owner", f.examiner.addr, model.MintCertificateRequest{SubmissionID: passedID, ExamID: examID, DecryptedScore: 1}, ReasonNotOwner},
		{"other exam", f.examinee.addr, model.MintCertificateRequest{SubmissionID: passedID, ExamID: otherExam, DecryptedScore: 1}, ReasonExamMismatch},
		{"below threshold", f.examinee.addr, model.MintCertificateRequest{SubmissionID: failedID, ExamID: examID, DecryptedScore: 0}, ReasonBelowThreshold},
		{"inflated score", f.examinee.addr, model.MintCertificateRequest{SubmissionID: failedID, ExamID: examID, DecryptedScore: 2}, ReasonScoreMismatch},
		{"wrong passing score", f.examinee.addr, model.MintCertificateRequest{SubmissionID: passedID, ExamID: examID, DecryptedScore: 2}, ReasonScoreMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := f.ledger.MintCertificate(ctx, tt.from, &req)
			requireRevert(t, err, tt.reason)
		})
	}

	has, err := f.ledger.HasCertificate(ctx, f.examinee.addr, examID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestReceiptsAndLogs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	examID := f.createExam(t, []uint32{4}, 1, 3, 0)
	receipt, _, err := f.submit(t, examID, 4)
	require.NoError(t, err)

	got, err := f.ledger.GetReceipt(ctx, receipt.TxHash)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.BlockNumber)
	assert.Equal(t, model.ReceiptStatusSuccess, got.Status)
	assert.Equal(t, contractAddr, got.To)

	_, err = f.ledger.GetReceipt(ctx, chain.Hash{1})
	assert.ErrorIs(t, err, ErrNotFound)

	topic := TopicAnswersSubmitted
	examinee := chain.AddressTopic(f.examinee.addr)
	logs, err := f.ledger.QueryLogs(ctx, model.LogFilter{Topics: [4]*chain.Hash{&topic, nil, nil, &examinee}})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "AnswersSubmitted", EventName(logs[0].Topics[0]))

	all, err := f.ledger.QueryLogs(ctx, model.LogFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	assert.Len(t, f.sink.logs, 3)
}

func TestEventTopics(t *testing.T) {
	topic, ok := EventTopic("ExamCreated")
	require.True(t, ok)
	assert.Equal(t, chain.EventID("ExamCreated(uint256,address,string,uint32,uint32)"), topic)

	_, ok = EventTopic("Transfer")
	assert.False(t, ok)

	_, err := DecodeLog(model.Log{Topics: []chain.Hash{{0xaa}}})
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestRoster(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	examID := f.createExam(t, []uint32{4}, 1, 3, 0)
	_, subID, err := f.submit(t, examID, 4)
	require.NoError(t, err)
	_, err = f.ledger.MintCertificate(ctx, f.examinee.addr, &model.MintCertificateRequest{
		SubmissionID: subID, ExamID: examID, DecryptedScore: 1,
	})
	require.NoError(t, err)

	rows, err := f.ledger.Roster(ctx, examID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, f.examinee.addr, rows[0].Examinee)
	assert.Equal(t, uint32(1), rows[0].AttemptCount)
	assert.True(t, rows[0].HasCertificate)
}

func TestConcurrentSubmissionsAreOrdered(t *testing.T) {
	f := newFixture(t)
	examID := f.createExam(t, []uint32{4}, 1, 100, 0)

	const n = 10
	reqs := make([]*model.SubmitAnswersRequest, n)
	for i := range reqs {
		handles, proofs := f.encrypt(t, f.examinee, 4)
		reqs[i] = &model.SubmitAnswersRequest{ExamID: examID, EncryptedAnswers: handles, InputProofs: proofs}
	}

	var wg sync.WaitGroup
	ids := make(chan uint64, n)
	for _, req := range reqs {
		wg.Add(1)
		go func(req *model.SubmitAnswersRequest) {
			defer wg.Done()
			_, id, err := f.ledger.SubmitAnswers(context.Background(), f.examinee.addr, req)
			if err == nil {
				ids <- id
			}
		}(req)
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool)
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, n)
	for id := uint64(1); id <= n; id++ {
		assert.True(t, seen[id], "submission %d missing", id)
	}

	info, err := f.ledger.GetAttemptInfo(context.Background(), f.examinee.addr, examID)
	require.NoError(t, err)
	assert.Equal(t, uint32(n), info.AttemptCount)
}

func TestEventQueryFilter(t *testing.T) {
	examinee := newAccount(t).addr
	accountTopic := chain.AddressTopic(examinee)

	t.Run("certificate minted by exam and examinee", func(t *testing.T) {
		f, err := EventQuery{Event: "CertificateMinted", ExamID: 3, Account: &examinee}.Filter()
		require.NoError(t, err)
		assert.Equal(t, TopicCertificateMinted, *f.Topics[0])
		assert.Equal(t, chain.Uint64Topic(3), *f.Topics[1])
		assert.Equal(t, accountTopic, *f.Topics[2])
		assert.Nil(t, f.Topics[3])
	})

	t.Run("answers submitted keeps submission id first", func(t *testing.T) {
		f, err := EventQuery{Event: "AnswersSubmitted", SubmissionID: 9, Account: &examinee, ToBlock: 20}.Filter()
		require.NoError(t, err)
		assert.Equal(t, chain.Uint64Topic(9), *f.Topics[1])
		assert.Nil(t, f.Topics[2])
		assert.Equal(t, accountTopic, *f.Topics[3])
		assert.Equal(t, uint64(20), f.ToBlock)
	})

	t.Run("no event matches every log", func(t *testing.T) {
		f, err := EventQuery{FromBlock: 5}.Filter()
		require.NoError(t, err)
		assert.True(t, f.Matches(model.Log{BlockNumber: 5, Topics: []chain.Hash{TopicExamGraded}}))
		assert.False(t, f.Matches(model.Log{BlockNumber: 4, Topics: []chain.Hash{TopicExamGraded}}))
	})

	t.Run("errors", func(t *testing.T) {
		_, err := EventQuery{ExamID: 1}.Filter()
		assert.Error(t, err)

		_, err = EventQuery{Event: "ExamDeleted"}.Filter()
		assert.ErrorIs(t, err, ErrUnknownEvent)

		_, err = EventQuery{Event: "ExamCreated", SubmissionID: 1}.Filter()
		assert.Error(t, err)
	})
}
