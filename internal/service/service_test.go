package service

import (
	"context"
	"encoding/hex"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
	"github.com/cogniseal/cogniseal-ledger/internal/config"
	"github.com/cogniseal/cogniseal-ledger/internal/fhe"
	"github.com/cogniseal/cogniseal-ledger/internal/ledger"
	"github.com/cogniseal/cogniseal-ledger/internal/model"
	"github.com/cogniseal/cogniseal-ledger/internal/repository"
	"github.com/cogniseal/cogniseal-ledger/internal/wallet"
)

var contractAddr = chain.MustParseAddress("0x5fbdb2315678afecb367f032d93f642f64180aa3")

type memoryChallenges struct {
	mu    sync.Mutex
	items map[string]string
}

func (m *memoryChallenges) Save(_ context.Context, address, message string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[string]string)
	}
	m.items[address] = message
	return nil
}

func (m *memoryChallenges) Consume(_ context.Context, address string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.items[address]
	if !ok {
		return "", repository.ErrCacheMiss
	}
	delete(m.items, address)
	return msg, nil
}

func testConfig() *config.Config {
	return &config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour}
}

func login(t *testing.T, svc *AuthService, w *wallet.Wallet, msg string) (*model.WalletLoginResponse, error) {
	t.Helper()
	return svc.Login(context.Background(), &model.WalletLoginRequest{
		Address:   w.Address().String(),
		PublicKey: hex.EncodeToString(w.PublicKey()),
		Signature: hex.EncodeToString(w.Sign([]byte(msg))),
	})
}

func TestWalletLogin(t *testing.T) {
	svc := NewAuthService(testConfig(), &memoryChallenges{})
	w, err := wallet.New()
	require.NoError(t, err)

	ch, err := svc.IssueChallenge(context.Background(), w.Address())
	require.NoError(t, err)
	assert.True(t, strings.Contains(ch.Message, w.Address().String()))

	resp, err := login(t, svc, w, ch.Message)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), resp.Address)

	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), claims.Address)

	t.Run("challenge is single use", func(t *testing.T) {
		_, err := login(t, svc, w, ch.Message)
		assert.ErrorIs(t, err, ErrChallengeExpired)
	})
}

func TestWalletLoginRejectsWrongSigner(t *testing.T) {
	svc := NewAuthService(testConfig(), &memoryChallenges{})
	owner, err := wallet.New()
	require.NoError(t, err)
	other, err := wallet.New()
	require.NoError(t, err)

	ch, err := svc.IssueChallenge(context.Background(), owner.Address())
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), &model.WalletLoginRequest{
		Address:   owner.Address().String(),
		PublicKey: hex.EncodeToString(other.PublicKey()),
		Signature: hex.EncodeToString(other.Sign([]byte(ch.Message))),
	})
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestWalletLoginRejectsTamperedMessage(t *testing.T) {
	svc := NewAuthService(testConfig(), &memoryChallenges{})
	w, err := wallet.New()
	require.NoError(t, err)

	ch, err := svc.IssueChallenge(context.Background(), w.Address())
	require.NoError(t, err)

	_, err = login(t, svc, w, ch.Message+"!")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestValidateTokenExpiry(t *testing.T) {
	svc := NewAuthService(testConfig(), &memoryChallenges{})
	start := time.Unix(1_700_000_000, 0)
	svc.now = func() time.Time { return start }

	token, _, err := svc.GenerateToken(contractAddr)
	require.NoError(t, err)

	svc.now = func() time.Time { return start.Add(2 * time.Hour) }
	_, err = svc.ValidateToken(token)
	assert.Error(t, err)

	other := NewAuthService(&config.Config{JWTSecret: "other", JWTExpiry: time.Hour}, &memoryChallenges{})
	other.now = func() time.Time { return start }
	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

// ─── ExamService ──────────────────────────────────────────────────────────

type mockExamCache struct {
	mock.Mock
}

func (m *mockExamCache) Warm(ctx context.Context, exam *model.Exam, questions []model.Question) error {
	return m.Called(ctx, exam, questions).Error(0)
}

func (m *mockExamCache) GetExam(ctx context.Context, examID uint64) (*model.Exam, error) {
	args := m.Called(ctx, examID)
	exam, _ := args.Get(0).(*model.Exam)
	return exam, args.Error(1)
}

func (m *mockExamCache) GetQuestions(ctx context.Context, examID uint64) ([]model.Question, error) {
	args := m.Called(ctx, examID)
	questions, _ := args.Get(0).([]model.Question)
	return questions, args.Error(1)
}

func newLedgerWithExam(t *testing.T) (*ledger.Ledger, uint64) {
	t.Helper()
	cop, err := fhe.NewCoprocessor(31337, []byte("service-test-master-key"), fhe.NewMemoryStore())
	require.NoError(t, err)
	l := ledger.New(contractAddr, ledger.NewMemoryStore(), cop)

	examiner, err := wallet.New()
	require.NoError(t, err)
	out, err := cop.Instance().CreateEncryptedInput(contractAddr, examiner.Address()).Add32(2).Encrypt(examiner.PrivateKey())
	require.NoError(t, err)

	_, id, err := l.CreateExam(context.Background(), examiner.Address(), &model.CreateExamRequest{
		Title:            "Basic Math Test",
		QuestionTexts:    []string{"What is 1+1?\nA) 1\nB) 2"},
		QuestionTypes:    []model.QuestionType{model.QuestionTypeMultipleChoice},
		EncryptedAnswers: out.Handles,
		InputProofs:      []chain.HexBytes{out.InputProof},
		PassingScore:     1,
		TimeLimitMinutes: 30,
		MaxAttempts:      3,
	})
	require.NoError(t, err)
	return l, id
}

func TestExamServiceWarmsOnMiss(t *testing.T) {
	l, id := newLedgerWithExam(t)
	cache := &mockExamCache{}
	cache.On("GetExam", mock.Anything, id).Return(nil, repository.ErrCacheMiss).Once()
	cache.On("Warm", mock.Anything, mock.MatchedBy(func(e *model.Exam) bool { return e.ID == id }),
		mock.MatchedBy(func(qs []model.Question) bool { return len(qs) == 1 })).Return(nil).Once()

	svc := NewExamService(l, cache, zerolog.Nop())
	exam, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Basic Math Test", exam.Title)
	cache.AssertExpectations(t)
}

func TestExamServiceServesFromCache(t *testing.T) {
	l, id := newLedgerWithExam(t)
	cached := &model.Exam{ID: id, Title: "cached"}
	cache := &mockExamCache{}
	cache.On("GetExam", mock.Anything, id).Return(cached, nil).Once()

	svc := NewExamService(l, cache, zerolog.Nop())
	exam, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "cached", exam.Title)
	cache.AssertNotCalled(t, "Warm", mock.Anything, mock.Anything, mock.Anything)
}

func TestExamServiceWithoutCache(t *testing.T) {
	l, id := newLedgerWithExam(t)
	svc := NewExamService(l, nil, zerolog.Nop())

	questions, err := svc.Questions(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, model.QuestionTypeMultipleChoice, questions[0].Type)

	_, err = svc.Get(context.Background(), id+1)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	exams, page, err := svc.List(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Len(t, exams, 1)
	assert.Equal(t, 1, page.TotalItems)
	assert.Equal(t, 1, page.TotalPages)
}
