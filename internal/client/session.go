package client

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
	"github.com/cogniseal/cogniseal-ledger/internal/fhe"
	"github.com/cogniseal/cogniseal-ledger/internal/ledger"
	"github.com/cogniseal/cogniseal-ledger/internal/model"
	"github.com/cogniseal/cogniseal-ledger/internal/wallet"
)

// User-facing messages with fixed wording.
const (
	MsgAnswerCountMismatch = "Answers count mismatch"
	MsgIgnoreSubmission    = "Ignore answer submission"
	MsgIgnoreCreation      = "Ignore exam creation"
	MsgIgnoreDecryption    = "Ignore FHEVM decryption"
)

var (
	// ErrStale means the binding changed while the operation was in flight.
	// The result was discarded and no state was touched.
	ErrStale = errors.New("stale result discarded")
	// ErrBusy means the same kind of operation is already running.
	ErrBusy          = errors.New("operation already in progress")
	ErrNotConnected  = errors.New("session is not connected")
	ErrNotDeployed   = errors.New("contract not deployed on this chain")
	ErrExamNotLoaded = errors.New("exam and questions must be loaded first")
	ErrAnswerCount   = errors.New("answers count mismatch")
	ErrNoScore       = errors.New("no score handle loaded")
	ErrNoClearScore  = errors.New("score has not been decrypted")
	ErrMissingEvent  = errors.New("expected event not found in receipt")
)

// Binding is what a result is valid for: the chain, the contract and the
// signing wallet. A result computed under one binding is discarded if the
// session has moved to another by the time it arrives.
type Binding struct {
	ChainID  uint64
	Contract chain.Address
	Signer   *wallet.Wallet

	token    string
	instance *fhe.Instance
}

func (b Binding) connected() bool { return b.Signer != nil && b.instance != nil }

func (b Binding) same(o Binding) bool {
	if b.Signer == nil || o.Signer == nil {
		return false
	}
	return b.ChainID == o.ChainID && b.Contract == o.Contract && b.Signer.Address() == o.Signer.Address()
}

// ClearScore is a decrypted score together with the handle it came from.
type ClearScore struct {
	Handle fhe.Handle
	Clear  uint32
}

// State is a snapshot of everything a UI renders.
type State struct {
	ExamCount    uint64
	ExamInfo     *model.Exam
	Questions    []model.Question
	AttemptInfo  *model.AttemptInfo
	ScoreHandle  fhe.Handle
	ClearScore   *ClearScore
	Message      string
	IsLoading    bool
	IsSubmitting bool
	IsDecrypting bool
}

// Session sequences ledger reads, encrypted transactions and score
// decryption for one user. Methods are safe for concurrent use; each
// operation checks after every round-trip that its binding is still current.
type Session struct {
	rpc     *RPC
	storage fhe.StringStorage
	now     func() time.Time
	log     zerolog.Logger

	mu      sync.Mutex
	binding Binding
	state   State

	loading    atomic.Bool
	submitting atomic.Bool
	decrypting atomic.Bool
}

// NewSession creates a Session. storage caches decryption signatures.
func NewSession(rpc *RPC, storage fhe.StringStorage, log zerolog.Logger) *Session {
	return &Session{
		rpc:     rpc,
		storage: storage,
		now:     time.Now,
		log:     log.With().Str("component", "client").Logger(),
	}
}

// ─── Binding ─────────────────────────────────────────────────────────────

// Connect binds the session to the node's chain and contract and logs the
// signer in. Results of operations started under a previous binding are
// discarded when they arrive.
func (s *Session) Connect(ctx context.Context, signer *wallet.Wallet) error {
	info, err := s.rpc.Network(ctx)
	if err != nil {
		s.setMessage(Describe("Network lookup", err))
		return err
	}
	if info.ContractAddress.IsZero() {
		s.setMessage(fmt.Sprintf("CogniSeal deployment not found for chainId=%d.", info.ChainID))
		return ErrNotDeployed
	}
	if len(info.NetworkPublicKey) != 32 {
		return fmt.Errorf("network public key has %d bytes", len(info.NetworkPublicKey))
	}

	token, err := s.login(ctx, signer)
	if err != nil {
		s.setMessage(Describe("Login", err))
		return err
	}

	var key [32]byte
	copy(key[:], info.NetworkPublicKey)
	next := Binding{
		ChainID:  info.ChainID,
		Contract: info.ContractAddress,
		Signer:   signer,
		token:    token,
		instance: fhe.NewInstance(info.ChainID, key),
	}
	s.mu.Lock()
	if !s.binding.same(next) {
		// Loaded data and decrypted scores belong to the previous binding.
		s.state = State{}
	}
	s.binding = next
	s.state.Message = ""
	s.mu.Unlock()

	s.log.Debug().
		Uint64("chain_id", info.ChainID).
		Str("contract", info.ContractAddress.String()).
		Str("signer", signer.Address().String()).
		Msg("Session connected")
	return nil
}

func (s *Session) login(ctx context.Context, signer *wallet.Wallet) (string, error) {
	ch, err := s.rpc.Challenge(ctx, signer.Address())
	if err != nil {
		return "", err
	}
	resp, err := s.rpc.Login(ctx, model.WalletLoginRequest{
		Address:   signer.Address().String(),
		PublicKey: hex.EncodeToString(signer.PublicKey()),
		Signature: hex.EncodeToString(signer.Sign([]byte(ch.Message))),
	})
	if err != nil {
		return "", err
	}
	return resp.Token, nil
}

// Disconnect drops the binding. In-flight operations become stale.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.binding = Binding{}
	s.mu.Unlock()
}

// Binding returns the current binding.
func (s *Session) Binding() Binding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.binding
}

// Address returns the signer address, or the zero address when disconnected.
func (s *Session) Address() chain.Address {
	b := s.Binding()
	if b.Signer == nil {
		return chain.ZeroAddress
	}
	return b.Signer.Address()
}

// State returns a snapshot of the session state.
func (s *Session) State() State {
	s.mu.Lock()
	st := s.state
	st.Questions = append([]model.Question(nil), s.state.Questions...)
	s.mu.Unlock()

	st.IsLoading = s.loading.Load()
	st.IsSubmitting = s.submitting.Load()
	st.IsDecrypting = s.decrypting.Load()
	return st
}

func (s *Session) bound() (Binding, error) {
	b := s.Binding()
	if !b.connected() {
		return b, ErrNotConnected
	}
	return b, nil
}

func (s *Session) stale(b Binding) bool {
	return !s.Binding().same(b)
}

func (s *Session) setMessage(msg string) {
	s.mu.Lock()
	s.state.Message = msg
	s.mu.Unlock()
	s.log.Debug().Msg(msg)
}

// commit applies fn unless the binding moved on.
func (s *Session) commit(b Binding, fn func(st *State)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.binding.same(b) {
		return false
	}
	fn(&s.state)
	return true
}

// ─── Reads ───────────────────────────────────────────────────────────────

// RefreshExamCount reloads the number of exams on the ledger.
func (s *Session) RefreshExamCount(ctx context.Context) (uint64, error) {
	if !s.loading.CompareAndSwap(false, true) {
		return 0, ErrBusy
	}
	defer s.loading.Store(false)

	b, err := s.bound()
	if err != nil {
		return 0, err
	}
	count, err := s.rpc.ExamCount(ctx)
	if err != nil {
		s.setMessage(Describe("CogniSeal.getExamCount()", err))
		return 0, err
	}
	if !s.commit(b, func(st *State) { st.ExamCount = count }) {
		return 0, ErrStale
	}
	return count, nil
}

func (s *Session) LoadExamInfo(ctx context.Context, examID uint64) (*model.Exam, error) {
	b, err := s.bound()
	if err != nil {
		return nil, err
	}
	exam, err := s.rpc.ExamInfo(ctx, examID)
	if err != nil {
		s.setMessage(Describe("getExamInfo()", err))
		return nil, err
	}
	if !s.commit(b, func(st *State) {
		if st.ExamInfo == nil || st.ExamInfo.ID != examID {
			st.Questions = nil
		}
		st.ExamInfo = exam
	}) {
		return nil, ErrStale
	}
	return exam, nil
}

// LoadQuestions loads the questions of the exam loaded by LoadExamInfo.
func (s *Session) LoadQuestions(ctx context.Context, examID uint64) ([]model.Question, error) {
	b, err := s.bound()
	if err != nil {
		return nil, err
	}
	if exam := s.State().ExamInfo; exam == nil || exam.ID != examID {
		return nil, ErrExamNotLoaded
	}
	questions, err := s.rpc.Questions(ctx, examID)
	if err != nil {
		s.setMessage(Describe("getQuestion()", err))
		return nil, err
	}
	if !s.commit(b, func(st *State) { st.Questions = questions }) {
		return nil, ErrStale
	}
	return questions, nil
}

func (s *Session) LoadAttemptInfo(ctx context.Context, examID uint64, examinee chain.Address) (*model.AttemptInfo, error) {
	b, err := s.bound()
	if err != nil {
		return nil, err
	}
	info, err := s.rpc.AttemptInfo(ctx, examID, examinee)
	if err != nil {
		s.setMessage(Describe("getAttemptInfo()", err))
		return nil, err
	}
	if !s.commit(b, func(st *State) { st.AttemptInfo = info }) {
		return nil, ErrStale
	}
	return info, nil
}

// LoadSubmissionScore loads the encrypted score handle of a submission.
func (s *Session) LoadSubmissionScore(ctx context.Context, submissionID uint64) (fhe.Handle, error) {
	b, err := s.bound()
	if err != nil {
		return fhe.Handle{}, err
	}
	handle, err := s.rpc.SubmissionScore(ctx, submissionID)
	if err != nil {
		s.setMessage(Describe("getSubmissionScore()", err))
		return fhe.Handle{}, err
	}
	if !s.commit(b, func(st *State) { st.ScoreHandle = handle }) {
		return fhe.Handle{}, ErrStale
	}
	return handle, nil
}

// ─── Transactions ────────────────────────────────────────────────────────

// DraftQuestion is one question of an exam being authored. Answer is the
// option number (1-4) for multiple choice and the exact text otherwise.
type DraftQuestion struct {
	Text    string
	Type    model.QuestionType
	Options []string
	Answer  string
}

// ExamDraft is an exam before it is encrypted and submitted.
type ExamDraft struct {
	Title            string
	Description      string
	Questions        []DraftQuestion
	PassingScore     uint32
	TimeLimitMinutes uint32
	MaxAttempts      uint32
	CooldownMinutes  uint32
}

// encryptAnswer encodes answer for its question type and encrypts it bound
// to the contract and signer of b. Multiple-choice answers are encrypted as
// is; fill-in-blank answers are hashed to 32 bits, so matching is exact.
func encryptAnswer(b Binding, t model.QuestionType, answer string) (fhe.Handle, chain.HexBytes, error) {
	var v uint32
	if t == model.QuestionTypeMultipleChoice {
		n, err := strconv.ParseUint(strings.TrimSpace(answer), 10, 32)
		if err != nil {
			return fhe.Handle{}, nil, fmt.Errorf("multiple-choice answer %q is not an option number", answer)
		}
		v = uint32(n)
	} else {
		v = fhe.FillInBlankValue(answer)
	}
	out, err := b.instance.CreateEncryptedInput(b.Contract, b.Signer.Address()).Add32(v).Encrypt(b.Signer.PrivateKey())
	if err != nil {
		return fhe.Handle{}, nil, err
	}
	return out.Handles[0], out.InputProof, nil
}

// CreateExam encrypts the expected answers and registers the exam. It
// returns the new exam id.
func (s *Session) CreateExam(ctx context.Context, draft ExamDraft) (uint64, error) {
	b, err := s.bound()
	if err != nil {
		return 0, err
	}
	if !s.submitting.CompareAndSwap(false, true) {
		return 0, ErrBusy
	}
	defer s.submitting.Store(false)

	s.setMessage("Encrypting answers...")
	req := &model.CreateExamRequest{
		Title:            draft.Title,
		Description:      draft.Description,
		PassingScore:     draft.PassingScore,
		TimeLimitMinutes: draft.TimeLimitMinutes,
		MaxAttempts:      draft.MaxAttempts,
		CooldownMinutes:  draft.CooldownMinutes,
	}
	for i, q := range draft.Questions {
		text := q.Text
		if q.Type == model.QuestionTypeMultipleChoice {
			text = FormatQuestionText(q.Text, q.Options)
		}
		handle, proof, err := encryptAnswer(b, q.Type, q.Answer)
		if err != nil {
			s.setMessage(Describe("Exam creation", fmt.Errorf("question %d: %w", i+1, err)))
			return 0, err
		}
		req.QuestionTexts = append(req.QuestionTexts, text)
		req.QuestionTypes = append(req.QuestionTypes, q.Type)
		req.EncryptedAnswers = append(req.EncryptedAnswers, handle)
		req.InputProofs = append(req.InputProofs, proof)
	}

	if s.stale(b) {
		s.setMessage(MsgIgnoreCreation)
		return 0, ErrStale
	}

	s.setMessage("Submitting exam creation transaction...")
	receipt, _, err := s.rpc.CreateExam(ctx, b.token, req)
	if err != nil {
		s.setMessage(Describe("Exam creation", err))
		return 0, err
	}
	s.setMessage(fmt.Sprintf("Exam created! tx:%s", receipt.TxHash))

	if s.stale(b) {
		s.setMessage(MsgIgnoreCreation)
		return 0, ErrStale
	}

	examID, err := findEvent(receipt, ledger.TopicExamCreated, func(l model.Log) (uint64, error) {
		e, err := ledger.DecodeExamCreated(l)
		if err != nil {
			return 0, err
		}
		return e.ExamID, nil
	})
	if err != nil {
		s.setMessage(fmt.Sprintf("Failed to parse exam creation event: %v", err))
		return 0, err
	}

	if _, err := s.RefreshExamCount(ctx); err != nil && !errors.Is(err, ErrBusy) {
		s.log.Debug().Err(err).Msg("exam count refresh after creation failed")
	}
	return examID, nil
}

// SubmitAnswers encrypts answers, submits them in one transaction and
// returns the submission id from the AnswersSubmitted log. The exam and its
// questions must be loaded first.
func (s *Session) SubmitAnswers(ctx context.Context, examID uint64, answers []string) (uint64, error) {
	b, err := s.bound()
	if err != nil {
		return 0, err
	}
	if s.submitting.Load() {
		return 0, ErrBusy
	}
	st := s.State()
	if st.ExamInfo == nil || st.ExamInfo.ID != examID {
		return 0, ErrExamNotLoaded
	}
	if uint32(len(answers)) != st.ExamInfo.QuestionCount {
		s.setMessage(MsgAnswerCountMismatch)
		return 0, ErrAnswerCount
	}
	if !s.submitting.CompareAndSwap(false, true) {
		return 0, ErrBusy
	}
	defer s.submitting.Store(false)

	s.setMessage("Encrypting answers...")
	req := &model.SubmitAnswersRequest{ExamID: examID}
	for i, answer := range answers {
		qType := model.QuestionTypeFillInBlank
		if i < len(st.Questions) {
			qType = st.Questions[i].Type
		}
		handle, proof, err := encryptAnswer(b, qType, answer)
		if err != nil {
			s.setMessage(Describe("Answer submission", fmt.Errorf("answer %d: %w", i+1, err)))
			return 0, err
		}
		req.EncryptedAnswers = append(req.EncryptedAnswers, handle)
		req.InputProofs = append(req.InputProofs, proof)
	}

	if s.stale(b) {
		s.setMessage(MsgIgnoreSubmission)
		return 0, ErrStale
	}

	s.setMessage("Submitting answers...")
	receipt, err := s.rpc.SubmitAnswers(ctx, b.token, req)
	if err != nil {
		s.setMessage(Describe("Answer submission", err))
		return 0, err
	}
	s.setMessage(fmt.Sprintf("Answers submitted! tx:%s", receipt.TxHash))

	if s.stale(b) {
		s.setMessage(MsgIgnoreSubmission)
		return 0, ErrStale
	}

	id, err := findEvent(receipt, ledger.TopicAnswersSubmitted, func(l model.Log) (uint64, error) {
		e, err := ledger.DecodeAnswersSubmitted(l)
		if err != nil {
			return 0, err
		}
		return e.SubmissionID, nil
	})
	if err != nil {
		s.setMessage(fmt.Sprintf("Failed to parse submission event: %v", err))
		return 0, err
	}
	return id, nil
}

// findEvent returns the id decoded from the first log whose topic0 matches.
func findEvent(receipt *model.Receipt, topic0 chain.Hash, decode func(model.Log) (uint64, error)) (uint64, error) {
	for _, l := range receipt.Logs {
		if len(l.Topics) > 0 && l.Topics[0] == topic0 {
			return decode(l)
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrMissingEvent, ledger.EventName(topic0))
}

// DecryptScore decrypts the loaded score handle with a cached or freshly
// signed decryption authorization. A handle already decrypted is not
// decrypted again.
func (s *Session) DecryptScore(ctx context.Context) (uint32, error) {
	b, err := s.bound()
	if err != nil {
		return 0, err
	}
	if !s.decrypting.CompareAndSwap(false, true) {
		return 0, ErrBusy
	}
	defer s.decrypting.Store(false)

	st := s.State()
	handle := st.ScoreHandle
	if handle.IsZero() {
		return 0, ErrNoScore
	}
	if st.ClearScore != nil && st.ClearScore.Handle == handle {
		return st.ClearScore.Clear, nil
	}

	s.setMessage("Requesting decryption authorization...")
	sig, err := fhe.LoadOrSign(s.storage, b.instance, []chain.Address{b.Contract}, b.Signer.PrivateKey(), s.now())
	if err != nil {
		s.setMessage("Unable to build FHEVM decryption signature")
		return 0, err
	}
	if s.stale(b) {
		s.setMessage(MsgIgnoreDecryption)
		return 0, ErrStale
	}

	s.setMessage("Decrypting score...")
	results, err := s.rpc.UserDecrypt(ctx, fhe.UserDecryptRequest{
		Pairs:         []fhe.HandleContractPair{{Handle: handle, Contract: b.Contract}},
		Authorization: sig.Signature,
	})
	if err != nil {
		s.setMessage(Describe("Decryption", err))
		return 0, err
	}
	s.setMessage("Score decrypted!")

	if s.stale(b) {
		s.setMessage(MsgIgnoreDecryption)
		return 0, ErrStale
	}

	sealed, ok := results[handle]
	if !ok {
		s.setMessage("Failed to decrypt score")
		return 0, fmt.Errorf("no result for handle %s", handle)
	}
	score, err := sig.Open(sealed)
	if err != nil {
		s.setMessage("Failed to decrypt score")
		return 0, err
	}
	if !s.commit(b, func(st *State) {
		st.ClearScore = &ClearScore{Handle: handle, Clear: score}
		st.Message = fmt.Sprintf("Score: %d", score)
	}) {
		return 0, ErrStale
	}
	return score, nil
}

// CanMint reports whether the decrypted score reaches the loaded exam's
// passing score. The ledger re-checks it at mint time.
func (s *Session) CanMint() bool {
	st := s.State()
	return st.ClearScore != nil && st.ExamInfo != nil &&
		st.ClearScore.Handle == st.ScoreHandle &&
		st.ClearScore.Clear >= st.ExamInfo.PassingScore
}

// MintCertificate mints a certificate for a decrypted submission score.
func (s *Session) MintCertificate(ctx context.Context, submissionID, examID uint64) (*model.Receipt, error) {
	b, err := s.bound()
	if err != nil {
		return nil, err
	}
	decrypted := s.State().ClearScore
	if decrypted == nil {
		return nil, ErrNoClearScore
	}

	s.setMessage("Minting certificate...")
	receipt, err := s.rpc.MintCertificate(ctx, b.token, &model.MintCertificateRequest{
		SubmissionID:   submissionID,
		ExamID:         examID,
		DecryptedScore: decrypted.Clear,
	})
	if err != nil {
		s.setMessage(Describe("Certificate minting", err))
		return nil, err
	}
	s.setMessage(fmt.Sprintf("Certificate minted! tx:%s", receipt.TxHash))
	return receipt, nil
}

// ─── History ─────────────────────────────────────────────────────────────

// logPageSize is the page size used when walking /logs. The node caps a
// single response at 1000 entries.
var logPageSize = 1000

// scanLogs returns every log matching q, oldest first, paging forward by
// block until the node returns a short page.
func (s *Session) scanLogs(ctx context.Context, q LogQuery) ([]model.Log, error) {
	type logKey struct {
		tx    chain.Hash
		index uint32
	}
	seen := make(map[logKey]struct{})
	var out []model.Log
	q.Limit = logPageSize
	for {
		page, err := s.rpc.QueryLogs(ctx, q)
		if err != nil {
			return nil, err
		}
		added := 0
		for _, l := range page {
			k := logKey{l.TxHash, l.LogIndex}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, l)
			added++
		}
		if len(page) < logPageSize {
			return out, nil
		}
		// The last block may continue past this page, so it is read again
		// unless the page brought nothing new.
		next := page[len(page)-1].BlockNumber
		if added == 0 {
			next++
		}
		q.FromBlock = next
	}
}

// SubmissionResult is one row of the signer's results page.
type SubmissionResult struct {
	SubmissionID uint64     `json:"submission_id"`
	ExamID       uint64     `json:"exam_id"`
	ExamTitle    string     `json:"exam_title"`
	SubmittedAt  int64      `json:"submitted_at"`
	ScoreHandle  fhe.Handle `json:"score_handle"`
}

// MySubmissions lists the signer's submissions, newest first. Titles and
// score handles that cannot be read are left at their defaults.
func (s *Session) MySubmissions(ctx context.Context) ([]SubmissionResult, error) {
	b, err := s.bound()
	if err != nil {
		return nil, err
	}
	me := b.Signer.Address()
	logs, err := s.scanLogs(ctx, LogQuery{Event: "AnswersSubmitted", Account: &me})
	if err != nil {
		return nil, err
	}

	titles := make(map[uint64]string)
	results := make([]SubmissionResult, 0, len(logs))
	for _, l := range logs {
		e, err := ledger.DecodeAnswersSubmitted(l)
		if err != nil {
			continue
		}
		title, ok := titles[e.ExamID]
		if !ok {
			title = fmt.Sprintf("Exam %d", e.ExamID)
			if exam, err := s.rpc.ExamInfo(ctx, e.ExamID); err == nil {
				title = exam.Title
			}
			titles[e.ExamID] = title
		}
		r := SubmissionResult{
			SubmissionID: e.SubmissionID,
			ExamID:       e.ExamID,
			ExamTitle:    title,
			SubmittedAt:  e.SubmittedAt,
		}
		if h, err := s.rpc.SubmissionScore(ctx, e.SubmissionID); err == nil {
			r.ScoreHandle = h
		}
		results = append(results, r)
	}
	if s.stale(b) {
		return nil, ErrStale
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].SubmittedAt != results[j].SubmittedAt {
			return results[i].SubmittedAt > results[j].SubmittedAt
		}
		return results[i].SubmissionID > results[j].SubmissionID
	})
	return results, nil
}

// MyCertificates returns the ids of exams the signer holds a certificate
// for, ascending. Minted logs are merged with a HasCertificate scan over all
// exams so a gap in the log index does not hide a certificate.
func (s *Session) MyCertificates(ctx context.Context) ([]uint64, error) {
	b, err := s.bound()
	if err != nil {
		return nil, err
	}
	me := b.Signer.Address()

	found := make(map[uint64]struct{})
	logs, err := s.scanLogs(ctx, LogQuery{Event: "CertificateMinted", Account: &me})
	if err != nil {
		return nil, err
	}
	for _, l := range logs {
		if e, err := ledger.DecodeCertificateMinted(l); err == nil {
			found[e.ExamID] = struct{}{}
		}
	}

	count, err := s.rpc.ExamCount(ctx)
	if err != nil {
		s.log.Debug().Err(err).Msg("exam count unavailable, using logs only")
	}
	for id := uint64(1); id <= count; id++ {
		has, err := s.rpc.HasCertificate(ctx, me, id)
		if err != nil {
			continue
		}
		if has {
			found[id] = struct{}{}
		}
	}
	if s.stale(b) {
		return nil, ErrStale
	}

	ids := make([]uint64, 0, len(found))
	for id := range found {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
