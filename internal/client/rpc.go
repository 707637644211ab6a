package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
	"github.com/cogniseal/cogniseal-ledger/internal/fhe"
	"github.com/cogniseal/cogniseal-ledger/internal/model"
	"github.com/cogniseal/cogniseal-ledger/internal/response"
)

// APIError is a non-2xx answer from the ledger API.
type APIError struct {
	Status  int
	Code    response.ErrCode
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s (%d): %s %v", e.Code, e.Status, e.Message, e.Fields)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// RevertError is a transaction or read the ledger rejected. Reason is the
// revert string, e.g. "Maximum attempts reached".
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string { return "execution reverted: " + e.Reason }

// RPC talks to the ledger HTTP API.
type RPC struct {
	base string
	http *http.Client
}

// NewRPC creates an RPC client for baseURL (e.g. http://localhost:8080).
// httpClient may be nil.
func NewRPC(baseURL string, httpClient *http.Client) *RPC {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &RPC{base: baseURL, http: httpClient}
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func (r *RPC) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s %s response (%d): %w", method, path, resp.StatusCode, err)
	}
	if env.Error != nil {
		if env.Error.Code == response.ErrExecutionReverted {
			return &RevertError{Reason: env.Error.Message}
		}
		return &APIError{Status: resp.StatusCode, Code: env.Error.Code, Message: env.Error.Message, Fields: env.Error.Fields}
	}
	if resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: resp.Status}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s data: %w", method, path, err)
	}
	return nil
}

// ─── Network + Auth ──────────────────────────────────────────────────────

func (r *RPC) Network(ctx context.Context) (*model.NetworkInfo, error) {
	var info model.NetworkInfo
	return &info, r.do(ctx, http.MethodGet, "/api/v1/network", "", nil, &info)
}

func (r *RPC) Challenge(ctx context.Context, addr chain.Address) (*model.ChallengeResponse, error) {
	var ch model.ChallengeResponse
	err := r.do(ctx, http.MethodPost, "/api/v1/auth/challenge", "", model.ChallengeRequest{Address: addr.String()}, &ch)
	return &ch, err
}

func (r *RPC) Login(ctx context.Context, req model.WalletLoginRequest) (*model.WalletLoginResponse, error) {
	var resp model.WalletLoginResponse
	err := r.do(ctx, http.MethodPost, "/api/v1/auth/login", "", req, &resp)
	return &resp, err
}

// ─── Reads ───────────────────────────────────────────────────────────────

func (r *RPC) ExamCount(ctx context.Context) (uint64, error) {
	var c model.ExamCount
	err := r.do(ctx, http.MethodGet, "/api/v1/exams/count", "", nil, &c)
	return c.Count, err
}

func (r *RPC) ExamInfo(ctx context.Context, examID uint64) (*model.Exam, error) {
	var exam model.Exam
	err := r.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/exams/%d", examID), "", nil, &exam)
	return &exam, err
}

// ListExams returns one page of exams, oldest first.
func (r *RPC) ListExams(ctx context.Context, page, perPage int) ([]model.Exam, error) {
	var out struct {
		Exams []model.Exam `json:"exams"`
	}
	path := fmt.Sprintf("/api/v1/exams?page=%d&per_page=%d", page, perPage)
	err := r.do(ctx, http.MethodGet, path, "", nil, &out)
	return out.Exams, err
}

func (r *RPC) Questions(ctx context.Context, examID uint64) ([]model.Question, error) {
	var out struct {
		Questions []model.Question `json:"questions"`
	}
	err := r.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/exams/%d/questions", examID), "", nil, &out)
	return out.Questions, err
}

func (r *RPC) AttemptInfo(ctx context.Context, examID uint64, examinee chain.Address) (*model.AttemptInfo, error) {
	var info model.AttemptInfo
	err := r.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/exams/%d/attempts/%s", examID, examinee), "", nil, &info)
	return &info, err
}

func (r *RPC) SubmissionScore(ctx context.Context, submissionID uint64) (fhe.Handle, error) {
	var s model.ScoreHandle
	err := r.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/submissions/%d/score", submissionID), "", nil, &s)
	return s.EncryptedScore, err
}

func (r *RPC) HasCertificate(ctx context.Context, examinee chain.Address, examID uint64) (bool, error) {
	var s model.CertificateStatus
	err := r.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/certificates/%s/%d", examinee, examID), "", nil, &s)
	return s.HasCertificate, err
}

// LogQuery mirrors the /logs query parameters. Zero fields are omitted.
type LogQuery struct {
	Event        string
	ExamID       uint64
	SubmissionID uint64
	Account      *chain.Address
	FromBlock    uint64
	Limit        int
}

func (r *RPC) QueryLogs(ctx context.Context, q LogQuery) ([]model.Log, error) {
	v := url.Values{}
	if q.Event != "" {
		v.Set("event", q.Event)
	}
	if q.ExamID != 0 {
		v.Set("exam_id", strconv.FormatUint(q.ExamID, 10))
	}
	if q.SubmissionID != 0 {
		v.Set("submission_id", strconv.FormatUint(q.SubmissionID, 10))
	}
	if q.Account != nil {
		v.Set("account", q.Account.String())
	}
	if q.FromBlock != 0 {
		v.Set("from_block", strconv.FormatUint(q.FromBlock, 10))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	var out struct {
		Logs []model.Log `json:"logs"`
	}
	err := r.do(ctx, http.MethodGet, "/api/v1/logs?"+v.Encode(), "", nil, &out)
	return out.Logs, err
}

// ─── Transactions ────────────────────────────────────────────────────────

func (r *RPC) CreateExam(ctx context.Context, token string, req *model.CreateExamRequest) (*model.Receipt, uint64, error) {
	var out struct {
		Receipt model.Receipt `json:"receipt"`
		ExamID  uint64        `json:"exam_id"`
	}
	err := r.do(ctx, http.MethodPost, "/api/v1/tx/create-exam", token, req, &out)
	return &out.Receipt, out.ExamID, err
}

func (r *RPC) SubmitAnswers(ctx context.Context, token string, req *model.SubmitAnswersRequest) (*model.Receipt, error) {
	var out struct {
		Receipt model.Receipt `json:"receipt"`
	}
	err := r.do(ctx, http.MethodPost, "/api/v1/tx/submit-answers", token, req, &out)
	return &out.Receipt, err
}

func (r *RPC) MintCertificate(ctx context.Context, token string, req *model.MintCertificateRequest) (*model.Receipt, error) {
	var out struct {
		Receipt model.Receipt `json:"receipt"`
	}
	err := r.do(ctx, http.MethodPost, "/api/v1/tx/mint-certificate", token, req, &out)
	return &out.Receipt, err
}

// UserDecrypt returns the sealed results keyed by handle.
func (r *RPC) UserDecrypt(ctx context.Context, req fhe.UserDecryptRequest) (map[fhe.Handle]chain.HexBytes, error) {
	var out struct {
		Results map[fhe.Handle]chain.HexBytes `json:"results"`
	}
	err := r.do(ctx, http.MethodPost, "/api/v1/fhe/user-decrypt", "", req, &out)
	return out.Results, err
}
