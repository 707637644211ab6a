package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
	"github.com/cogniseal/cogniseal-ledger/internal/fhe"
	"github.com/cogniseal/cogniseal-ledger/internal/ledger"
	"github.com/cogniseal/cogniseal-ledger/internal/middleware"
	"github.com/cogniseal/cogniseal-ledger/internal/model"
	"github.com/cogniseal/cogniseal-ledger/internal/response"
	"github.com/cogniseal/cogniseal-ledger/internal/validator"
)

// TxHandler submits transactions on behalf of the authenticated wallet and
// serves user decryption.
type TxHandler struct {
	ledger  *ledger.Ledger
	metrics *middleware.Metrics
	now     func() time.Time
	log     zerolog.Logger
}

// NewTxHandler creates a new TxHandler. metrics may be nil.
func NewTxHandler(l *ledger.Ledger, metrics *middleware.Metrics, log zerolog.Logger) *TxHandler {
	return &TxHandler{
		ledger:  l,
		metrics: metrics,
		now:     time.Now,
		log:     log.With().Str("component", "tx_handler").Logger(),
	}
}

func (h *TxHandler) sender(c *gin.Context) (chain.Address, bool) {
	addr, ok := middleware.GetAddress(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
	}
	return addr, ok
}

func (h *TxHandler) fail(c *gin.Context, method string, err error) {
	if _, reverted := ledger.RevertReason(err); reverted && h.metrics != nil {
		h.metrics.ObserveRevert(method)
	}
	failLedger(c, h.log, err)
}

// CreateExam godoc
// POST /api/v1/tx/create-exam
// Registers an exam with encrypted expected answers.
func (h *TxHandler) CreateExam(c *gin.Context) {
	from, ok := h.sender(c)
	if !ok {
		return
	}
	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	receipt, examID, err := h.ledger.CreateExam(c.Request.Context(), from, &req)
	if err != nil {
		h.fail(c, "createExam", err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"receipt": receipt, "exam_id": examID})
}

// SubmitAnswers godoc
// POST /api/v1/tx/submit-answers
// Submits encrypted answers; the score is computed and stored encrypted.
func (h *TxHandler) SubmitAnswers(c *gin.Context) {
	from, ok := h.sender(c)
	if !ok {
		return
	}
	var req model.SubmitAnswersRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	receipt, submissionID, err := h.ledger.SubmitAnswers(c.Request.Context(), from, &req)
	if err != nil {
		h.fail(c, "submitAnswers", err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"receipt": receipt, "submission_id": submissionID})
}

// MintCertificate godoc
// POST /api/v1/tx/mint-certificate
func (h *TxHandler) MintCertificate(c *gin.Context) {
	from, ok := h.sender(c)
	if !ok {
		return
	}
	var req model.MintCertificateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	receipt, err := h.ledger.MintCertificate(c.Request.Context(), from, &req)
	if err != nil {
		h.fail(c, "mintCertificate", err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"receipt": receipt})
}

// UserDecrypt godoc
// POST /api/v1/fhe/user-decrypt
// Re-encrypts handles to the ephemeral key named in the signed authorization.
// The authorization itself identifies the user, so no session is needed.
func (h *TxHandler) UserDecrypt(c *gin.Context) {
	var req fhe.UserDecryptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	results, err := h.ledger.Coprocessor().UserDecrypt(c.Request.Context(), req, h.now())
	if err != nil {
		failLedger(c, h.log, err)
		return
	}

	out := make(map[fhe.Handle]chain.HexBytes, len(results))
	for handle, sealed := range results {
		out[handle] = sealed
	}
	response.Success(c, http.StatusOK, gin.H{"results": out})
}
