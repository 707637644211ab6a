package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
	"github.com/cogniseal/cogniseal-ledger/internal/ledger"
	"github.com/cogniseal/cogniseal-ledger/internal/model"
	"github.com/cogniseal/cogniseal-ledger/internal/response"
)

// maxLogsPerQuery caps a single log scan.
const maxLogsPerQuery = 1000

// LedgerHandler serves chain-level reads: network info, submissions,
// certificates, logs and receipts.
type LedgerHandler struct {
	ledger *ledger.Ledger
	log    zerolog.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(l *ledger.Ledger, log zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger: l,
		log:    log.With().Str("component", "ledger_handler").Logger(),
	}
}

// Network godoc
// GET /api/v1/network
// Returns what a client needs to encrypt inputs for this ledger.
func (h *LedgerHandler) Network(c *gin.Context) {
	head, err := h.ledger.BlockNumber(c.Request.Context())
	if err != nil {
		failLedger(c, h.log, err)
		return
	}
	key := h.ledger.Coprocessor().NetworkKey()
	response.Success(c, http.StatusOK, model.NetworkInfo{
		ChainID:          h.ledger.ChainID(),
		ContractAddress:  h.ledger.Address(),
		NetworkPublicKey: key[:],
		BlockNumber:      head,
	})
}

// GetSubmission godoc
// GET /api/v1/submissions/:submission_id
func (h *LedgerHandler) GetSubmission(c *gin.Context) {
	id, ok := parseID(c, "submission_id")
	if !ok {
		return
	}
	sub, err := h.ledger.GetSubmission(c.Request.Context(), id)
	if err != nil {
		failLedger(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, sub)
}

// GetSubmissionScore godoc
// GET /api/v1/submissions/:submission_id/score
// Returns the encrypted score handle; only the examinee can decrypt it.
func (h *LedgerHandler) GetSubmissionScore(c *gin.Context) {
	id, ok := parseID(c, "submission_id")
	if !ok {
		return
	}
	handle, err := h.ledger.GetSubmissionScore(c.Request.Context(), id)
	if err != nil {
		failLedger(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, model.ScoreHandle{SubmissionID: id, EncryptedScore: handle})
}

// GetCertificate godoc
// GET /api/v1/certificates/:examinee/:exam_id
func (h *LedgerHandler) GetCertificate(c *gin.Context) {
	examinee, ok := parseAddressParam(c, "examinee")
	if !ok {
		return
	}
	examID, ok := parseID(c, "exam_id")
	if !ok {
		return
	}
	has, err := h.ledger.HasCertificate(c.Request.Context(), examinee, examID)
	if err != nil {
		failLedger(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, model.CertificateStatus{Examinee: examinee, ExamID: examID, HasCertificate: has})
}

// QueryLogs godoc
// GET /api/v1/logs?event=&exam_id=&account=&submission_id=&from_block=&to_block=&limit=
func (h *LedgerHandler) QueryLogs(c *gin.Context) {
	q, fields := parseEventQuery(c)
	if fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if q.Limit <= 0 || q.Limit > maxLogsPerQuery {
		q.Limit = maxLogsPerQuery
	}
	filter, err := q.Filter()
	if err != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"event": err.Error()})
		return
	}

	logs, err := h.ledger.QueryLogs(c.Request.Context(), filter)
	if err != nil {
		failLedger(c, h.log, err)
		return
	}
	if logs == nil {
		logs = []model.Log{}
	}
	response.Success(c, http.StatusOK, gin.H{"logs": logs})
}

// GetReceipt godoc
// GET /api/v1/tx/:tx_hash
func (h *LedgerHandler) GetReceipt(c *gin.Context) {
	hash, err := chain.ParseHash(c.Param("tx_hash"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	receipt, err := h.ledger.GetReceipt(c.Request.Context(), hash)
	if err != nil {
		failLedger(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, receipt)
}

// parseEventQuery reads the log filter query parameters shared by the HTTP
// scan and the WebSocket stream.
func parseEventQuery(c *gin.Context) (ledger.EventQuery, map[string]string) {
	q := ledger.EventQuery{Event: c.Query("event")}
	fields := map[string]string{}

	uintParam := func(name string) uint64 {
		raw := c.Query(name)
		if raw == "" {
			return 0
		}
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			fields[name] = name + " must be a non-negative integer"
		}
		return n
	}
	q.ExamID = uintParam("exam_id")
	q.SubmissionID = uintParam("submission_id")
	q.FromBlock = uintParam("from_block")
	q.ToBlock = uintParam("to_block")
	q.Limit = int(uintParam("limit"))

	if raw := c.Query("account"); raw != "" {
		addr, err := chain.ParseAddress(raw)
		if err != nil {
			fields["account"] = "account must be a 0x-prefixed 20-byte hex address"
		} else {
			q.Account = &addr
		}
	}

	if len(fields) > 0 {
		return q, fields
	}
	return q, nil
}
