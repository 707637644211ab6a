package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/cogniseal/cogniseal-ledger/internal/ledger"
	"github.com/cogniseal/cogniseal-ledger/internal/middleware"
	"github.com/cogniseal/cogniseal-ledger/internal/model"
	"github.com/cogniseal/cogniseal-ledger/internal/response"
	"github.com/cogniseal/cogniseal-ledger/internal/service"
)

// ExamHandler serves exam reads and the creator roster export.
type ExamHandler struct {
	ledger      *ledger.Ledger
	examService *service.ExamService
	log         zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(l *ledger.Ledger, examService *service.ExamService, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		ledger:      l,
		examService: examService,
		log:         log.With().Str("component", "exam_handler").Logger(),
	}
}

// ListExams godoc
// GET /api/v1/exams
// Lists exams in creation order with pagination.
func (h *ExamHandler) ListExams(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	exams, pagination, err := h.examService.List(c.Request.Context(), page, perPage)
	if err != nil {
		failLedger(c, h.log, err)
		return
	}
	if exams == nil {
		exams = []model.Exam{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, pagination)
}

// ExamCount godoc
// GET /api/v1/exams/count
func (h *ExamHandler) ExamCount(c *gin.Context) {
	count, err := h.ledger.GetExamCount(c.Request.Context())
	if err != nil {
		failLedger(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, model.ExamCount{Count: count})
}

// GetExam godoc
// GET /api/v1/exams/:exam_id
func (h *ExamHandler) GetExam(c *gin.Context) {
	examID, ok := parseID(c, "exam_id")
	if !ok {
		return
	}

	exam, err := h.examService.Get(c.Request.Context(), examID)
	if err != nil {
		failLedger(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, exam)
}

// ListQuestions godoc
// GET /api/v1/exams/:exam_id/questions
// Returns question texts and types. Expected answers are never exposed.
func (h *ExamHandler) ListQuestions(c *gin.Context) {
	examID, ok := parseID(c, "exam_id")
	if !ok {
		return
	}

	questions, err := h.examService.Questions(c.Request.Context(), examID)
	if err != nil {
		failLedger(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// GetQuestion godoc
// GET /api/v1/exams/:exam_id/questions/:index
func (h *ExamHandler) GetQuestion(c *gin.Context) {
	examID, ok := parseID(c, "exam_id")
	if !ok {
		return
	}
	index, err := strconv.ParseUint(c.Param("index"), 10, 32)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	q, err := h.ledger.GetQuestion(c.Request.Context(), examID, uint32(index))
	if err != nil {
		failLedger(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, q)
}

// GetAttemptInfo godoc
// GET /api/v1/exams/:exam_id/attempts/:examinee
func (h *ExamHandler) GetAttemptInfo(c *gin.Context) {
	examID, ok := parseID(c, "exam_id")
	if !ok {
		return
	}
	examinee, ok := parseAddressParam(c, "examinee")
	if !ok {
		return
	}

	info, err := h.ledger.GetAttemptInfo(c.Request.Context(), examinee, examID)
	if err != nil {
		failLedger(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, info)
}

// ExportRoster godoc
// GET /api/v1/exams/:exam_id/roster.xlsx
// Creator only. Lists attempts and certificates per examinee; scores stay private.
func (h *ExamHandler) ExportRoster(c *gin.Context) {
	val, _ := c.Get(middleware.ContextKeyExam)
	exam, ok := val.(*model.Exam)
	if !ok {
		response.Fail(c, http.StatusForbidden, response.ErrNotExamCreator)
		return
	}

	rows, err := h.ledger.Roster(c.Request.Context(), exam.ID)
	if err != nil {
		failLedger(c, h.log, err)
		return
	}

	buf, err := buildRoster(exam, rows)
	if err != nil {
		h.log.Error().Err(err).Uint64("exam_id", exam.ID).Msg("Failed to build roster")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"exam-%d-roster.xlsx\"", exam.ID))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

const rosterSheet = "Roster"

func buildRoster(exam *model.Exam, rows []model.RosterEntry) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", rosterSheet); err != nil {
		return nil, err
	}
	sw, err := f.NewStreamWriter(rosterSheet)
	if err != nil {
		return nil, fmt.Errorf("stream writer: %w", err)
	}

	if err := sw.SetRow("A1", []interface{}{"Exam", exam.ID, exam.Title}); err != nil {
		return nil, err
	}
	header := []interface{}{"Examinee", "Attempts", "Last attempt (UTC)", "Certified", "Certified at (UTC)"}
	if err := sw.SetRow("A3", header); err != nil {
		return nil, err
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+4)
		if err != nil {
			return nil, err
		}
		certified, certifiedAt := "No", ""
		if r.HasCertificate {
			certified, certifiedAt = "Yes", formatUnix(r.CertifiedAt)
		}
		row := []interface{}{r.Examinee.String(), r.AttemptCount, formatUnix(r.LastAttemptTime), certified, certifiedAt}
		if err := sw.SetRow(cell, row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, err
	}

	return f.WriteToBuffer()
}

func formatUnix(ts int64) string {
	if ts == 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format(time.DateTime)
}
