package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cogniseal/cogniseal-ledger/internal/ledger"
	"github.com/cogniseal/cogniseal-ledger/internal/response"
	"github.com/cogniseal/cogniseal-ledger/internal/service"
)

// ContextKeyExam is the Gin context key for the exam loaded by RequireExamCreator.
const ContextKeyExam = "exam"

// RequireExamCreator only lets the creator of the :exam_id exam through.
// Must run after RequireWalletJWT.
func RequireExamCreator(examService *service.ExamService) gin.HandlerFunc {
	return func(c *gin.Context) {
		addr, ok := GetAddress(c)
		if !ok {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		examID, err := strconv.ParseUint(c.Param("exam_id"), 10, 64)
		if err != nil || examID == 0 {
			response.AbortFail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}

		exam, err := examService.Get(c.Request.Context(), examID)
		if errors.Is(err, ledger.ErrNotFound) {
			response.AbortFail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		if err != nil {
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}

		if exam.Creator != addr {
			response.AbortFail(c, http.StatusForbidden, response.ErrNotExamCreator)
			return
		}

		c.Set(ContextKeyExam, exam)
		c.Next()
	}
}
