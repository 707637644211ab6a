package model

import (
	"fmt"

	"github.com/cogniseal/cogniseal-ledger/internal/fhe"
)

// QuestionType selects how an answer is encoded before encryption.
type QuestionType int

const (
	// QuestionTypeMultipleChoice answers are the option number, encrypted as is.
	QuestionTypeMultipleChoice QuestionType = 0
	// QuestionTypeFillInBlank answers are free text, hashed to 32 bits first.
	QuestionTypeFillInBlank QuestionType = 1
)

func (t QuestionType) Valid() bool {
	return t == QuestionTypeMultipleChoice || t == QuestionTypeFillInBlank
}

func (t QuestionType) String() string {
	switch t {
	case QuestionTypeMultipleChoice:
		return "multiple_choice"
	case QuestionTypeFillInBlank:
		return "fill_in_blank"
	default:
		return fmt.Sprintf("question_type(%d)", int(t))
	}
}

// Question is one exam question. The encrypted expected answer never leaves
// the ledger.
type Question struct {
	ExamID          uint64       `json:"exam_id"`
	Index           uint32       `json:"index"`
	Text            string       `json:"question_text"`
	Type            QuestionType `json:"question_type"`
	EncryptedAnswer fhe.Handle   `json:"-"`
}
