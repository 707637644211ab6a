package model

import (
	"github.com/cogniseal/cogniseal-ledger/internal/chain"
	"github.com/cogniseal/cogniseal-ledger/internal/fhe"
)

// Exam is an exam as recorded on the ledger. Exams are immutable once created.
type Exam struct {
	ID               uint64        `json:"exam_id"`
	Creator          chain.Address `json:"creator"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	QuestionCount    uint32        `json:"question_count"`
	PassingScore     uint32        `json:"passing_score"`
	TimeLimitMinutes uint32        `json:"time_limit_minutes"`
	MaxAttempts      uint32        `json:"max_attempts"`
	CooldownMinutes  uint32        `json:"cooldown_minutes"`
	IsActive         bool          `json:"is_active"`
	CreatedAt        int64         `json:"created_at"`
}

// CreateExamRequest is the payload of a create-exam transaction. Slices are
// index-aligned: one text, type, encrypted answer and proof per question.
// Structural checks are left to the ledger so callers see its revert reasons.
type CreateExamRequest struct {
	Title            string           `json:"title" binding:"max=256"`
	Description      string           `json:"description" binding:"max=4096"`
	QuestionTexts    []string         `json:"question_texts" binding:"max=255,dive,max=4096"`
	QuestionTypes    []QuestionType   `json:"question_types" binding:"max=255"`
	EncryptedAnswers []fhe.Handle     `json:"encrypted_answers" binding:"max=255"`
	InputProofs      []chain.HexBytes `json:"input_proofs" binding:"max=255"`
	PassingScore     uint32           `json:"passing_score"`
	TimeLimitMinutes uint32           `json:"time_limit_minutes"`
	MaxAttempts      uint32           `json:"max_attempts"`
	CooldownMinutes  uint32           `json:"cooldown_minutes"`
}

// ExamCount is the response of the exam counter read.
type ExamCount struct {
	Count uint64 `json:"count"`
}
