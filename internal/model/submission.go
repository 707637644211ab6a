package model

import (
	"github.com/cogniseal/cogniseal-ledger/internal/chain"
	"github.com/cogniseal/cogniseal-ledger/internal/fhe"
)

// Submission is one graded attempt. The score stays encrypted; only the
// examinee can decrypt it.
type Submission struct {
	ID             uint64        `json:"submission_id"`
	Examinee       chain.Address `json:"examinee"`
	ExamID         uint64        `json:"exam_id"`
	EncryptedScore fhe.Handle    `json:"encrypted_score"`
	SubmittedAt    int64         `json:"submitted_at"`
	IsGraded       bool          `json:"is_graded"`
}

// Attempt is the stored per (examinee, exam) attempt counter.
type Attempt struct {
	Examinee        chain.Address `json:"examinee"`
	ExamID          uint64        `json:"exam_id"`
	AttemptCount    uint32        `json:"attempt_count"`
	LastAttemptTime int64         `json:"last_attempt_time"`
}

// AttemptInfo is an attempt counter with the eligibility derived at read time.
type AttemptInfo struct {
	AttemptCount    uint32 `json:"attempt_count"`
	LastAttemptTime int64  `json:"last_attempt_time"`
	CanAttempt      bool   `json:"can_attempt"`
	CooldownEndTime int64  `json:"cooldown_end_time"`
}

// Certificate is a permanent, non-transferable pass record.
type Certificate struct {
	Examinee     chain.Address `json:"examinee"`
	ExamID       uint64        `json:"exam_id"`
	SubmissionID uint64        `json:"submission_id"`
	MintedAt     int64         `json:"minted_at"`
}

// CertificateStatus answers the has-certificate read.
type CertificateStatus struct {
	Examinee       chain.Address `json:"examinee"`
	ExamID         uint64        `json:"exam_id"`
	HasCertificate bool          `json:"has_certificate"`
}

// SubmitAnswersRequest is the payload of a submit-answers transaction.
type SubmitAnswersRequest struct {
	ExamID           uint64           `json:"exam_id"`
	EncryptedAnswers []fhe.Handle     `json:"encrypted_answers" binding:"max=255"`
	InputProofs      []chain.HexBytes `json:"input_proofs" binding:"max=255"`
}

// MintCertificateRequest is the payload of a mint-certificate transaction.
// DecryptedScore is checked against the encrypted score before minting.
type MintCertificateRequest struct {
	SubmissionID   uint64 `json:"submission_id"`
	ExamID         uint64 `json:"exam_id"`
	DecryptedScore uint32 `json:"decrypted_score"`
}

// ScoreHandle is the response of the submission score read.
type ScoreHandle struct {
	SubmissionID   uint64     `json:"submission_id"`
	EncryptedScore fhe.Handle `json:"encrypted_score"`
}

// RosterEntry is one examinee row of an exam roster export.
type RosterEntry struct {
	Examinee        chain.Address `json:"examinee"`
	AttemptCount    uint32        `json:"attempt_count"`
	LastAttemptTime int64         `json:"last_attempt_time"`
	HasCertificate  bool          `json:"has_certificate"`
	CertifiedAt     int64         `json:"certified_at,omitempty"`
}
