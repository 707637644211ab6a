package ledger

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by reads for records that do not exist.
var ErrNotFound = errors.New("not found")

// Revert reasons. Clients match on these strings, so they are part of the API.
const (
	ReasonArraysLengthMismatch = "Arrays length mismatch"
	ReasonNoQuestions          = "Exam must have questions"
	ReasonInvalidQuestionType  = "Invalid question type"
	ReasonInvalidPassingScore  = "Invalid passing score"
	ReasonMaxAttemptsZero      = "Max attempts must be positive"
	ReasonTitleRequired        = "Title required"
	ReasonInvalidInputProof    = "Invalid input proof"

	ReasonExamNotFound      = "Exam does not exist"
	ReasonExamNotActive     = "Exam is not active"
	ReasonAnswerCount       = "Answer count mismatch"
	ReasonMaxAttempts       = "Maximum attempts reached"
	ReasonCooldown          = "Cooldown period not elapsed"
	ReasonInvalidQuestionIx = "Invalid question index"

	ReasonSubmissionNotFound = "Submission does not exist"
	ReasonNotOwner           = "Not submission owner"
	ReasonExamMismatch       = "Submission exam mismatch"
	ReasonAlreadyMinted      = "Certificate already minted"
	ReasonBelowThreshold     = "Score below passing threshold"
	ReasonScoreMismatch      = "Score does not match submission"
)

// RevertError aborts a transaction. Nothing it touched is persisted.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("execution reverted: %s", e.Reason)
}

func revert(reason string) error {
	return &RevertError{Reason: reason}
}

// RevertReason extracts the reason when err is a revert.
func RevertReason(err error) (string, bool) {
	var rev *RevertError
	if errors.As(err, &rev) {
		return rev.Reason, true
	}
	return "", false
}
