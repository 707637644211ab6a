package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidSignature ErrCode = "INVALID_SIGNATURE"
	ErrChallengeExpired ErrCode = "CHALLENGE_EXPIRED"
	ErrTokenRequired    ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid     ErrCode = "TOKEN_INVALID"
	ErrTokenExpired     ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden          ErrCode = "FORBIDDEN"
	ErrNotExamCreator     ErrCode = "NOT_EXAM_CREATOR"
	ErrDecryptionDenied   ErrCode = "DECRYPTION_DENIED"
	ErrInvalidDecryptAuth ErrCode = "INVALID_DECRYPTION_AUTHORIZATION"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Ledger ────────────────────────────────────────────────────────
	ErrExecutionReverted ErrCode = "EXECUTION_REVERTED"
	ErrUnknownCiphertext ErrCode = "UNKNOWN_CIPHERTEXT"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidSignature:
		return "Signature does not match the address."
	case ErrChallengeExpired:
		return "Login challenge expired or was already used. Request a new one."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You are not allowed to access this resource."
	case ErrNotExamCreator:
		return "Only the exam creator can access this resource."
	case ErrDecryptionDenied:
		return "You are not allowed to decrypt this ciphertext."
	case ErrInvalidDecryptAuth:
		return "Decryption authorization is invalid or outside its validity window."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Check your input."
	case ErrInvalidID:
		return "Invalid identifier format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."

	// ─── Ledger ────────────────────────────────────────────────────────
	case ErrExecutionReverted:
		return "Transaction reverted."
	case ErrUnknownCiphertext:
		return "Ciphertext handle is unknown."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "Unexpected error."
	}
}
