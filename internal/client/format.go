package client

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
)

// optionLabels label the four fixed multiple-choice slots.
var optionLabels = [4]string{"A", "B", "C", "D"}

// FormatQuestionText appends non-blank options to body as "A) ..." lines.
// Labels follow the option's slot, so a blank option leaves a gap.
func FormatQuestionText(body string, options []string) string {
	lines := make([]string, 0, len(options))
	for i, opt := range options {
		if i >= len(optionLabels) {
			break
		}
		if strings.TrimSpace(opt) == "" {
			continue
		}
		lines = append(lines, optionLabels[i]+") "+opt)
	}
	if len(lines) == 0 {
		return body
	}
	return body + "\n" + strings.Join(lines, "\n")
}

// OptionSlot is one answer choice of a multiple-choice question.
type OptionSlot struct {
	Value uint32
	Label string
}

// OptionSlots returns the four fixed answer slots. Slots are positional;
// the question text is not parsed.
func OptionSlots() []OptionSlot {
	slots := make([]OptionSlot, len(optionLabels))
	for i, l := range optionLabels {
		slots[i] = OptionSlot{Value: uint32(i + 1), Label: l}
	}
	return slots
}

// ErrUserRejected is returned when the signer declines a transaction.
var ErrUserRejected = errors.New("user rejected transaction")

// Describe turns an operation error into the message shown to the user.
// Reverts keep their reason verbatim.
func Describe(op string, err error) string {
	var revert *RevertError
	var apiErr *APIError
	var urlErr *url.Error
	var netErr net.Error

	switch {
	case err == nil:
		return ""
	case errors.As(err, &revert):
		return op + " failed: " + revert.Reason
	case errors.Is(err, ErrUserRejected):
		return "Transaction rejected by user"
	case errors.Is(err, context.DeadlineExceeded):
		return "Request timed out. Try again."
	case errors.As(err, &apiErr) && apiErr.Status == 401:
		return "Session expired. Connect your wallet again."
	case errors.As(err, &apiErr):
		return op + " failed: " + apiErr.Message
	case errors.As(err, &urlErr), errors.As(err, &netErr):
		return "Network unavailable. Check that the ledger node is reachable."
	default:
		return op + " failed! error=" + err.Error()
	}
}
