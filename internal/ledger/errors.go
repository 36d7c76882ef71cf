package ledger

import (
	"errors"
	"fmt"
)

// Not-found errors map to HTTP 404 at the API layer.
var (
	// ErrCardNotFound indicates the referenced gift card does not exist.
	ErrCardNotFound = errors.New("gift card not found")
	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// Reason is a machine-readable policy violation code.
type Reason string

// Policy violation reasons surfaced to clients alongside HTTP 400.
const (
	ReasonNotRechargeable       Reason = "not_rechargeable"
	ReasonCardExpired           Reason = "card_expired"
	ReasonCardDisabled          Reason = "card_disabled"
	ReasonInsufficientBalance   Reason = "insufficient_balance"
	ReasonInvalidAmount         Reason = "invalid_amount"
	ReasonInvalidInitialBalance Reason = "invalid_initial_balance"
	ReasonInvalidChangeMode     Reason = "invalid_change_mode"
	ReasonProofRequired         Reason = "proof_required"
	ReasonProofInvalid          Reason = "proof_invalid"
)

// PolicyError reports an operation disallowed by card state or flags.
// Policy errors are detected before any mutation; the enclosing database
// transaction rolls back with no side effects.
type PolicyError struct {
	Reason Reason
	msg    string
}

// Error implements the error interface.
func (e *PolicyError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return string(e.Reason)
}

// NewPolicyError builds a PolicyError with a formatted message.
func NewPolicyError(reason Reason, format string, args ...any) *PolicyError {
	return &PolicyError{Reason: reason, msg: fmt.Sprintf(format, args...)}
}

// PolicyReason extracts the violation reason when err is a PolicyError.
func PolicyReason(err error) (Reason, bool) {
	var pe *PolicyError
	if errors.As(err, &pe) {
		return pe.Reason, true
	}
	return "", false
}
