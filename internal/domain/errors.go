/**
 * @description
 * This file defines the error taxonomy shared by every workflow in the
 * gateway. Callers classify failures with errors.Is / errors.As and decide
 * what to surface, retry, or redirect on.
 *
 * Taxonomy:
 * - ErrUnauthenticated: an action required a current principal and none
 *   exists; callers redirect to the onboarding entry point.
 * - ErrDestinationNotVerified: a submit was attempted without a Verified
 *   lookup result; blocked locally, no round-trip is made.
 * - ValidationError: amount/field out of bounds, detected before any call.
 * - RemoteError: the ledger service declined the operation with a reason.
 * - TransportError: the ledger service was unreachable or replied with
 *   something we could not parse.
 *
 * Stale verification responses are not errors at all; the verification
 * engine drops them silently.
 */

package domain

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated is returned when an action requires a current principal
// and none exists.
var ErrUnauthenticated = errors.New("not authenticated")

// ErrDestinationNotVerified is returned when a monetary submission is
// attempted without a verified destination account.
var ErrDestinationNotVerified = errors.New("destination account not verified")

// ValidationError reports input that fails local bounds checks. It is always
// raised before any network call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validationf builds a ValidationError for the given field.
func Validationf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Well-known rejection codes used by the ledger service.
const (
	CodeInvalidCredentials     = "InvalidCredentials"
	CodeEmailTaken             = "EmailTaken"
	CodeValidation             = "ValidationError"
	CodeVerificationFailed     = "VerificationFailed"
	CodeApplicationRejected    = "ApplicationRejected"
	CodeActivationFailed       = "ActivationFailed"
	CodeWalletNotFound         = "WalletNotFound"
	CodeInsufficientFunds      = "InsufficientFunds"
	CodeExternalAccountInvalid = "ExternalAccountInvalid"
	CodeWithdrawalRejected     = "WithdrawalRejected"
)

// RemoteError is a rejection the ledger service returned deliberately. The
// message is suitable for display; the draft that produced it stays intact
// for retry.
type RemoteError struct {
	Code       string
	Message    string
	HTTPStatus int
}

func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("ledger rejected request (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("ledger rejected request: %s", e.Message)
}

// TransportError wraps a network-level or malformed-response failure talking
// to the ledger service.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ledger unreachable during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
