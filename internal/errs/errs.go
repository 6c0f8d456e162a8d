// Package errs implements the tagged error kinds of spec §7: callers
// pattern-match on Kind via errors.As rather than string-matching error
// text.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is a machine-readable error category, per the table in spec §7.
type Kind string

const (
	KindConfigError       Kind = "config_error"       // invalid/missing configuration, fatal at startup
	KindTransportError    Kind = "transport_error"    // REST/WS connection failure, retryable
	KindProtocolError     Kind = "protocol_error"     // malformed or unexpected venue payload
	KindSequenceGap       Kind = "sequence_gap"        // book update-id gap, triggers resync
	KindVenueRejectOrder  Kind = "venue_reject_order"  // venue refused an order submission
	KindVenueRejectCancel Kind = "venue_reject_cancel" // venue refused a cancel
	KindPolicyViolation   Kind = "policy_violation"    // a computed quote/order violates ContractPolicy
	KindInvariantBreach   Kind = "invariant_breach"    // an internal invariant did not hold
)

// Error is the tagged error type every package in this repository returns
// for conditions spec §7 names. It wraps an optional cause with
// github.com/pkg/errors so the original stack survives across package
// boundaries.
type Error struct {
	Kind     Kind
	Contract string // empty if not contract-scoped
	cause    error
}

func (e *Error) Error() string {
	if e.Contract != "" {
		return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Contract, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a tagged error wrapping msg.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, cause: errors.New(msg)}
}

// Wrap tags an existing error with a kind, preserving its stack via
// pkg/errors.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, cause: errors.Wrap(cause, msg)}
}

// WithContract attaches the contract symbol this error occurred for.
func (e *Error) WithContract(contract string) *Error {
	e.Contract = contract
	return e
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
