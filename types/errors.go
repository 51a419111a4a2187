// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package types

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure so callers can branch without string matching.
type Kind string

const (
	// KindConstruction marks bad input to message building. Never retried automatically.
	KindConstruction Kind = "construction"
	// KindNetwork marks a transport failure talking to the relay or the ledger node.
	KindNetwork Kind = "network"
	// KindRelay marks an error reported by the relay through JSON-RPC.
	KindRelay Kind = "relay"
	// KindConfirmationTimeout marks a transaction that was not mined within the polling budget.
	KindConfirmationTimeout Kind = "confirmation_timeout"
	// KindTransactionRejected marks a mined transaction whose receipt status is failure.
	KindTransactionRejected Kind = "transaction_rejected"
	// KindRotationFailure marks a failed step of a key rotation.
	KindRotationFailure Kind = "rotation_failure"
	// KindTrust marks a credential trust failure. See TrustReason.
	KindTrust Kind = "trust"
	// KindResolver marks a transport or decoding failure of the DID resolver.
	KindResolver Kind = "resolver"
	// KindConfig marks an invalid or incomplete configuration.
	KindConfig Kind = "config"
)

// TrustReason refines KindTrust.
type TrustReason string

const (
	TrustNotFound         TrustReason = "not_found"
	TrustUnknownKey       TrustReason = "unknown_key"
	TrustInvalidKey       TrustReason = "invalid_key"
	TrustInvalidSignature TrustReason = "invalid_signature"
)

// Error is the tagged error returned by every on-chain and trust path.
// TxHash is set whenever a transaction was submitted before the failure.
type Error struct {
	Kind    Kind
	Op      string
	Reason  TrustReason
	TxHash  string
	Code    int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Reason != "" {
		b.WriteString(" (")
		b.WriteString(string(e.Reason))
		b.WriteString(")")
	}
	if e.Code != 0 {
		fmt.Fprintf(&b, " code=%d", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.TxHash != "" {
		fmt.Fprintf(&b, " [tx %s]", e.TxHash)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an Error without a cause.
func NewError(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// WrapError builds an Error around cause.
func WrapError(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// TrustError builds a KindTrust error with the given reason.
func TrustError(reason TrustReason, op, message string) *Error {
	return &Error{Kind: KindTrust, Op: op, Reason: reason, Message: message}
}

// KindOf returns KindRotationFailure if err's chain holds a *RotationError and
// otherwise the Kind of the first *Error in it, or "" if there is none.
func KindOf(err error) Kind {
	var r *RotationError
	if errors.As(err, &r) {
		return KindRotationFailure
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsTrust reports whether err is a trust failure with the given reason.
func IsTrust(err error, reason TrustReason) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindTrust && e.Reason == reason
}

// TxHashOf returns the first transaction hash recorded in err's chain.
func TxHashOf(err error) string {
	for err != nil {
		switch e := err.(type) {
		case *Error:
			if e.TxHash != "" {
				return e.TxHash
			}
		case *RotationError:
			if e.TxHash != "" {
				return e.TxHash
			}
		}
		err = errors.Unwrap(err)
	}
	return ""
}

// RotationError reports which step of a key rotation failed and what happened
// to the compensating calls issued for the steps that had already succeeded.
type RotationError struct {
	Step  int
	State string
	// TxHash is the hash of the failed step's transaction, if it was submitted.
	TxHash string
	Cause  error
	// CompensationAttempted is false when the failing step was the first one.
	CompensationAttempted bool
	// Compensated is true only if every compensating call was accepted by the relay.
	Compensated      bool
	CompensationErrs []error
}

func (e *RotationError) Error() string {
	msg := fmt.Sprintf("rotation failed at step %d (state %s): %v", e.Step, e.State, e.Cause)
	switch {
	case !e.CompensationAttempted:
	case e.Compensated:
		msg += "; compensated"
	default:
		msg += fmt.Sprintf("; compensation incomplete: %v", errors.Join(e.CompensationErrs...))
	}
	return msg
}

func (e *RotationError) Unwrap() error { return e.Cause }

// Inconsistent reports whether the identity may be left in a partially rotated state.
func (e *RotationError) Inconsistent() bool {
	return e.CompensationAttempted && !e.Compensated
}

// ErrInvalidDID is returned when a DID string is malformed.
type ErrInvalidDID struct {
	DID    string
	Reason string
}

func (e *ErrInvalidDID) Error() string {
	return fmt.Sprintf("invalid DID %q: %s", e.DID, e.Reason)
}

// ErrKeyNotFound is returned when a key ID cannot be located in the key store.
type ErrKeyNotFound struct {
	KeyID string
}

func (e *ErrKeyNotFound) Error() string {
	return fmt.Sprintf("key not found: %s", e.KeyID)
}

// ErrNoKey is returned when a wallet no longer holds a usable private key.
var ErrNoKey = errors.New("wallet holds no private key")
