// Package apperr defines the structured errors reported by the deck and
// analytics engines. Every error carries a kind, a reason and the affected
// entity so callers can decide between retrying and surfacing to the user.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error.
type Kind string

const (
	KindInput       Kind = "input_error"
	KindInfeasible  Kind = "infeasible_constraint"
	KindUnavailable Kind = "data_unavailable"
	KindTimeout     Kind = "upstream_timeout"
	KindInternal    Kind = "internal"
)

// Reasons used by the deck assembler when it terminates in FAILED.
const (
	ReasonInvalidCommander    = "invalid commander"
	ReasonInsufficientCards   = "insufficient legal cards"
	ReasonBudgetInfeasible    = "budget infeasible"
	ReasonUnknownFormat       = "unknown format"
	ReasonEmptyCollection     = "empty collection"
	ReasonMissingPrice        = "missing price"
	ReasonZeroPrice           = "zero price"
	ReasonInsufficientHistory = "insufficient history"
	ReasonNoWins              = "no recorded wins"
	ReasonNoPurchasePrice     = "no purchase price"
	ReasonNotFound            = "not found"
)

// Error is the structured error type returned by the engines.
type Error struct {
	Kind   Kind   `json:"kind"`
	Reason string `json:"reason"`
	Entity string `json:"entity,omitempty"`
	Err    error  `json:"-"`
}

func (e *Error) Error() string {
	msg := string(e.Kind) + ": " + e.Reason
	if e.Entity != "" {
		msg += " (" + e.Entity + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap attaches the underlying cause and returns e.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// Input returns an InputError for the given entity.
func Input(reason, entity string) *Error {
	return &Error{Kind: KindInput, Reason: reason, Entity: entity}
}

// Infeasible returns an InfeasibleConstraint error.
func Infeasible(reason, entity string) *Error {
	return &Error{Kind: KindInfeasible, Reason: reason, Entity: entity}
}

// Unavailable returns a DataUnavailable error.
func Unavailable(reason, entity string) *Error {
	return &Error{Kind: KindUnavailable, Reason: reason, Entity: entity}
}

// Timeout wraps an upstream failure for entity.
func Timeout(entity string, err error) *Error {
	return &Error{Kind: KindTimeout, Reason: "upstream timeout", Entity: entity, Err: err}
}

// Internal reports an invariant violation. These indicate a bug, not bad input.
func Internal(format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Reason: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
