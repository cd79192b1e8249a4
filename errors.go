// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package ncx

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
)

// Status identifies the kind of failure reported by the core.
//
// Status implements the error interface so it can be used as a sentinel:
//
//	if errors.Is(err, ncx.ErrLockDenied) {
//	    // another session owns part of the subtree
//	}
type Status int

const (
	// StatusOK is the zero value and never returned as an error
	StatusOK Status = iota

	// ErrInternal reports a broken internal invariant
	ErrInternal

	// Malformed input

	// ErrWrongType reports a value that does not fit the target's base type
	ErrWrongType
	// ErrInvalidValue reports a value rejected by a type restriction
	ErrInvalidValue
	// ErrUnknownParm reports a parameter name with no schema match
	ErrUnknownParm
	// ErrAmbiguousParm reports a prefix matching more than one parameter
	ErrAmbiguousParm
	// ErrInvalidPrefix reports a token starting with three or more dashes
	ErrInvalidPrefix
	// ErrEmptyValue reports a missing value for a non-empty type
	ErrEmptyValue
	// ErrUnexpectedValue reports a value given to an empty-typed parameter
	ErrUnexpectedValue
	// ErrDuplicateEntry reports a repeated default parameter or variable
	ErrDuplicateEntry
	// ErrUnterminatedString reports a quote or inline markup without its end
	ErrUnterminatedString
	// ErrInvalidName reports a malformed identifier or variable reference
	ErrInvalidName

	// Cardinality violations

	// ErrMissingInstance reports a mandatory child or too few instances
	ErrMissingInstance
	// ErrExtraInstance reports more instances than the schema allows
	ErrExtraInstance
	// ErrMissingChoice reports a mandatory choice with no case selected
	ErrMissingChoice
	// ErrExtraChoice reports children from two cases of one choice
	ErrExtraChoice

	// Structural invariant violations

	// ErrMissingIndex reports a list entry without all of its keys
	ErrMissingIndex
	// ErrNoChildStorage reports an attach to a node that cannot hold children
	ErrNoChildStorage
	// ErrNotConfig reports a lock or write on non-configuration data
	ErrNotConfig
	// ErrLockDenied reports a node already locked by another session
	ErrLockDenied
	// ErrResourceDenied reports that all lock slots of a node are taken
	ErrResourceDenied
	// ErrInUseLocked reports a write blocked by another session's lock
	ErrInUseLocked
	// ErrNotFound reports a missing variable, node or lock
	ErrNotFound
	// ErrReadOnly reports an attempt to modify a system variable
	ErrReadOnly

	// Resource exhaustion

	// ErrNestTooDeep reports a script nesting past the configured maximum
	ErrNestTooDeep
	// ErrLoopLimit reports an invalid loop iteration cap
	ErrLoopLimit

	// Script control

	// ErrBadConditional reports a misplaced elif, else or end
	ErrBadConditional
	// ErrCanceled reports a canceled script stack
	ErrCanceled
	// ErrEOF reports the end of a line source
	ErrEOF
	// ErrReadFailed reports a line source read error
	ErrReadFailed
	// ErrEvalFailed reports an expression that could not be evaluated
	ErrEvalFailed
)

var statusText = map[Status]string{
	StatusOK:              "ok",
	ErrInternal:           "internal error",
	ErrWrongType:          "wrong data type",
	ErrInvalidValue:       "invalid value",
	ErrUnknownParm:        "unknown parameter",
	ErrAmbiguousParm:      "ambiguous parameter",
	ErrInvalidPrefix:      "invalid parameter prefix",
	ErrEmptyValue:         "missing value",
	ErrUnexpectedValue:    "unexpected value",
	ErrDuplicateEntry:     "duplicate entry",
	ErrUnterminatedString: "unterminated string",
	ErrInvalidName:        "invalid name",
	ErrMissingInstance:    "missing value instance",
	ErrExtraInstance:      "extra value instance",
	ErrMissingChoice:      "missing choice",
	ErrExtraChoice:        "extra choice",
	ErrMissingIndex:       "missing index",
	ErrNoChildStorage:     "node has no child storage",
	ErrNotConfig:          "not config data",
	ErrLockDenied:         "lock denied",
	ErrResourceDenied:     "resource denied",
	ErrInUseLocked:        "in use by a partial lock",
	ErrNotFound:           "not found",
	ErrReadOnly:           "read-only",
	ErrNestTooDeep:        "nest level too deep",
	ErrLoopLimit:          "invalid loop limit",
	ErrBadConditional:     "invalid conditional",
	ErrCanceled:           "canceled",
	ErrEOF:                "end of input",
	ErrReadFailed:         "read failed",
	ErrEvalFailed:         "evaluation failed",
}

// Error implements the error interface
func (s Status) Error() string {
	if txt, ok := statusText[s]; ok {
		return txt
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Code maps the status onto a gRPC status code
//
// The mapping is used when findings are handed to the RPC layer and when
// reply errors are rendered for a peer.
func (s Status) Code() codes.Code {
	switch s {
	case StatusOK:
		return codes.OK
	case ErrWrongType, ErrInvalidValue, ErrUnknownParm, ErrAmbiguousParm,
		ErrInvalidPrefix, ErrEmptyValue, ErrUnexpectedValue, ErrUnterminatedString,
		ErrInvalidName:
		return codes.InvalidArgument
	case ErrDuplicateEntry:
		return codes.AlreadyExists
	case ErrMissingInstance, ErrExtraInstance, ErrMissingChoice, ErrExtraChoice,
		ErrMissingIndex, ErrNoChildStorage, ErrNotConfig, ErrBadConditional:
		return codes.FailedPrecondition
	case ErrLockDenied, ErrInUseLocked:
		return codes.Aborted
	case ErrResourceDenied, ErrNestTooDeep, ErrLoopLimit:
		return codes.ResourceExhausted
	case ErrNotFound:
		return codes.NotFound
	case ErrReadOnly:
		return codes.PermissionDenied
	case ErrCanceled:
		return codes.Canceled
	case ErrEOF:
		return codes.OutOfRange
	case ErrReadFailed:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// Error represents a structured failure with operation context
//
// Scans that continue past individual failures (parameter parsing, instance
// checks) record every finding in Errors; Status is the status of the last
// finding.
type Error struct {
	// Operation name that failed
	Operation string

	// Status of the failure (last finding when Errors holds several)
	Status Status

	// Errors holds one entry per offending parameter or node
	Errors []ErrorModel

	// Human-readable error message
	Message string

	// InternalMsg contains detailed error information for internal logging
	InternalMsg string
}

// Error implements the error interface
func (e *Error) Error() string {
	if len(e.Errors) > 1 {
		return fmt.Sprintf("ncx: %s failed: %s (%d errors)", e.Operation, e.Message, len(e.Errors))
	}
	return fmt.Sprintf("ncx: %s failed: %s", e.Operation, e.Message)
}

// DetailedError returns the full error message including every finding and
// internal details
//
// Example:
//
//	if err != nil {
//	    var nerr *ncx.Error
//	    if errors.As(err, &nerr) {
//	        logger.Debug(nerr.DetailedError())
//	    }
//	}
func (e *Error) DetailedError() string {
	var b strings.Builder
	b.WriteString(e.Error())
	if e.InternalMsg != "" {
		b.WriteString(" (internal: ")
		b.WriteString(e.InternalMsg)
		b.WriteString(")")
	}
	for _, m := range e.Errors {
		b.WriteString("; ")
		b.WriteString(m.String())
	}
	return b.String()
}

// Unwrap exposes the Status so errors.Is works against the sentinels
func (e *Error) Unwrap() error {
	if e.Status == StatusOK {
		return nil
	}
	return e.Status
}

// Add records a finding and makes its status the error status
func (e *Error) Add(m ErrorModel) {
	if m.Code == 0 {
		m.Code = uint32(m.Status.Code())
	}
	e.Errors = append(e.Errors, m)
	e.Status = m.Status
	e.Message = m.String()
}

// Err returns e as an error, or nil when no findings were recorded
func (e *Error) Err() error {
	if e == nil || (len(e.Errors) == 0 && e.Status == StatusOK) {
		return nil
	}
	return e
}

// ErrorModel represents one finding
type ErrorModel struct {
	// Code is the gRPC status code derived from Status
	Code uint32

	// Status is the failure kind
	Status Status

	// Name of the offending parameter, node or variable
	Name string

	// Value is the offending text, if any
	Value string

	// Message is the error message
	Message string
}

// String renders the finding as "name: message (value)"
func (m ErrorModel) String() string {
	msg := m.Message
	if msg == "" {
		msg = m.Status.Error()
	}
	switch {
	case m.Name != "" && m.Value != "":
		return fmt.Sprintf("%s: %s (%q)", m.Name, msg, m.Value)
	case m.Name != "":
		return fmt.Sprintf("%s: %s", m.Name, msg)
	default:
		return msg
	}
}

// NewError creates an Error with a single finding
func NewError(op string, st Status, name, format string, args ...any) *Error {
	e := &Error{Operation: op}
	e.Add(ErrorModel{Status: st, Name: name, Message: fmt.Sprintf(format, args...)})
	return e
}

// StatusOf extracts the Status carried by err
//
// Returns StatusOK for a nil error and ErrInternal for errors that carry no
// Status.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var st Status
	if errors.As(err, &st) {
		return st
	}
	return ErrInternal
}
