// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package ncx

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/grpc/codes"
)

// TestError_Error tests the Error() method
func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "single message",
			err:      &Error{Operation: "parse", Message: "unknown parameter"},
			expected: "ncx: parse failed: unknown parameter",
		},
		{
			name: "several findings",
			err: &Error{
				Operation: "validate",
				Message:   "mtu: missing value instance",
				Errors:    []ErrorModel{{Name: "name"}, {Name: "mtu"}},
			},
			expected: "ncx: validate failed: mtu: missing value instance (2 errors)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

// TestError_DetailedError tests that every finding and the internal
// message are included
func TestError_DetailedError(t *testing.T) {
	e := &Error{Operation: "get-config", InternalMsg: "rpc-error tag invalid-value"}
	e.Add(ErrorModel{Status: ErrUnknownParm, Name: "sorce", Value: "running"})
	e.Add(ErrorModel{Status: ErrMissingInstance, Name: "source", Message: "mandatory container missing"})

	got := e.DetailedError()
	for _, want := range []string{
		"ncx: get-config failed",
		"(2 errors)",
		"(internal: rpc-error tag invalid-value)",
		`sorce: unknown parameter ("running")`,
		"source: mandatory container missing",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected %q in %q", want, got)
		}
	}
}

// TestError_Add tests that the last finding sets status and message
func TestError_Add(t *testing.T) {
	e := &Error{Operation: "instance check"}
	if e.Err() != nil {
		t.Fatal("Expected nil error without findings")
	}

	e.Add(ErrorModel{Status: ErrExtraInstance, Name: "hostname"})
	e.Add(ErrorModel{Status: ErrLockDenied, Name: "interfaces", Code: 99})

	if e.Status != ErrLockDenied {
		t.Errorf("Expected status %v, got %v", ErrLockDenied, e.Status)
	}
	if e.Message != "interfaces: lock denied" {
		t.Errorf("Expected message of last finding, got %q", e.Message)
	}
	want := []uint32{uint32(codes.FailedPrecondition), 99}
	got := []uint32{e.Errors[0].Code, e.Errors[1].Code}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Expected codes (-want +got):\n%s", diff)
	}
	if e.Err() == nil {
		t.Error("Expected non-nil error with findings")
	}

	var nilErr *Error
	if nilErr.Err() != nil {
		t.Error("Expected nil receiver to yield nil")
	}
}

// TestError_Is tests matching wrapped errors against the status sentinels
func TestError_Is(t *testing.T) {
	e := NewError("lock", ErrResourceDenied, "interfaces", "all %d slots taken", 4)
	wrapped := fmt.Errorf("partial-lock: %w", e)

	if !errors.Is(wrapped, ErrResourceDenied) {
		t.Errorf("Expected ErrResourceDenied, got %v", wrapped)
	}
	if errors.Is(wrapped, ErrLockDenied) {
		t.Error("Expected no match for ErrLockDenied")
	}
	var nerr *Error
	if !errors.As(wrapped, &nerr) || nerr.Errors[0].Message != "all 4 slots taken" {
		t.Errorf("Expected *Error with formatted message, got %v", nerr)
	}
	if (&Error{Operation: "x"}).Unwrap() != nil {
		t.Error("Expected nil Unwrap for StatusOK")
	}
}

// TestStatusOf tests extracting the status of arbitrary errors
func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"nil", nil, StatusOK},
		{"sentinel", ErrEOF, ErrEOF},
		{"wrapped sentinel", fmt.Errorf("%w: line 3", ErrBadConditional), ErrBadConditional},
		{"structured", NewError("run", ErrNestTooDeep, "", "depth 65"), ErrNestTooDeep},
		{"joined", errors.Join(errors.New("plain"), ErrCanceled), ErrCanceled},
		{"foreign", errors.New("plain"), ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusOf(tt.err); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

// TestStatusCode tests the gRPC code mapping
func TestStatusCode(t *testing.T) {
	tests := []struct {
		status Status
		want   codes.Code
	}{
		{StatusOK, codes.OK},
		{ErrWrongType, codes.InvalidArgument},
		{ErrUnterminatedString, codes.InvalidArgument},
		{ErrDuplicateEntry, codes.AlreadyExists},
		{ErrMissingChoice, codes.FailedPrecondition},
		{ErrInUseLocked, codes.Aborted},
		{ErrResourceDenied, codes.ResourceExhausted},
		{ErrLoopLimit, codes.ResourceExhausted},
		{ErrNotFound, codes.NotFound},
		{ErrReadOnly, codes.PermissionDenied},
		{ErrCanceled, codes.Canceled},
		{ErrEOF, codes.OutOfRange},
		{ErrReadFailed, codes.Unavailable},
		{ErrEvalFailed, codes.Internal},
		{Status(999), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.status.Error(), func(t *testing.T) {
			if got := tt.status.Code(); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

// TestStatusText tests that every status has its own text
func TestStatusText(t *testing.T) {
	seen := make(map[string]Status)
	for st := StatusOK; st <= ErrEvalFailed; st++ {
		txt := st.Error()
		if strings.HasPrefix(txt, "status(") {
			t.Errorf("Expected text for status %d", int(st))
		}
		if prev, ok := seen[txt]; ok {
			t.Errorf("Expected unique text, %d and %d share %q", int(prev), int(st), txt)
		}
		seen[txt] = st
	}
	if got := Status(999).Error(); got != "status(999)" {
		t.Errorf("Expected status(999), got %q", got)
	}
}

// TestErrorModel tests the rendering of one finding
func TestErrorModel(t *testing.T) {
	tests := []struct {
		name string
		m    ErrorModel
		want string
	}{
		{"status only", ErrorModel{Status: ErrEmptyValue}, "missing value"},
		{"name", ErrorModel{Status: ErrEmptyValue, Name: "mtu"}, "mtu: missing value"},
		{"name and value", ErrorModel{Status: ErrWrongType, Name: "mtu", Value: "big"}, `mtu: wrong data type ("big")`},
		{"message", ErrorModel{Status: ErrWrongType, Name: "mtu", Message: "not a number"}, "mtu: not a number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.String(); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
