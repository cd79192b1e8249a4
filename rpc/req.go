// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package rpc

import (
	"fmt"
	"slices"
	"strings"
	"time"

	ncx "github.com/netascode/go-ncx"
)

// gNMI encodings a reply can be turned back into a value tree from
const (
	// EncodingJSON uses standard JSON encoding
	EncodingJSON = "json"

	// EncodingJSONIETF uses the JSON encoding of YANG data (default)
	EncodingJSONIETF = "json_ietf"

	// EncodingASCII carries leaf values as plain text
	EncodingASCII = "ascii"
)

// ValidEncodings lists the accepted encoding names
var ValidEncodings = []string{
	EncodingJSON,
	EncodingJSONIETF,
	EncodingASCII,
}

// ValidateEncoding checks that enc is one of ValidEncodings
func ValidateEncoding(enc string) error {
	if slices.Contains(ValidEncodings, enc) {
		return nil
	}
	return fmt.Errorf("%w: encoding %q (valid values: %s)", ncx.ErrInvalidValue, enc, strings.Join(ValidEncodings, ", "))
}

// Req carries per-request settings applied through modifiers
//
// Example:
//
//	res, err := client.Get(ctx, paths,
//	    rpc.GetEncoding(rpc.EncodingJSON),
//	    rpc.Timeout(5*time.Second))
type Req struct {
	// Encoding of the requested data; json_ietf when empty
	Encoding string

	// DataType restricts a Get to config or state data; all when empty
	DataType string

	// Timeout overrides the client operation timeout for one attempt
	Timeout time.Duration
}

// SetOperationType selects update, replace or delete
type SetOperationType string

const (
	// OperationUpdate merges the value into the existing data
	OperationUpdate SetOperationType = "update"

	// OperationReplace replaces the data at the path
	OperationReplace SetOperationType = "replace"

	// OperationDelete removes the data at the path
	OperationDelete SetOperationType = "delete"
)

// SetOperation is one entry of a gNMI SetRequest
type SetOperation struct {
	OperationType SetOperationType
	Path          string
	Value         string
	Encoding      string
}

// Update creates a merge operation; the encoding defaults to json_ietf
//
// Example:
//
//	op := rpc.Update("/if:interfaces/interface[name=eth0]", `{"mtu": 9000}`)
func Update(path, value string, opts ...func(*SetOperation)) SetOperation {
	op := SetOperation{
		OperationType: OperationUpdate,
		Path:          path,
		Value:         value,
		Encoding:      EncodingJSONIETF,
	}
	for _, opt := range opts {
		opt(&op)
	}
	return op
}

// Replace creates a replace operation; the encoding defaults to json_ietf
func Replace(path, value string, opts ...func(*SetOperation)) SetOperation {
	op := SetOperation{
		OperationType: OperationReplace,
		Path:          path,
		Value:         value,
		Encoding:      EncodingJSONIETF,
	}
	for _, opt := range opts {
		opt(&op)
	}
	return op
}

// Delete creates a delete operation
func Delete(path string) SetOperation {
	return SetOperation{
		OperationType: OperationDelete,
		Path:          path,
	}
}
