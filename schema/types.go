// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package schema

import "fmt"

// Kind is the YANG statement an Object was compiled from
type Kind int

const (
	KindContainer Kind = iota + 1
	KindList
	KindLeaf
	KindLeafList
	KindChoice
	KindCase
	KindRPC
	KindInput
	KindOutput
	KindAnyxml
)

var kindNames = map[Kind]string{
	KindContainer: "container",
	KindList:      "list",
	KindLeaf:      "leaf",
	KindLeafList:  "leaf-list",
	KindChoice:    "choice",
	KindCase:      "case",
	KindRPC:       "rpc",
	KindInput:     "input",
	KindOutput:    "output",
	KindAnyxml:    "anyxml",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind converts a statement keyword to a Kind
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown object kind: %s", s)
}

// BaseType is the built-in type a value node's payload is keyed by
type BaseType int

const (
	TypeNone BaseType = iota
	TypeEmpty
	TypeBoolean
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeDecimal64
	TypeFloat64
	TypeString
	TypeEnum
	TypeBits
	TypeBinary
	TypeUnion
	TypeIdentityRef
	TypeInstanceID
	TypeContainer
	TypeList
	TypeAnyxml
	TypeExternal
	TypeInternal
)

var typeNames = map[BaseType]string{
	TypeNone:        "none",
	TypeEmpty:       "empty",
	TypeBoolean:     "boolean",
	TypeInt8:        "int8",
	TypeInt16:       "int16",
	TypeInt32:       "int32",
	TypeInt64:       "int64",
	TypeUint8:       "uint8",
	TypeUint16:      "uint16",
	TypeUint32:      "uint32",
	TypeUint64:      "uint64",
	TypeDecimal64:   "decimal64",
	TypeFloat64:     "float64",
	TypeString:      "string",
	TypeEnum:        "enumeration",
	TypeBits:        "bits",
	TypeBinary:      "binary",
	TypeUnion:       "union",
	TypeIdentityRef: "identityref",
	TypeInstanceID:  "instance-identifier",
	TypeContainer:   "container",
	TypeList:        "list",
	TypeAnyxml:      "anyxml",
	TypeExternal:    "external",
	TypeInternal:    "internal",
}

func (t BaseType) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// ParseBaseType converts a type name to a BaseType
func ParseBaseType(s string) (BaseType, error) {
	if s == "enum" {
		return TypeEnum, nil
	}
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}
	return TypeNone, fmt.Errorf("unknown base type: %s", s)
}

// IsNumber reports whether t is an integer, decimal64 or float type
func (t BaseType) IsNumber() bool {
	return t >= TypeInt8 && t <= TypeFloat64
}

// IsSigned reports whether t is a signed integer type
func (t BaseType) IsSigned() bool {
	return t >= TypeInt8 && t <= TypeInt64
}

// IsUnsigned reports whether t is an unsigned integer type
func (t BaseType) IsUnsigned() bool {
	return t >= TypeUint8 && t <= TypeUint64
}

// IsString reports whether t is rendered as free text
func (t BaseType) IsString() bool {
	switch t {
	case TypeString, TypeBinary, TypeInstanceID, TypeIdentityRef:
		return true
	}
	return false
}

// IsSimple reports whether t holds a single scalar value
func (t BaseType) IsSimple() bool {
	return t >= TypeEmpty && t <= TypeInstanceID
}

// HasChildren reports whether nodes of type t own a child sequence
func (t BaseType) HasChildren() bool {
	return t == TypeContainer || t == TypeList
}

// BitSize returns the width of an integer type, or 0
func (t BaseType) BitSize() int {
	switch t {
	case TypeInt8, TypeUint8:
		return 8
	case TypeInt16, TypeUint16:
		return 16
	case TypeInt32, TypeUint32:
		return 32
	case TypeInt64, TypeUint64:
		return 64
	}
	return 0
}

// Iqual is the categorical instance qualifier of a schema node
type Iqual int

const (
	// IqualOne means exactly one instance
	IqualOne Iqual = iota
	// IqualOpt means zero or one instance
	IqualOpt
	// IqualOneMore means one or more instances
	IqualOneMore
	// IqualZeroMore means any number of instances
	IqualZeroMore
)

func (q Iqual) String() string {
	switch q {
	case IqualOne:
		return "exactly-one"
	case IqualOpt:
		return "zero-or-one"
	case IqualOneMore:
		return "one-or-more"
	case IqualZeroMore:
		return "zero-or-more"
	}
	return fmt.Sprintf("iqual(%d)", int(q))
}
