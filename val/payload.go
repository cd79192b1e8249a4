// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package val

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/netascode/go-ncx/schema"
)

// Payload is the simple-value content of a node, keyed by base type.
//
// The set of implementations is closed: Empty, Bool, Int, Uint, Decimal,
// Float, String, Enum, Bits, Binary, Union, IdentityRef, External and
// Internal. Complex nodes (containers, lists) have no payload; their
// content is the child sequence.
type Payload interface {
	payload()
}

// Empty is the payload of an empty-typed leaf
type Empty struct{}

// Bool is a boolean payload
type Bool bool

// Int is the payload of a signed integer type
type Int int64

// Uint is the payload of an unsigned integer type
type Uint uint64

// Decimal is a decimal64 payload: Value scaled by 10^Digits
type Decimal struct {
	Value  int64
	Digits int
}

// Float is a float64 payload
type Float float64

// String is the payload of string and instance-identifier types
type String string

// Enum is an enumeration payload
type Enum struct {
	Name  string
	Value int
}

// Bits is a bits payload holding the set bit names in schema order
type Bits []string

// Binary is a binary payload
type Binary []byte

// Union is a union payload: the member type that accepted the value and
// the member payload
type Union struct {
	Member schema.BaseType
	Value  Payload
}

// IdentityRef is an identityref payload
type IdentityRef struct {
	Prefix string
	Name   string
}

// External is buffered content read from a file (script "@file" values)
type External struct {
	Path string
	Data string
}

// Internal is buffered inline markup (script "[<...>]" values)
type Internal struct {
	Text string
}

func (Empty) payload()       {}
func (Bool) payload()        {}
func (Int) payload()         {}
func (Uint) payload()        {}
func (Decimal) payload()     {}
func (Float) payload()       {}
func (String) payload()      {}
func (Enum) payload()        {}
func (Bits) payload()        {}
func (Binary) payload()      {}
func (Union) payload()       {}
func (IdentityRef) payload() {}
func (External) payload()    {}
func (Internal) payload()    {}

// Text renders a payload in its canonical text form
func Text(p Payload) string {
	switch v := p.(type) {
	case nil:
		return ""
	case Empty:
		return ""
	case Bool:
		return strconv.FormatBool(bool(v))
	case Int:
		return strconv.FormatInt(int64(v), 10)
	case Uint:
		return strconv.FormatUint(uint64(v), 10)
	case Decimal:
		return formatDecimal(v)
	case Float:
		return strconv.FormatFloat(float64(v), 'g', -1, 64)
	case String:
		return string(v)
	case Enum:
		return v.Name
	case Bits:
		return strings.Join(v, " ")
	case Binary:
		return base64.StdEncoding.EncodeToString(v)
	case Union:
		return Text(v.Value)
	case IdentityRef:
		if v.Prefix != "" {
			return v.Prefix + ":" + v.Name
		}
		return v.Name
	case External:
		return v.Data
	case Internal:
		return v.Text
	default:
		panic(fmt.Sprintf("val: unknown payload %T", p))
	}
}

func formatDecimal(d Decimal) string {
	if d.Digits == 0 {
		return strconv.FormatInt(d.Value, 10)
	}
	neg := d.Value < 0
	abs := d.Value
	if neg {
		abs = -abs
	}
	s := strconv.FormatInt(abs, 10)
	for len(s) <= d.Digits {
		s = "0" + s
	}
	out := s[:len(s)-d.Digits] + "." + s[len(s)-d.Digits:]
	if neg {
		out = "-" + out
	}
	return out
}

// NeedsQuotes reports whether s must be quoted to survive CLI tokenizing
func NeedsQuotes(s string) bool {
	if s == "" {
		return true
	}
	return strings.ContainsAny(s, " \t\n\r'\"=")
}
