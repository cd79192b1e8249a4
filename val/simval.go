// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package val

import (
	"encoding/base64"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	ncx "github.com/netascode/go-ncx"
	"github.com/netascode/go-ncx/schema"
)

// ParseSimple converts text to the payload of obj's base type
//
// Returns an error wrapping ncx.ErrInvalidValue when text is not a valid
// value, or ncx.ErrWrongType when obj is not a simple type.
func ParseSimple(obj *schema.Object, text string) (Payload, error) {
	switch obj.Kind {
	case schema.KindAnyxml:
		return Internal{Text: text}, nil
	case schema.KindLeaf, schema.KindLeafList:
	default:
		return nil, fmt.Errorf("%w: %s %s is not a simple type", ncx.ErrWrongType, obj.Kind, obj.Name)
	}
	return parseType(obj, obj.Type, text)
}

func parseType(obj *schema.Object, typ schema.BaseType, text string) (Payload, error) {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ncx.ErrInvalidValue, fmt.Sprintf(format, args...))
	}

	switch typ {
	case schema.TypeEmpty:
		if text != "" {
			return nil, fmt.Errorf("%w: empty type takes no value", ncx.ErrUnexpectedValue)
		}
		return Empty{}, nil

	case schema.TypeBoolean:
		switch text {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		}
		return nil, invalid("%q is not a boolean", text)

	case schema.TypeInt8, schema.TypeInt16, schema.TypeInt32, schema.TypeInt64:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, typ.BitSize())
		if err != nil {
			return nil, invalid("%q is not a valid %s", text, typ)
		}
		return Int(n), nil

	case schema.TypeUint8, schema.TypeUint16, schema.TypeUint32, schema.TypeUint64:
		n, err := strconv.ParseUint(strings.TrimSpace(text), 10, typ.BitSize())
		if err != nil {
			return nil, invalid("%q is not a valid %s", text, typ)
		}
		return Uint(n), nil

	case schema.TypeDecimal64:
		d, err := parseDecimal(strings.TrimSpace(text), obj.FractionDigits)
		if err != nil {
			return nil, invalid("%q is not a valid decimal64: %v", text, err)
		}
		return d, nil

	case schema.TypeFloat64:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, invalid("%q is not a valid float", text)
		}
		return Float(f), nil

	case schema.TypeString:
		if len(text) < obj.MinLength {
			return nil, invalid("length %d is below the minimum %d", len(text), obj.MinLength)
		}
		return String(text), nil

	case schema.TypeInstanceID:
		if text == "" {
			return nil, invalid("empty instance-identifier")
		}
		return String(text), nil

	case schema.TypeEnum:
		i := slices.Index(obj.Enums, text)
		if i < 0 {
			return nil, invalid("%q is not one of %s", text, strings.Join(obj.Enums, ", "))
		}
		return Enum{Name: text, Value: i}, nil

	case schema.TypeBits:
		set := strings.Fields(text)
		for _, b := range set {
			if !slices.Contains(obj.Bits, b) {
				return nil, invalid("unknown bit %q", b)
			}
		}
		var bits Bits
		for _, b := range obj.Bits {
			if slices.Contains(set, b) {
				bits = append(bits, b)
			}
		}
		return bits, nil

	case schema.TypeBinary:
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
		if err != nil {
			return nil, invalid("invalid base64 content")
		}
		return Binary(data), nil

	case schema.TypeUnion:
		for _, m := range obj.Members {
			if m == schema.TypeUnion {
				continue
			}
			if p, err := parseType(obj, m, text); err == nil {
				return Union{Member: m, Value: p}, nil
			}
		}
		return nil, invalid("%q matches no union member", text)

	case schema.TypeIdentityRef:
		if text == "" {
			return nil, invalid("empty identityref")
		}
		if i := strings.IndexByte(text, ':'); i >= 0 {
			return IdentityRef{Prefix: text[:i], Name: text[i+1:]}, nil
		}
		return IdentityRef{Name: text}, nil

	case schema.TypeExternal:
		return External{Path: text}, nil

	case schema.TypeInternal, schema.TypeAnyxml:
		return Internal{Text: text}, nil
	}
	return nil, fmt.Errorf("%w: %s is not a simple type", ncx.ErrWrongType, typ)
}

func parseDecimal(text string, digits int) (Decimal, error) {
	if text == "" {
		return Decimal{}, fmt.Errorf("empty value")
	}
	neg := false
	switch text[0] {
	case '-':
		neg = true
		text = text[1:]
	case '+':
		text = text[1:]
	}
	whole, frac, _ := strings.Cut(text, ".")
	if len(frac) > digits {
		return Decimal{}, fmt.Errorf("more than %d fraction digits", digits)
	}
	frac += strings.Repeat("0", digits-len(frac))
	if whole == "" {
		whole = "0"
	}
	n, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return Decimal{}, err
	}
	if n == math.MinInt64 {
		return Decimal{}, fmt.Errorf("out of range")
	}
	if neg {
		n = -n
	}
	return Decimal{Value: n, Digits: digits}, nil
}

func clonePayload(p Payload) Payload {
	switch v := p.(type) {
	case Bits:
		return slices.Clone(v)
	case Binary:
		return slices.Clone(v)
	case Union:
		return Union{Member: v.Member, Value: clonePayload(v.Value)}
	default:
		return p
	}
}
