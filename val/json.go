// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package val

import (
	"fmt"
	"strings"

	ncx "github.com/netascode/go-ncx"
	"github.com/netascode/go-ncx/schema"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Body provides a fluent interface for building JSON documents using sjson
// for path-based manipulation.
//
// The Body builder tracks the first error internally to enable method
// chaining; check it through String or Err.
//
// Example:
//
//	body := val.Body{}.
//	    Set("name", "eth0").
//	    Set("mtu", 9000)
//	doc, err := body.String()
type Body struct {
	str string
	err error
}

// Set sets a value at the specified sjson path and returns a new Body
//
// Once an error occurs, all subsequent operations are no-ops that preserve
// the error.
func (b Body) Set(path string, value any) Body {
	if b.err != nil {
		return b
	}
	result, err := sjson.Set(b.str, path, value)
	if err != nil {
		return Body{str: b.str, err: fmt.Errorf("Set(%q): %w", path, err)}
	}
	return Body{str: result}
}

// SetRaw sets pre-encoded JSON at the specified path
func (b Body) SetRaw(path, raw string) Body {
	if b.err != nil {
		return b
	}
	result, err := sjson.SetRaw(b.str, path, raw)
	if err != nil {
		return Body{str: b.str, err: fmt.Errorf("SetRaw(%q): %w", path, err)}
	}
	return Body{str: result}
}

// Delete removes the value at the specified path
func (b Body) Delete(path string) Body {
	if b.err != nil {
		return b
	}
	result, err := sjson.Delete(b.str, path)
	if err != nil {
		return Body{str: b.str, err: fmt.Errorf("Delete(%q): %w", path, err)}
	}
	return Body{str: result}
}

// String returns the JSON document and any error encountered while building
func (b Body) String() (string, error) {
	return b.str, b.err
}

// Err returns any error that occurred while building
func (b Body) Err() error {
	return b.err
}

// Res returns the JSON document for querying with gjson, or "" after an
// error
func (b Body) Res() string {
	if b.err != nil {
		return ""
	}
	return b.str
}

// EscapeKey escapes the sjson/gjson path syntax in a member name
func EscapeKey(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// memberName qualifies the member with its module prefix when the
// namespace changes from the parent's
func memberName(v *Value, parent *Value) string {
	if parent == nil || parent.NS() != v.NS() {
		if p := v.Prefix(); p != "" {
			return p + ":" + v.Name()
		}
	}
	return v.Name()
}

// EncodeJSON renders v as a JSON document {"prefix:name": content} in the
// JSON encoding of YANG data
func EncodeJSON(v *Value) (string, error) {
	raw, err := MarshalJSON(v)
	if err != nil {
		return "", err
	}
	return Body{str: "{}"}.SetRaw(EscapeKey(memberName(v, nil)), raw).String()
}

// MarshalJSON renders the content of v: an object for containers and list
// entries, a scalar for leaves
//
// 64-bit integers and decimal64 values are rendered as strings and empty
// leaves as [null]. Lists, leaf-lists and repeated generic children become
// arrays.
func MarshalJSON(v *Value) (string, error) {
	if !v.HasChildStorage() {
		return leafRaw(v)
	}
	b := Body{str: "{}"}
	count := make(map[string]int)
	for _, ch := range v.children {
		count[memberName(ch, v)]++
	}
	done := make(map[string]bool)
	for _, ch := range v.children {
		name := memberName(ch, v)
		key := EscapeKey(name)
		repeated := ch.obj.Kind == schema.KindList || ch.obj.Kind == schema.KindLeafList || count[name] > 1
		if !repeated {
			raw, err := MarshalJSON(ch)
			if err != nil {
				return "", err
			}
			b = b.SetRaw(key, raw)
			continue
		}
		if done[name] {
			continue
		}
		done[name] = true
		var items []string
		for _, entry := range v.children {
			if memberName(entry, v) != name {
				continue
			}
			raw, err := MarshalJSON(entry)
			if err != nil {
				return "", err
			}
			items = append(items, raw)
		}
		b = b.SetRaw(key, "["+strings.Join(items, ",")+"]")
	}
	return b.String()
}

func leafRaw(v *Value) (string, error) {
	var value any
	switch p := v.payload.(type) {
	case nil:
		return "null", nil
	case Empty:
		return "[null]", nil
	case Bool:
		value = bool(p)
	case Int:
		if v.Type() == schema.TypeInt64 {
			value = Text(p)
		} else {
			value = int64(p)
		}
	case Uint:
		if v.Type() == schema.TypeUint64 {
			value = Text(p)
		} else {
			value = uint64(p)
		}
	case Float:
		value = float64(p)
	default:
		value = Text(p)
	}
	doc, err := sjson.Set("{}", "v", value)
	if err != nil {
		return "", fmt.Errorf("%s: %w", v.Name(), err)
	}
	return gjson.Get(doc, "v").Raw, nil
}

// DecodeJSON builds a value tree bound to obj from JSON
//
// data is either the content of the node or a document whose only member
// names obj. Member names may carry a module prefix. Unknown members fail
// with ncx.ErrUnknownParm; list entries get their key chain built.
func DecodeJSON(obj *schema.Object, data []byte) (*Value, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON for %s", ncx.ErrInvalidValue, obj.Name)
	}
	res := gjson.ParseBytes(data)
	for _, name := range []string{obj.QName(), obj.Name} {
		if inner := res.Get(EscapeKey(name)); inner.Exists() && len(res.Map()) == 1 {
			res = inner
			break
		}
	}
	v := New(obj)
	if err := decodeInto(v, res); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeInto(v *Value, res gjson.Result) error {
	if !v.HasChildStorage() {
		return decodeLeaf(v, res)
	}
	if !res.IsObject() {
		return fmt.Errorf("%w: %s expects an object", ncx.ErrWrongType, v.Name())
	}
	var err error
	res.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if i := strings.IndexByte(name, ':'); i >= 0 {
			name = name[i+1:]
		}
		o := v.obj.FindData(name)
		if o == nil {
			err = fmt.Errorf("%w: %s in %s", ncx.ErrUnknownParm, key.String(), v.Name())
			return false
		}
		items := []gjson.Result{value}
		if (o.Kind == schema.KindList || o.Kind == schema.KindLeafList) && value.IsArray() {
			items = value.Array()
		}
		for _, item := range items {
			ch := New(o)
			if err = decodeInto(ch, item); err != nil {
				return false
			}
			if err = v.AddChild(ch); err != nil {
				return false
			}
			if o.Kind == schema.KindList {
				if err = BuildIndexChain(ch); err != nil {
					return false
				}
			}
		}
		return true
	})
	return err
}

func decodeLeaf(v *Value, res gjson.Result) error {
	var text string
	switch {
	case v.obj.IsEmptyType():
		text = ""
	case res.Type == gjson.String:
		text = res.Str
	default:
		text = res.Raw
	}
	return v.SetSimple(text)
}
