// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package vars

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	ncx "github.com/netascode/go-ncx"
	"github.com/netascode/go-ncx/schema"
	"github.com/netascode/go-ncx/val"
)

// Side tells ParseRef which side of an assignment a reference is on
type Side int

const (
	// Right is a reference being read
	Right Side = iota
	// Left is the target of an assignment
	Left
)

// Ref is a parsed variable reference
type Ref struct {
	// Name without the $ or $$ marker
	Name string
	// Kind is KindLocal for $name, KindPositional for $N, or the kind of
	// the existing global for $$name (KindGlobal when unbound)
	Kind Kind
	// Len is the number of bytes of the input the reference used,
	// including leading whitespace; zero when the input is not a reference
	Len int
}

// ParseRef scans a variable reference at the start of text
//
// Returns a zero Ref and no error when text does not start with '$'.
// Positional references are invalid as assignment targets and with the
// global marker.
func (s *Store) ParseRef(text string, side Side) (Ref, error) {
	str := strings.TrimLeft(text, " \t\r\n")
	if !strings.HasPrefix(str, "$") {
		return Ref{}, nil
	}

	ref := Ref{Kind: KindLocal}
	if strings.HasPrefix(str, "$$") {
		ref.Kind = KindGlobal
		str = str[2:]
	} else {
		str = str[1:]
	}

	var n int
	switch {
	case str != "" && isDigit(str[0]):
		if side == Left || ref.Kind == KindGlobal {
			return Ref{}, fmt.Errorf("%w: positional variable $%s", ncx.ErrInvalidValue, str[:1])
		}
		for n < len(str) && isDigit(str[n]) {
			n++
		}
		num, err := strconv.Atoi(str[:n])
		if err != nil || num > ncx.MaxScriptParms {
			return Ref{}, fmt.Errorf("%w: positional variable $%s", ncx.ErrInvalidValue, str[:n])
		}
		ref.Kind = KindPositional
	default:
		n = nameLen(str)
		if n == 0 {
			return Ref{}, fmt.Errorf("%w: variable reference %q", ncx.ErrInvalidName, strings.TrimSpace(text))
		}
	}

	ref.Name = str[:n]
	ref.Len = len(text) - len(str) + n

	if ref.Kind == KindGlobal {
		if g := s.globals.Find(ref.Name); g != nil {
			ref.Kind = g.Kind
		}
	}
	return ref, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// nameLen returns the length of the identifier at the start of s
func nameLen(s string) int {
	if s == "" || !isNameStart(s[0]) {
		return 0
	}
	n := 1
	for n < len(s) {
		c := s[n]
		if !isNameStart(c) && !isDigit(c) && c != '-' && c != '.' {
			break
		}
		n++
	}
	return n
}

// ValidName reports whether s is a complete identifier
func ValidName(s string) bool {
	return s != "" && nameLen(s) == len(s)
}

// Resolve returns the value of a complete reference such as "$x", "$$x"
// or "$1"
func (s *Store) Resolve(text string) (*val.Value, error) {
	ref, err := s.ParseRef(text, Right)
	if err != nil {
		return nil, err
	}
	if ref.Len == 0 || ref.Len != len(text) {
		return nil, fmt.Errorf("%w: %q is not a variable reference", ncx.ErrInvalidName, text)
	}
	v := s.Get(ref.Name, ref.Kind)
	if v == nil {
		return nil, fmt.Errorf("%w: variable %s", ncx.ErrNotFound, text)
	}
	return v, nil
}

// ScriptValue converts script text into a node of obj
//
// The leading character selects the form:
//
//	$x $$x $1     a clone of the variable, converted to obj
//	@file         external content read from file
//	"text" 'text' a quoted literal
//	[<...>]       inline markup
//	other         a literal of obj's type
//
// At the top level of an assignment (top is true) a bare identifier may be
// a command name; ScriptValue then returns nil and no error. Choice and case
// objects produce the selected case member.
func (s *Store) ScriptValue(obj *schema.Object, text string, top bool) (*val.Value, error) {
	simple := obj.Type.IsSimple()

	switch {
	case text == "":
		switch {
		case simple:
			return val.NewLeaf(obj, "")
		case obj.Kind == schema.KindAnyxml:
			v := val.New(obj)
			v.SetPayload(val.Internal{})
			return v, nil
		}
		return nil, fmt.Errorf("%w: %s %s needs a value", ncx.ErrWrongType, obj.Kind, obj.Name)

	case text[0] == '@':
		return s.external(obj, text[1:])

	case text[0] == '$':
		ref, err := s.ParseRef(text, Right)
		if err != nil {
			return nil, err
		}
		varval := s.Get(ref.Name, ref.Kind)
		if varval == nil {
			return nil, fmt.Errorf("%w: variable %s", ncx.ErrNotFound, strings.TrimSpace(text[:ref.Len]))
		}
		return fromVar(obj, varval)

	case text[0] == '"' || text[0] == '\'':
		if len(text) < 2 || text[len(text)-1] != text[0] {
			return nil, fmt.Errorf("%w: %s", ncx.ErrUnterminatedString, text)
		}
		inner := text[1 : len(text)-1]
		switch {
		case simple:
			return val.NewLeaf(obj, inner)
		case obj.Kind == schema.KindAnyxml:
			v := val.New(obj)
			v.SetPayload(val.Internal{Text: inner})
			return v, nil
		}
		return nil, fmt.Errorf("%w: %s %s cannot take a string", ncx.ErrWrongType, obj.Kind, obj.Name)

	case strings.HasPrefix(text, "[<"):
		end := strings.Index(text[2:], ">]")
		if end < 0 {
			return nil, fmt.Errorf("%w: inline markup %s", ncx.ErrUnterminatedString, text)
		}
		v := val.New(obj)
		v.SetPayload(val.Internal{Text: text[1 : end+3]})
		return v, nil

	case top && isNameStart(text[0]):
		return nil, nil

	case simple:
		return val.NewLeaf(obj, text)

	case obj.Kind == schema.KindAnyxml:
		v := val.New(obj)
		v.SetPayload(val.Internal{Text: text})
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s %s cannot take %q", ncx.ErrWrongType, obj.Kind, obj.Name, text)
}

func (s *Store) external(obj *schema.Object, name string) (*val.Value, error) {
	path, err := s.FindFile(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ncx.ErrReadFailed, err)
	}
	v := val.New(obj)
	v.SetPayload(val.External{Path: path, Data: string(data)})
	return v, nil
}

// FindFile expands a leading ~ and searches the configured script paths
// for a relative name
func (s *Store) FindFile(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty file name", ncx.ErrInvalidValue)
	}
	if rest, ok := strings.CutPrefix(name, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ncx.ErrNotFound, err)
		}
		name = filepath.Join(home, rest)
	}
	if filepath.IsAbs(name) || fileExists(name) {
		if !fileExists(name) {
			return "", fmt.Errorf("%w: file %s", ncx.ErrNotFound, name)
		}
		return name, nil
	}
	for _, dir := range s.config.ScriptPaths {
		if p := filepath.Join(dir, name); fileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: file %s", ncx.ErrNotFound, name)
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

// fromVar converts a clone of varval into a node of obj
func fromVar(obj *schema.Object, varval *val.Value) (*val.Value, error) {
	switch obj.Kind {
	case schema.KindChoice, schema.KindCase:
		// a string naming an empty member selects that member
		if varval.Type().IsString() {
			if target := obj.FindData(varval.String()); target != nil && target.IsEmptyType() {
				return val.New(target), nil
			}
		}
		if target := obj.FindData(varval.Name()); target != nil {
			return Retarget(target, varval)
		}
		return nil, fmt.Errorf("%w: variable %s matches no member of %s", ncx.ErrWrongType, varval.Name(), obj.Name)

	case schema.KindLeaf, schema.KindLeafList:
		if !varval.Type().IsSimple() {
			return nil, fmt.Errorf("%w: variable %s is a %s", ncx.ErrWrongType, varval.Name(), varval.Type())
		}
		return val.NewLeaf(obj, varval.String())

	case schema.KindAnyxml:
		c := varval.Clone()
		if c.HasChildStorage() {
			c.SetName(obj.Name)
			return c, nil
		}
		v := val.New(obj)
		v.SetPayload(val.Internal{Text: varval.String()})
		return v, nil

	case schema.KindContainer, schema.KindList:
		if !varval.HasChildStorage() {
			return nil, fmt.Errorf("%w: variable %s is a %s", ncx.ErrWrongType, varval.Name(), varval.Type())
		}
		return Retarget(obj, varval)
	}
	return nil, fmt.Errorf("%w: %s %s", ncx.ErrWrongType, obj.Kind, obj.Name)
}

// Retarget rebuilds src as a tree bound to obj
//
// Leaves are reparsed from their text, so generic script values acquire the
// types of obj. A src child with no counterpart in obj is an error.
func Retarget(obj *schema.Object, src *val.Value) (*val.Value, error) {
	if obj.Type.IsSimple() {
		if !src.Type().IsSimple() {
			return nil, fmt.Errorf("%w: %s is a %s", ncx.ErrWrongType, src.Name(), src.Type())
		}
		return val.NewLeaf(obj, src.String())
	}
	if !obj.Type.HasChildren() {
		return src.Clone(), nil
	}
	if !src.HasChildStorage() {
		return nil, fmt.Errorf("%w: %s is a %s", ncx.ErrWrongType, src.Name(), src.Type())
	}
	out := val.New(obj)
	for _, ch := range src.Children() {
		target := obj.FindData(ch.Name())
		if target == nil {
			return nil, fmt.Errorf("%w: %s has no child %s", ncx.ErrUnknownParm, obj.Name, ch.Name())
		}
		nc, err := Retarget(target, ch)
		if err != nil {
			return nil, err
		}
		if err := out.AddChild(nc); err != nil {
			return nil, err
		}
	}
	if obj.Kind == schema.KindList {
		if err := val.BuildIndexChain(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}
