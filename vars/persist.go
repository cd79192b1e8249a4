// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package vars

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	ncx "github.com/netascode/go-ncx"
	"github.com/netascode/go-ncx/schema"
	"github.com/netascode/go-ncx/val"
	"github.com/tidwall/gjson"
)

// SaveGlobals writes the user globals as a JSON document
//
// Each variable is stored under its name with its base type and content:
//
//	{"vars":{"count":{"type":"uint32","value":3}}}
//
// System and config variables are not saved; they are recreated by the
// session.
func (s *Store) SaveGlobals(w io.Writer) error {
	body := val.Body{}.SetRaw("vars", "{}")
	n := 0
	for _, v := range s.globals.vars {
		if v.Kind != KindGlobal {
			continue
		}
		raw, err := val.MarshalJSON(v.Value)
		if err != nil {
			return fmt.Errorf("save variable %s: %w", v.Name, err)
		}
		key := "vars." + val.EscapeKey(v.Name)
		body = body.Set(key+".type", v.Value.Type().String()).SetRaw(key+".value", raw)
		n++
	}
	doc, err := body.String()
	if err != nil {
		return fmt.Errorf("save globals: %w", err)
	}
	if _, err := io.WriteString(w, doc+"\n"); err != nil {
		return fmt.Errorf("save globals: %w", err)
	}
	s.logger.Debug("saved globals", "count", n)
	return nil
}

// LoadGlobals reads a document written by SaveGlobals and binds every
// variable in it as a global
//
// Leaves are restored with their saved type where possible and as strings
// otherwise; complex values become generic containers.
func (s *Store) LoadGlobals(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("%w: %w", ncx.ErrReadFailed, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("%w: saved globals are not valid JSON", ncx.ErrInvalidValue)
	}

	e := &ncx.Error{Operation: "load-globals"}
	gjson.GetBytes(data, "vars").ForEach(func(key, entry gjson.Result) bool {
		name := key.String()
		v := restore(name, entry.Get("type").String(), entry.Get("value"))
		if err := s.SetMove(name, v, KindGlobal); err != nil {
			e.Add(ncx.ErrorModel{Status: ncx.StatusOf(err), Name: name, Message: err.Error()})
		}
		return true
	})
	return e.Err()
}

// SaveGlobalsFile writes the globals to path
func (s *Store) SaveGlobalsFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save globals: %w", err)
	}
	if err := s.SaveGlobals(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LoadGlobalsFile reads the globals from path; a missing file is not an
// error
func (s *Store) LoadGlobalsFile(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ncx.ErrReadFailed, err)
	}
	defer f.Close()
	return s.LoadGlobals(f)
}

func restore(name, typ string, res gjson.Result) *val.Value {
	if res.IsObject() || (res.IsArray() && typ != schema.TypeEmpty.String()) {
		return fromJSON(name, res)
	}
	if bt, err := schema.ParseBaseType(typ); err == nil && bt.IsSimple() {
		text := res.String()
		if bt == schema.TypeEmpty {
			text = ""
		}
		if v, err := val.NewLeaf(schema.Leaf(name, bt), text); err == nil {
			return v
		}
	}
	return val.NewString(name, res.String())
}

// fromJSON builds a generic tree: objects become containers, arrays
// repeated children and scalars string leaves
func fromJSON(name string, res gjson.Result) *val.Value {
	if !res.IsObject() {
		return val.NewString(name, res.String())
	}
	c := val.NewContainer(name)
	res.ForEach(func(key, value gjson.Result) bool {
		if value.IsArray() {
			for _, item := range value.Array() {
				_ = c.AddChild(fromJSON(key.String(), item))
			}
			return true
		}
		_ = c.AddChild(fromJSON(key.String(), value))
		return true
	})
	return c
}

// Aliases maps command aliases to their replacement text
type Aliases struct {
	values map[string]string
	quotes map[string]byte
}

// NewAliases creates an empty alias table
func NewAliases() *Aliases {
	return &Aliases{values: make(map[string]string), quotes: make(map[string]byte)}
}

// Set parses one "name=value" definition; the value may be quoted with
// single or double quotes, which are kept for writing the alias back
func (a *Aliases) Set(def string) error {
	for _, r := range def {
		if r != '\t' && r != '\n' && (r < ' ' || r == 0x7f) {
			return fmt.Errorf("%w: alias %q contains control characters", ncx.ErrInvalidValue, def)
		}
	}
	name, value, ok := strings.Cut(def, "=")
	if !ValidName(name) {
		return fmt.Errorf("%w: alias %q", ncx.ErrInvalidName, name)
	}
	if !ok || value == "" || value[0] == ' ' || value[0] == '\t' {
		return fmt.Errorf("%w: alias %s has no value", ncx.ErrInvalidValue, name)
	}
	var q byte
	if value[0] == '"' || value[0] == '\'' {
		if len(value) <= 2 || value[len(value)-1] != value[0] {
			return fmt.Errorf("%w: alias %s: unmatched quotes", ncx.ErrInvalidValue, name)
		}
		q = value[0]
		value = value[1 : len(value)-1]
	}
	a.values[name] = value
	a.quotes[name] = q
	return nil
}

// Get returns the replacement text of name
func (a *Aliases) Get(name string) (string, bool) {
	v, ok := a.values[name]
	return v, ok
}

// Delete removes an alias
func (a *Aliases) Delete(name string) bool {
	_, ok := a.values[name]
	delete(a.values, name)
	delete(a.quotes, name)
	return ok
}

// Names returns the alias names in sorted order
func (a *Aliases) Names() []string {
	return slices.Sorted(maps.Keys(a.values))
}

// Expand replaces a leading alias name in line with its text
//
// Returns the line unchanged and false when the first word is not an
// alias.
func (a *Aliases) Expand(line string) (string, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	n := nameLen(trimmed)
	if n == 0 || (n < len(trimmed) && trimmed[n] != ' ' && trimmed[n] != '\t') {
		return line, false
	}
	value, ok := a.values[trimmed[:n]]
	if !ok {
		return line, false
	}
	return value + trimmed[n:], true
}

// Load reads alias definitions, one per line; blank lines and lines
// starting with '#' are skipped. Every bad line is reported.
func (a *Aliases) Load(r io.Reader) error {
	e := &ncx.Error{Operation: "load-aliases"}
	sc := bufio.NewScanner(r)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if err := a.Set(line); err != nil {
			e.Add(ncx.ErrorModel{
				Status:  ncx.StatusOf(err),
				Name:    fmt.Sprintf("line %d", lineno),
				Value:   line,
				Message: err.Error(),
			})
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%w: %w", ncx.ErrReadFailed, err)
	}
	return e.Err()
}

// LoadFile reads aliases from path; a missing file is not an error
func (a *Aliases) LoadFile(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ncx.ErrReadFailed, err)
	}
	defer f.Close()
	return a.Load(f)
}

// WriteTo writes the aliases in name order in the format read by Load
func (a *Aliases) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, name := range a.Names() {
		q := ""
		if c := a.quotes[name]; c != 0 {
			q = string(c)
		}
		n, err := fmt.Fprintf(w, "%s=%s%s%s\n", name, q, a.values[name], q)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
