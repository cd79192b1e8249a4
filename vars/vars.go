// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

// Package vars implements the variable store of a script session.
//
// Variables live in one of four namespaces:
//
//	$1..$9   positional parameters of the current script frame
//	$name    local variables of the current frame, falling back to globals
//	$$name   session-wide globals, including read-only system variables and
//	         retype-protected config variables
//	queue    an arbitrary caller-supplied Queue
//
// Every stored value is owned by the store. Set clones its argument; SetMove
// takes over the node instead.
package vars

import (
	"fmt"
	"slices"
	"strings"

	ncx "github.com/netascode/go-ncx"
	"github.com/netascode/go-ncx/val"
)

// Kind is the namespace a variable belongs to
type Kind int

const (
	KindNone Kind = iota
	// KindPositional is a $0..$9 script parameter
	KindPositional
	// KindLocal is a variable of the current script frame
	KindLocal
	// KindConfig is a global mirroring a session setting; its type is fixed
	KindConfig
	// KindGlobal is a user global
	KindGlobal
	// KindSystem is a read-only global
	KindSystem
	// KindQueue is a variable of a caller-supplied queue
	KindQueue
)

var kindNames = map[Kind]string{
	KindNone:       "none",
	KindPositional: "positional",
	KindLocal:      "local",
	KindConfig:     "config",
	KindGlobal:     "global",
	KindSystem:     "system",
	KindQueue:      "queue",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsGlobal reports whether variables of kind k live in the global queue
func (k Kind) IsGlobal() bool {
	return k == KindGlobal || k == KindConfig || k == KindSystem
}

// Var is one variable binding
type Var struct {
	Name  string
	Kind  Kind
	Value *val.Value
}

// Queue is a name-sorted set of variables
type Queue struct {
	vars []*Var
}

// Len returns the number of variables in q
func (q *Queue) Len() int { return len(q.vars) }

// Vars returns the variables of q in name order
func (q *Queue) Vars() []*Var { return slices.Clone(q.vars) }

// Find returns the variable named name, or nil
func (q *Queue) Find(name string) *Var {
	i, ok := q.search(name)
	if !ok {
		return nil
	}
	return q.vars[i]
}

func (q *Queue) search(name string) (int, bool) {
	return slices.BinarySearchFunc(q.vars, name, func(v *Var, name string) int {
		return strings.Compare(v.Name, name)
	})
}

func (q *Queue) insert(v *Var) error {
	i, found := q.search(v.Name)
	if found {
		return fmt.Errorf("%w: variable %s", ncx.ErrDuplicateEntry, v.Name)
	}
	q.vars = slices.Insert(q.vars, i, v)
	return nil
}

func (q *Queue) remove(name string) *Var {
	i, found := q.search(name)
	if !found {
		return nil
	}
	v := q.vars[i]
	q.vars = slices.Delete(q.vars, i, i+1)
	return v
}

// Clear removes every variable
func (q *Queue) Clear() {
	q.vars = nil
}

// Scope supplies the frame-local queues of the current script frame
type Scope interface {
	Parms() *Queue
	Locals() *Queue
}

type topScope struct {
	parms, locals Queue
}

func (s *topScope) Parms() *Queue  { return &s.parms }
func (s *topScope) Locals() *Queue { return &s.locals }

// Store holds the variables of one session
type Store struct {
	globals Queue
	top     topScope
	scope   Scope
	config  *ncx.Config
	logger  ncx.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger
func WithLogger(l ncx.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithConfig sets the session configuration used for file lookups
func WithConfig(cfg *ncx.Config) Option {
	return func(s *Store) {
		s.config = cfg
	}
}

// New creates an empty Store
func New(opts ...Option) *Store {
	s := &Store{
		config: ncx.DefaultConfig(),
		logger: &ncx.NoOpLogger{},
	}
	s.scope = &s.top
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetScope makes scope the current frame; nil restores the top level
func (s *Store) SetScope(scope Scope) {
	if scope == nil {
		s.scope = &s.top
		return
	}
	s.scope = scope
}

// Scope returns the current frame's scope
func (s *Store) Scope() Scope {
	return s.scope
}

func isPositional(name string) bool {
	return name != "" && name[0] >= '0' && name[0] <= '9'
}

func (s *Store) queue(name string, kind Kind) *Queue {
	if isPositional(name) {
		return s.scope.Parms()
	}
	switch {
	case kind == KindLocal:
		return s.scope.Locals()
	case kind.IsGlobal():
		return &s.globals
	}
	return nil
}

// Set binds a clone of v to name
func (s *Store) Set(name string, v *val.Value, kind Kind) error {
	if v == nil {
		return fmt.Errorf("%w: variable %s: nil value", ncx.ErrInternal, name)
	}
	return s.set(nil, name, v.Clone(), kind)
}

// SetMove binds v itself to name; v is detached from its parent first.
// On error v is discarded.
func (s *Store) SetMove(name string, v *val.Value, kind Kind) error {
	if v == nil {
		return fmt.Errorf("%w: variable %s: nil value", ncx.ErrInternal, name)
	}
	v.Detach()
	return s.set(nil, name, v, kind)
}

// SetString binds a string leaf holding text to name
func (s *Store) SetString(name, text string, kind Kind) error {
	return s.set(nil, name, val.NewString(name, text), kind)
}

// SetQueue binds a clone of v to name in q
func (s *Store) SetQueue(q *Queue, name string, v *val.Value) error {
	if q == nil || v == nil {
		return fmt.Errorf("%w: variable %s: nil queue or value", ncx.ErrInternal, name)
	}
	return s.set(q, name, v.Clone(), KindQueue)
}

func (s *Store) set(q *Queue, name string, v *val.Value, kind Kind) error {
	if name == "" {
		return fmt.Errorf("%w: empty variable name", ncx.ErrInvalidName)
	}
	if q == nil {
		q = s.queue(name, kind)
		if q == nil {
			return fmt.Errorf("%w: variable %s: invalid kind %s", ncx.ErrInternal, name, kind)
		}
	}
	if isPositional(name) {
		kind = KindPositional
	}

	if cur := q.Find(name); cur != nil {
		if err := s.modify(cur, v); err != nil {
			s.logger.Error("variable not changed", "name", name, "kind", cur.Kind, "error", err)
			return err
		}
		s.logger.Debug("variable changed", "name", name, "kind", cur.Kind)
		return nil
	}

	v.SetName(name)
	if err := q.insert(&Var{Name: name, Kind: kind, Value: v}); err != nil {
		return err
	}
	s.logger.Debug("variable created", "name", name, "kind", kind)
	return nil
}

func (s *Store) modify(cur *Var, v *val.Value) error {
	switch cur.Kind {
	case KindSystem:
		return fmt.Errorf("%w: system variable %s cannot be changed", ncx.ErrReadOnly, cur.Name)
	case KindConfig:
		old := cur.Value
		oldSimple, newSimple := old.Type().IsSimple(), v.Type().IsSimple()
		switch {
		case oldSimple && newSimple:
			// keep the config type, reparsing the new value's text
			return old.SetSimple(v.String())
		case old.Type() != v.Type():
			return fmt.Errorf("%w: cannot change the type of config variable %s from %s to %s",
				ncx.ErrWrongType, cur.Name, old.Type(), v.Type())
		}
	}
	v.SetName(cur.Name)
	cur.Value = v
	return nil
}

// Get returns the value bound to name, or nil
//
// A local lookup falls back to the globals.
func (s *Store) Get(name string, kind Kind) *val.Value {
	if v := s.Find(name, kind); v != nil {
		return v.Value
	}
	return nil
}

// Find returns the binding of name, or nil
func (s *Store) Find(name string, kind Kind) *Var {
	q := s.queue(name, kind)
	if q == nil {
		return nil
	}
	if v := q.Find(name); v != nil {
		return v
	}
	if kind == KindLocal && !isPositional(name) {
		return s.globals.Find(name)
	}
	return nil
}

// GetQueue returns the value bound to name in q, or nil
func (s *Store) GetQueue(q *Queue, name string) *val.Value {
	if v := q.Find(name); v != nil {
		return v.Value
	}
	return nil
}

// Unset removes the binding of name
//
// System and config variables cannot be removed.
func (s *Store) Unset(name string, kind Kind) error {
	q := s.queue(name, kind)
	if q == nil {
		return fmt.Errorf("%w: variable %s: invalid kind %s", ncx.ErrWrongType, name, kind)
	}
	cur := q.Find(name)
	if cur == nil && kind == KindLocal {
		q = &s.globals
		cur = q.Find(name)
	}
	if cur == nil {
		return fmt.Errorf("%w: variable %s", ncx.ErrNotFound, name)
	}
	if cur.Kind == KindSystem || cur.Kind == KindConfig {
		return fmt.Errorf("%w: %s variable %s cannot be removed", ncx.ErrReadOnly, cur.Kind, name)
	}
	q.remove(name)
	cur.Value.Discard()
	return nil
}

// UnsetQueue removes the binding of name from q
func (s *Store) UnsetQueue(q *Queue, name string) error {
	cur := q.remove(name)
	if cur == nil {
		return fmt.Errorf("%w: variable %s", ncx.ErrNotFound, name)
	}
	cur.Value.Discard()
	return nil
}

// Vars returns the bindings of one kind in name order
//
// KindLocal and KindPositional list the current frame; the global kinds
// list the globals of exactly that kind.
func (s *Store) Vars(kind Kind) []*Var {
	switch kind {
	case KindPositional:
		return s.scope.Parms().Vars()
	case KindLocal:
		return s.scope.Locals().Vars()
	}
	var out []*Var
	for _, v := range s.globals.vars {
		if v.Kind == kind {
			out = append(out, v)
		}
	}
	return out
}

// Globals returns every global binding in name order
func (s *Store) Globals() []*Var {
	return s.globals.Vars()
}
