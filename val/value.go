// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package val

import (
	"fmt"
	"sync/atomic"

	ncx "github.com/netascode/go-ncx"
	"github.com/netascode/go-ncx/schema"
)

// ID identifies a value node for the lifetime of the process.
//
// Index chains, lock result sets and registries refer to nodes by ID so
// that removing or swapping a node invalidates those references without a
// tree walk.
type ID uint64

var lastID atomic.Uint64

func newID() ID {
	return ID(lastID.Add(1))
}

// Flag marks node properties set by the engine
type Flag uint8

const (
	// FlagDefault marks a leaf supplied by AddDefaults
	FlagDefault Flag = 1 << iota
)

// Value is a node of a value tree.
//
// A Value is bound to an immutable schema object; its payload (simple
// types) or child sequence (containers and lists) holds the instance data.
// A Value is owned by at most one parent; Detach it before attaching it
// elsewhere.
type Value struct {
	id      ID
	obj     *schema.Object
	name    string
	ns      uint32
	payload Payload

	children []*Value
	parent   *Value

	caseObj *schema.Object
	index   []ID
	plocks  [MaxPartialLocks]LockRef

	status ncx.Status
	flags  Flag
}

// New creates an empty node bound to obj
func New(obj *schema.Object) *Value {
	if obj == nil {
		panic("val: New with nil object")
	}
	v := &Value{id: newID(), obj: obj}
	if obj.Case() != nil {
		v.caseObj = obj.Case()
	}
	if obj.Kind == schema.KindLeaf && obj.Type == schema.TypeEmpty {
		v.payload = Empty{}
	}
	return v
}

// NewString creates a generic string leaf that is not bound to a loaded
// module, as used for script variables holding plain text
func NewString(name, s string) *Value {
	v := New(schema.Leaf(name, schema.TypeString))
	v.payload = String(s)
	return v
}

// NewContainer creates a generic container not bound to a loaded module
func NewContainer(name string) *Value {
	return New(schema.Container(name))
}

// NewLeaf creates a leaf bound to obj and parses text into it
func NewLeaf(obj *schema.Object, text string) (*Value, error) {
	v := New(obj)
	if err := v.SetSimple(text); err != nil {
		return nil, err
	}
	return v, nil
}

// ID returns the node's identity
func (v *Value) ID() ID { return v.id }

// Object returns the schema object the node is bound to
func (v *Value) Object() *schema.Object { return v.obj }

// Name returns the owned name if the node was renamed, else the object name
func (v *Value) Name() string {
	if v.name != "" {
		return v.name
	}
	return v.obj.Name
}

// NS returns the namespace id of the node
func (v *Value) NS() uint32 {
	if v.ns != 0 {
		return v.ns
	}
	return v.obj.NS()
}

// Prefix returns the module prefix of the node
func (v *Value) Prefix() string {
	return v.obj.Prefix()
}

// SetName gives the node an owned name, detaching it from the object name
func (v *Value) SetName(name string) {
	v.name = name
}

// SetNS overrides the namespace id
func (v *Value) SetNS(ns uint32) {
	v.ns = ns
}

// Type returns the base type of the node
func (v *Value) Type() schema.BaseType {
	return v.obj.Type
}

// Payload returns the simple-value content, nil for complex nodes
func (v *Value) Payload() Payload { return v.payload }

// SetPayload replaces the simple-value content
func (v *Value) SetPayload(p Payload) {
	v.payload = p
}

// String returns the canonical text of a simple node
func (v *Value) String() string {
	return Text(v.payload)
}

// Parent returns the owning node, or nil
func (v *Value) Parent() *Value { return v.parent }

// Children returns the child sequence. The slice must not be modified.
func (v *Value) Children() []*Value { return v.children }

// NumChildren returns the number of children
func (v *Value) NumChildren() int { return len(v.children) }

// HasChildStorage reports whether the node can own children
func (v *Value) HasChildStorage() bool {
	return v.obj.Type.HasChildren()
}

// IsConfig reports whether the node is configuration data
func (v *Value) IsConfig() bool {
	return v.obj.IsConfig()
}

// Case returns the selected case object of a case member, or nil
func (v *Value) Case() *schema.Object { return v.caseObj }

// SetCase records the case object a node was selected through
func (v *Value) SetCase(c *schema.Object) { v.caseObj = c }

// Status returns the result code marking an invalid node
func (v *Value) Status() ncx.Status { return v.status }

// SetStatus marks the node; non-OK nodes are removed by PurgeErrors
func (v *Value) SetStatus(st ncx.Status) { v.status = st }

// IsDefault reports whether the node was supplied by AddDefaults
func (v *Value) IsDefault() bool { return v.flags&FlagDefault != 0 }

// Root returns the top of the tree v belongs to
func (v *Value) Root() *Value {
	cur := v
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// SetSimple parses text according to the node's type and stores it
func (v *Value) SetSimple(text string) error {
	p, err := ParseSimple(v.obj, text)
	if err != nil {
		return err
	}
	v.payload = p
	v.flags &^= FlagDefault
	return nil
}

// Merge copies the payload of a simple src into v
func (v *Value) Merge(src *Value) error {
	if !v.obj.Type.IsSimple() || src.obj.Type != v.obj.Type {
		return fmt.Errorf("%w: cannot merge %s into %s", ncx.ErrWrongType, src.obj.Type, v.obj.Type)
	}
	v.payload = clonePayload(src.payload)
	v.flags &^= FlagDefault
	return nil
}

// Walk calls fn for v and every descendant in document order; returning
// false from fn skips the node's children
func (v *Value) Walk(fn func(*Value) bool) {
	if !fn(v) {
		return
	}
	for _, ch := range v.children {
		ch.Walk(fn)
	}
}
