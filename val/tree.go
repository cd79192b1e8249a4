// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package val

import (
	"fmt"
	"slices"

	ncx "github.com/netascode/go-ncx"
)

// AddChild attaches child as the last child of parent, transferring
// ownership
//
// Fails with ncx.ErrNoChildStorage when parent's type cannot hold children
// and with ncx.ErrInternal when child is still owned by another node.
func (parent *Value) AddChild(child *Value) error {
	if !parent.HasChildStorage() {
		return fmt.Errorf("%w: %s (%s)", ncx.ErrNoChildStorage, parent.Name(), parent.Type())
	}
	if child.parent != nil {
		return fmt.Errorf("%w: %s is still attached to %s", ncx.ErrInternal, child.Name(), child.parent.Name())
	}
	child.parent = parent
	parent.children = append(parent.children, child)
	return nil
}

// InsertChild attaches child at position i
func (parent *Value) InsertChild(i int, child *Value) error {
	if err := parent.AddChild(child); err != nil {
		return err
	}
	if i < 0 || i >= len(parent.children)-1 {
		return nil
	}
	copy(parent.children[i+1:], parent.children[i:len(parent.children)-1])
	parent.children[i] = child
	return nil
}

// Detach removes v from its parent without destroying it
//
// A detached key leaf is dropped from the parent's index chain.
func (v *Value) Detach() {
	p := v.parent
	if p == nil {
		return
	}
	if i := slices.Index(p.children, v); i >= 0 {
		p.children = slices.Delete(p.children, i, i+1)
	}
	p.removeKey(v.id)
	v.parent = nil
}

// SwapChild replaces old, a child of its parent, with replacement at the same
// position. Lock slots move to the replacement and key-chain membership
// follows. old is left detached.
//
// SwapChild does not notify registry watchers. Trees whose node IDs are
// tracked, such as a datastore with partial locks, must be changed through
// Registry.Replace instead.
func SwapChild(old, replacement *Value) error {
	p := old.parent
	if p == nil {
		return fmt.Errorf("%w: %s has no parent", ncx.ErrInternal, old.Name())
	}
	if replacement.parent != nil {
		return fmt.Errorf("%w: %s is still attached", ncx.ErrInternal, replacement.Name())
	}
	i := slices.Index(p.children, old)
	if i < 0 {
		return fmt.Errorf("%w: %s not found in %s", ncx.ErrInternal, old.Name(), p.Name())
	}
	p.children[i] = replacement
	replacement.parent = p
	old.parent = nil
	for j, id := range p.index {
		if id == old.id {
			p.index[j] = replacement.id
		}
	}
	replacement.plocks = old.plocks
	old.plocks = [MaxPartialLocks]LockRef{}
	return nil
}

// Clone deep-copies v. Lock slots are not copied; index chains of list
// entries are rebuilt against the copied keys. The copy is detached.
func (v *Value) Clone() *Value {
	c := &Value{
		id:      newID(),
		obj:     v.obj,
		name:    v.name,
		ns:      v.ns,
		payload: clonePayload(v.payload),
		caseObj: v.caseObj,
		status:  v.status,
		flags:   v.flags,
	}
	if len(v.children) > 0 {
		c.children = make([]*Value, 0, len(v.children))
		for _, ch := range v.children {
			cc := ch.Clone()
			cc.parent = c
			c.children = append(c.children, cc)
		}
	}
	if len(v.index) > 0 {
		// keys were complete in the source, so this cannot fail
		_ = BuildIndexChain(c)
	}
	return c
}

// FindChild returns the first child named name in namespace ns; ns zero
// matches any namespace
func (v *Value) FindChild(ns uint32, name string) *Value {
	return v.FindNext(ns, name, nil)
}

// FindNext returns the next child named name after the child after; a nil
// after starts at the first child
func (v *Value) FindNext(ns uint32, name string, after *Value) *Value {
	start := 0
	if after != nil {
		i := slices.Index(v.children, after)
		if i < 0 {
			return nil
		}
		start = i + 1
	}
	for _, ch := range v.children[start:] {
		if ch.Name() == name && (ns == 0 || ch.NS() == ns) {
			return ch
		}
	}
	return nil
}

// FindAll returns every child named name in namespace ns
func (v *Value) FindAll(ns uint32, name string) []*Value {
	var out []*Value
	for _, ch := range v.children {
		if ch.Name() == name && (ns == 0 || ch.NS() == ns) {
			out = append(out, ch)
		}
	}
	return out
}

// FirstChildMatch returns the first child that is an instance of the same
// list entry as match (same name and equal key values), or nil
func (v *Value) FirstChildMatch(match *Value) *Value {
	for _, ch := range v.FindAll(match.NS(), match.Name()) {
		if sameKeys(ch, match) {
			return ch
		}
	}
	return nil
}

func sameKeys(a, b *Value) bool {
	ka, kb := a.Index(), b.Index()
	if len(ka) != len(kb) {
		return false
	}
	for i := range ka {
		if ka[i].String() != kb[i].String() {
			return false
		}
	}
	if len(ka) == 0 && a.obj.Type.IsSimple() {
		return a.String() == b.String()
	}
	return true
}

// ChildInstanceCount returns how many children share name and namespace
func (v *Value) ChildInstanceCount(ns uint32, name string) int {
	return len(v.FindAll(ns, name))
}

// ChildInstanceID returns the 1-based position of child among its
// same-name siblings, or 0 when child is not a child of v
func (v *Value) ChildInstanceID(child *Value) int {
	n := 0
	for _, ch := range v.children {
		if ch.Name() == child.Name() && ch.NS() == child.NS() {
			n++
			if ch == child {
				return n
			}
		}
	}
	return 0
}

// Discard detaches v and releases every lock slot in its subtree
func (v *Value) Discard() {
	v.Detach()
	v.Walk(func(n *Value) bool {
		n.plocks = [MaxPartialLocks]LockRef{}
		return true
	})
}
