// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package val

import (
	"fmt"

	ncx "github.com/netascode/go-ncx"
)

// MaxPartialLocks is the number of partial-lock slots per node
const MaxPartialLocks = 4

// LockRef occupies one partial-lock slot: the lock id and its owning session
type LockRef struct {
	ID      uint32
	Session uint32
}

// IsZero reports whether the slot is free
func (r LockRef) IsZero() bool { return r.ID == 0 }

// EditOp is the edit operation a write check is made for
type EditOp int

const (
	OpNone EditOp = iota
	OpMerge
	OpReplace
	OpCreate
	OpDelete
	OpRemove
)

func (op EditOp) String() string {
	switch op {
	case OpNone:
		return "none"
	case OpMerge:
		return "merge"
	case OpReplace:
		return "replace"
	case OpCreate:
		return "create"
	case OpDelete:
		return "delete"
	case OpRemove:
		return "remove"
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// subtree reports whether the operation affects every descendant
func (op EditOp) subtree() bool {
	return op == OpReplace || op == OpDelete || op == OpRemove
}

// Locks returns the occupied lock slots of v
func (v *Value) Locks() []LockRef {
	var out []LockRef
	for _, r := range v.plocks {
		if !r.IsZero() {
			out = append(out, r)
		}
	}
	return out
}

// IsLocked reports whether any slot of v is occupied
func (v *Value) IsLocked() bool {
	for _, r := range v.plocks {
		if !r.IsZero() {
			return true
		}
	}
	return false
}

// SetPartialLock claims a free slot of v for ref
//
// Fails with ncx.ErrNotConfig on state data, ncx.ErrLockDenied when a slot
// is held by another session and ncx.ErrResourceDenied when no slot is free.
// Setting a lock that already occupies a slot is a no-op.
func (v *Value) SetPartialLock(ref LockRef) error {
	if !v.IsConfig() {
		return fmt.Errorf("%w: %s", ncx.ErrNotConfig, v.Name())
	}
	free := -1
	for i, r := range v.plocks {
		switch {
		case r.IsZero():
			if free < 0 {
				free = i
			}
		case r.ID == ref.ID:
			return nil
		case r.Session != ref.Session:
			return fmt.Errorf("%w: %s is held by lock %d", ncx.ErrLockDenied, v.Name(), r.ID)
		}
	}
	if free < 0 {
		return fmt.Errorf("%w: no free lock slot on %s", ncx.ErrResourceDenied, v.Name())
	}
	v.plocks[free] = ref
	return nil
}

// ClearPartialLock releases the slot held by lock id on v
func (v *Value) ClearPartialLock(id uint32) {
	for i, r := range v.plocks {
		if r.ID == id {
			v.plocks[i] = LockRef{}
		}
	}
}

// LockSubtree claims a slot for ref on every config node of the subtree
// rooted at v. Each claimed node is passed to claimed.
//
// The first failure stops the walk; nodes claimed so far keep their slot
// and the caller unwinds them with ClearSubtreeLock.
func LockSubtree(v *Value, ref LockRef, claimed func(*Value)) error {
	if !v.IsConfig() {
		return nil
	}
	if err := v.SetPartialLock(ref); err != nil {
		return err
	}
	if claimed != nil {
		claimed(v)
	}
	for _, ch := range v.children {
		if err := LockSubtree(ch, ref, claimed); err != nil {
			return err
		}
	}
	return nil
}

// ClearSubtreeLock releases lock id on v and all of its descendants
func ClearSubtreeLock(v *Value, id uint32) {
	v.Walk(func(n *Value) bool {
		n.ClearPartialLock(id)
		return true
	})
}

// WriteOK checks whether session may apply op to v
//
// On a conflict it returns the id of the blocking lock together with an
// error wrapping ncx.ErrInUseLocked. Replace, delete and remove check the
// whole subtree; checkAncestors extends the check up to the root.
func WriteOK(v *Value, op EditOp, session uint32, checkAncestors bool) (uint32, error) {
	if op == OpNone {
		return 0, nil
	}
	if !v.IsConfig() {
		return 0, fmt.Errorf("%w: %s", ncx.ErrNotConfig, v.Name())
	}
	if id, err := slotsOK(v, session); err != nil {
		return id, err
	}
	if checkAncestors {
		for cur := v.parent; cur != nil; cur = cur.parent {
			if id, err := slotsOK(cur, session); err != nil {
				return id, err
			}
		}
	}
	if op.subtree() {
		for _, ch := range v.children {
			if !ch.IsConfig() {
				continue
			}
			if id, err := WriteOK(ch, op, session, false); err != nil {
				return id, err
			}
		}
	}
	return 0, nil
}

func slotsOK(v *Value, session uint32) (uint32, error) {
	for _, r := range v.plocks {
		if !r.IsZero() && r.Session != session {
			return r.ID, fmt.Errorf("%w: %s is locked by lock %d", ncx.ErrInUseLocked, v.Name(), r.ID)
		}
	}
	return 0, nil
}
