// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package val

import (
	"fmt"
	"slices"

	ncx "github.com/netascode/go-ncx"
	"github.com/netascode/go-ncx/schema"
)

// BuildIndexChain records the key leaves of the list entry v in schema key
// order
//
// Any key without a present child fails with ncx.ErrMissingIndex and leaves
// the previous chain untouched. Non-list nodes have no chain.
func BuildIndexChain(v *Value) error {
	if v.obj.Kind != schema.KindList {
		return nil
	}
	chain := make([]ID, 0, len(v.obj.Keys))
	for _, k := range v.obj.KeyObjects() {
		ch := v.FindChild(k.NS(), k.Name)
		if ch == nil {
			return fmt.Errorf("%w: key %s of %s", ncx.ErrMissingIndex, k.Name, v.Name())
		}
		chain = append(chain, ch.id)
	}
	if len(chain) != len(v.obj.Keys) {
		return fmt.Errorf("%w: %s declares unknown keys", ncx.ErrMissingIndex, v.Name())
	}
	v.index = chain
	return nil
}

// Index returns the key leaves of the chain, resolved against the children
// of v. Entries whose child is gone are skipped.
func (v *Value) Index() []*Value {
	if len(v.index) == 0 {
		return nil
	}
	out := make([]*Value, 0, len(v.index))
	for _, id := range v.index {
		for _, ch := range v.children {
			if ch.id == id {
				out = append(out, ch)
				break
			}
		}
	}
	return out
}

// HasIndex reports whether a key chain has been built for v
func (v *Value) HasIndex() bool {
	return len(v.index) > 0
}

func (v *Value) removeKey(id ID) {
	if i := slices.Index(v.index, id); i >= 0 {
		// a chain with a hole is no chain
		v.index = nil
	}
}

// keyValues returns the chain of v, looking the keys up when no chain was
// built
func keyValues(v *Value) ([]*Value, error) {
	if v.obj.Kind != schema.KindList || len(v.obj.Keys) == 0 {
		return nil, nil
	}
	if v.HasIndex() {
		return v.Index(), nil
	}
	var out []*Value
	for _, k := range v.obj.KeyObjects() {
		ch := v.FindChild(k.NS(), k.Name)
		if ch == nil {
			return nil, fmt.Errorf("%w: key %s of %s", ncx.ErrMissingIndex, k.Name, v.Name())
		}
		out = append(out, ch)
	}
	return out, nil
}
