// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package val

import (
	"testing"
)

type recordingWatcher struct {
	replaced [][2]ID
	removed  []ID
}

func (w *recordingWatcher) NodeReplaced(old, replacement *Value) {
	w.replaced = append(w.replaced, [2]ID{old.ID(), replacement.ID()})
}

func (w *recordingWatcher) NodeRemoved(v *Value) {
	w.removed = append(w.removed, v.ID())
}

func TestRegistry(t *testing.T) {
	sys := New(testSchema())
	host := add(t, sys, "hostname", "r1")
	u := addUser(t, sys, "alice", "1")
	uid := u.FindChild(0, "uid")

	reg := NewRegistry(sys)
	w := &recordingWatcher{}
	reg.Watch(w)

	if reg.Len() != 5 {
		t.Errorf("Expected 5 tracked nodes, got %d", reg.Len())
	}
	if reg.Lookup(uid.ID()) != uid {
		t.Error("Expected uid to resolve")
	}

	repl, _ := NewLeaf(host.Object(), "r2")
	if err := reg.Replace(host, repl); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if reg.Lookup(host.ID()) != nil || reg.Lookup(repl.ID()) != repl {
		t.Error("Expected registry to follow the swap")
	}
	if len(w.replaced) != 1 || w.replaced[0] != [2]ID{host.ID(), repl.ID()} {
		t.Errorf("Unexpected replace notifications %v", w.replaced)
	}

	reg.Remove(u)
	if reg.Lookup(u.ID()) != nil || reg.Lookup(uid.ID()) != nil {
		t.Error("Expected removed subtree to be untracked")
	}
	if len(w.removed) != 1 || w.removed[0] != u.ID() {
		t.Errorf("Unexpected remove notifications %v", w.removed)
	}
	if sys.FindChild(0, "user") != nil {
		t.Error("Expected user to be removed from the tree")
	}
}
