// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package val

import (
	"sync"
)

// Watcher is notified when a tracked node is swapped out or removed
//
// Holders of weak references (variable bindings, lock result sets) register
// a Watcher so their references never outlive the node.
type Watcher interface {
	NodeReplaced(old, replacement *Value)
	NodeRemoved(v *Value)
}

// Registry resolves node IDs to live nodes of a shared tree
//
// Structural changes that invalidate references must go through Replace and
// Remove so every Watcher sees them. Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	nodes    map[ID]*Value
	watchers []Watcher
}

// NewRegistry creates a Registry tracking the subtree rooted at root, which
// may be nil
func NewRegistry(root *Value) *Registry {
	r := &Registry{nodes: make(map[ID]*Value)}
	if root != nil {
		r.Track(root)
	}
	return r
}

// Track registers v and all of its descendants
func (r *Registry) Track(v *Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.track(v)
}

func (r *Registry) track(v *Value) {
	v.Walk(func(n *Value) bool {
		r.nodes[n.id] = n
		return true
	})
}

func (r *Registry) untrack(v *Value) {
	v.Walk(func(n *Value) bool {
		delete(r.nodes, n.id)
		return true
	})
}

// Lookup returns the live node for id, or nil once it was removed
func (r *Registry) Lookup(id ID) *Value {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nodes[id]
}

// Len returns the number of tracked nodes
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// Watch adds a Watcher
func (r *Registry) Watch(w Watcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers = append(r.watchers, w)
}

// Replace swaps old for replacement in the tree and notifies watchers
//
// Lock slots of old move to replacement (see SwapChild).
func (r *Registry) Replace(old, replacement *Value) error {
	r.mu.Lock()
	if err := SwapChild(old, replacement); err != nil {
		r.mu.Unlock()
		return err
	}
	r.untrack(old)
	r.track(replacement)
	watchers := append([]Watcher(nil), r.watchers...)
	r.mu.Unlock()

	for _, w := range watchers {
		w.NodeReplaced(old, replacement)
	}
	return nil
}

// Remove detaches v, releases its lock slots and notifies watchers
func (r *Registry) Remove(v *Value) {
	r.mu.Lock()
	v.Discard()
	r.untrack(v)
	watchers := append([]Watcher(nil), r.watchers...)
	r.mu.Unlock()

	for _, w := range watchers {
		w.NodeRemoved(v)
	}
}
