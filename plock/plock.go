// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

// Package plock implements the partial-lock table shared by the sessions of
// one datastore.
//
// A partial lock claims a lock slot on every config node of the selected
// subtrees. Acquisition is serialized through the Manager so the first
// claimant wins; a failed acquisition is unwound before Acquire returns.
// The Manager watches the datastore registry so that swapped or removed
// nodes never leave stale entries in a lock's node set.
package plock

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	ncx "github.com/netascode/go-ncx"
	"github.com/netascode/go-ncx/val"
)

// Lock is one granted partial lock
type Lock struct {
	// ID is the lock id returned to the client
	ID uint32
	// Session owning the lock
	Session uint32
	// Token identifies the lock in logs across id reuse
	Token string
	// Created is the time the lock was granted
	Created time.Time
	// Selects are the select expressions the lock was requested with
	Selects []string

	// roots are the selected subtree roots, nodes every node claimed
	roots []val.ID
	nodes []val.ID
}

// Nodes returns the IDs of the nodes holding a slot for the lock
func (l *Lock) Nodes() []val.ID {
	return slices.Clone(l.nodes)
}

// Manager grants and releases partial locks on one datastore
type Manager struct {
	mu     sync.Mutex
	reg    *val.Registry
	locks  map[uint32]*Lock
	lastID uint32
	logger ncx.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(l ncx.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a Manager for the datastore tracked by reg and
// registers it as a watcher of reg
func NewManager(reg *val.Registry, opts ...Option) *Manager {
	m := &Manager{
		reg:    reg,
		locks:  make(map[uint32]*Lock),
		logger: &ncx.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}
	reg.Watch(m)
	return m
}

func (m *Manager) nextID() uint32 {
	for {
		m.lastID++
		if m.lastID == 0 {
			continue
		}
		if _, used := m.locks[m.lastID]; !used {
			return m.lastID
		}
	}
}

// Acquire grants session a partial lock on the subtrees rooted at nodes
//
// If any node of any subtree is locked by another session, or has no free
// slot, the slots claimed so far are released and the error is returned.
func (m *Manager) Acquire(session uint32, selects []string, nodes []*val.Value) (*Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(nodes) == 0 {
		return nil, ncx.NewError("partial-lock", ncx.ErrNotFound, "select", "no nodes selected")
	}

	l := &Lock{
		ID:      m.nextID(),
		Session: session,
		Token:   uuid.NewString(),
		Created: time.Now(),
		Selects: slices.Clone(selects),
	}
	ref := val.LockRef{ID: l.ID, Session: session}
	for _, n := range nodes {
		err := val.LockSubtree(n, ref, func(v *val.Value) {
			l.nodes = append(l.nodes, v.ID())
		})
		if err != nil {
			for _, root := range nodes {
				val.ClearSubtreeLock(root, l.ID)
			}
			m.logger.Warn("partial lock denied", "session", session, "lock", l.ID, "error", err)
			e := &ncx.Error{Operation: "partial-lock"}
			e.Add(ncx.ErrorModel{Status: ncx.StatusOf(err), Name: n.Name(), Message: err.Error()})
			return nil, e
		}
		l.roots = append(l.roots, n.ID())
	}
	m.locks[l.ID] = l
	m.logger.Info("partial lock granted", "session", session, "lock", l.ID, "token", l.Token, "nodes", len(l.nodes))
	return l, nil
}

// Release releases lock id held by session
func (m *Manager) Release(session, id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[id]
	if !ok {
		return ncx.NewError("partial-unlock", ncx.ErrNotFound, "lock-id", "lock %d does not exist", id)
	}
	if l.Session != session {
		return ncx.NewError("partial-unlock", ncx.ErrLockDenied, "lock-id", "lock %d is owned by session %d", id, l.Session)
	}
	m.release(l)
	return nil
}

func (m *Manager) release(l *Lock) {
	for _, id := range l.nodes {
		if n := m.reg.Lookup(id); n != nil {
			n.ClearPartialLock(l.ID)
		}
	}
	delete(m.locks, l.ID)
	m.logger.Info("partial lock released", "session", l.Session, "lock", l.ID, "token", l.Token)
}

// ReleaseSession releases every lock of session, as done when the session
// ends. It returns the number of locks released.
func (m *Manager) ReleaseSession(session uint32) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, l := range m.locks {
		if l.Session == session {
			m.release(l)
			n++
		}
	}
	return n
}

// Lock returns the lock with the given id, or nil
func (m *Manager) Lock(id uint32) *Lock {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locks[id]
}

// Locks returns all granted locks ordered by id
func (m *Manager) Locks() []*Lock {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Lock, 0, len(m.locks))
	for _, l := range m.locks {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b *Lock) int { return int(a.ID) - int(b.ID) })
	return out
}

// WriteAuthorized checks that session may apply op to node
//
// The returned error is an *ncx.Error naming the node and the blocking lock.
func (m *Manager) WriteAuthorized(node *val.Value, op val.EditOp, session uint32, checkAncestors bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := val.WriteOK(node, op, session, checkAncestors)
	if err == nil {
		return nil
	}
	path, _ := val.InstanceID(node, val.FormatXPath1, false)
	st := ncx.StatusOf(err)
	e := &ncx.Error{Operation: op.String(), InternalMsg: err.Error()}
	e.Add(ncx.ErrorModel{Status: st, Name: node.Name(), Value: path, Message: fmt.Sprintf("%s (lock %d)", st, id)})
	return e
}

// NodeReplaced implements val.Watcher: the replacement takes over the
// old node's place in every lock, the old node's descendants are dropped
func (m *Manager) NodeReplaced(old, replacement *val.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()

	gone := subtreeIDs(old)
	for _, l := range m.locks {
		for i, id := range l.roots {
			if id == old.ID() {
				l.roots[i] = replacement.ID()
			}
		}
		kept := l.nodes[:0]
		for _, id := range l.nodes {
			switch {
			case id == old.ID():
				kept = append(kept, replacement.ID())
			case gone[id]:
			default:
				kept = append(kept, id)
			}
		}
		l.nodes = kept
	}
}

// NodeRemoved implements val.Watcher: the removed subtree leaves every
// lock's node set
func (m *Manager) NodeRemoved(v *val.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()

	gone := subtreeIDs(v)
	for _, l := range m.locks {
		l.nodes = slices.DeleteFunc(l.nodes, func(id val.ID) bool { return gone[id] })
		l.roots = slices.DeleteFunc(l.roots, func(id val.ID) bool { return gone[id] })
	}
}

func subtreeIDs(v *val.Value) map[val.ID]bool {
	ids := make(map[val.ID]bool)
	v.Walk(func(n *val.Value) bool {
		ids[n.ID()] = true
		return true
	})
	return ids
}
