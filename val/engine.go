// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package val

import (
	"cmp"
	"fmt"
	"slices"

	ncx "github.com/netascode/go-ncx"
	"github.com/netascode/go-ncx/schema"
)

// WhenEvaluator evaluates a when-stmt expression with context as the
// current node and root as the document root
type WhenEvaluator interface {
	EvalWhen(expr string, context, root *Value) (bool, error)
}

// Engine fills defaults into value trees and checks them against their
// schema
type Engine struct {
	when   WhenEvaluator
	logger ncx.Logger
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithWhen sets the evaluator for when-stmt expressions. Without one every
// when condition is treated as true.
func WithWhen(w WhenEvaluator) EngineOption {
	return func(e *Engine) {
		e.when = w
	}
}

// WithLogger sets the logger; findings are logged at Error, swallowed when
// errors at Debug
func WithLogger(l ncx.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an Engine
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{logger: &ncx.NoOpLogger{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// whenTrue evaluates the when-stmt of obj; errors count as false
func (e *Engine) whenTrue(obj *schema.Object, context, root *Value) bool {
	if obj.When == "" || e.when == nil {
		return true
	}
	ok, err := e.when.EvalWhen(obj.When, context, root)
	if err != nil {
		e.logger.Debug("when evaluation failed, treating as false",
			"node", obj.Name, "when", obj.When, "error", err)
		return false
	}
	return ok
}

// CheckWhen evaluates the when-stmt of v's own object, with v's parent as
// the context node. Unlike AddDefaults it reports evaluation errors.
func (e *Engine) CheckWhen(v *Value) (bool, error) {
	if v.obj.When == "" || e.when == nil {
		return true, nil
	}
	ctx := v.parent
	if ctx == nil {
		ctx = v
	}
	ok, err := e.when.EvalWhen(v.obj.When, ctx, v.Root())
	if err != nil {
		return false, fmt.Errorf("%w: when %q on %s: %w", ncx.ErrEvalFailed, v.obj.When, v.Name(), err)
	}
	return ok, nil
}

// AddDefaults adds the missing default leaves of v and of every container
// and list entry below it
//
// Defaults are only added for config leaves whose when condition, evaluated
// against context and root, holds. A when condition that fails to evaluate
// skips the default without an error. Leaf-lists are never defaulted and
// no container or list instance is created. For a choice, only the selected
// case (or the default case when none is selected) is visited; mandatory
// choices are left alone. Running AddDefaults twice adds nothing the second
// time.
func (e *Engine) AddDefaults(v, root, context *Value) error {
	if !v.HasChildStorage() {
		return nil
	}
	if root == nil {
		root = v.Root()
	}
	if context == nil {
		context = v
	}
	return e.addDefaults(v, v.obj.Children, root, context)
}

func (e *Engine) addDefaults(v *Value, objs []*schema.Object, root, context *Value) error {
	for _, o := range objs {
		switch o.Kind {
		case schema.KindLeaf:
			if !o.HasDefault || !o.IsConfig() {
				continue
			}
			if v.FindChild(o.NS(), o.Name) != nil {
				continue
			}
			if !e.whenTrue(o, context, root) {
				continue
			}
			leaf, err := NewLeaf(o, o.Default)
			if err != nil {
				return fmt.Errorf("default of %s: %w", o.Name, err)
			}
			leaf.flags |= FlagDefault
			if err := v.AddChild(leaf); err != nil {
				return err
			}

		case schema.KindChoice:
			if o.Mandatory {
				continue
			}
			cas := SelectedCase(v, o)
			if cas == nil {
				cas = o.DefaultCaseObject()
			}
			if cas == nil || !e.whenTrue(cas, context, root) {
				continue
			}
			if err := e.addDefaults(v, cas.Children, root, context); err != nil {
				return err
			}

		case schema.KindContainer, schema.KindList:
			for _, ch := range v.FindAll(o.NS(), o.Name) {
				if err := e.addDefaults(ch, o.Children, root, ch); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// caseUnder returns the case of choice that v was selected through, looking
// through nested choices, or nil
func caseUnder(v *Value, choice *schema.Object) *schema.Object {
	cas := v.caseObj
	for cas != nil {
		if cas.Parent == choice {
			return cas
		}
		ch := cas.Parent
		if ch == nil || ch.Parent == nil || ch.Parent.Kind != schema.KindCase {
			return nil
		}
		cas = ch.Parent
	}
	return nil
}

// SelectedCase returns the case of choice that the children of parent
// select, or nil
func SelectedCase(parent *Value, choice *schema.Object) *schema.Object {
	for _, ch := range parent.children {
		if cas := caseUnder(ch, choice); cas != nil {
			return cas
		}
	}
	return nil
}

// ChoiceIsSet reports whether a case of choice is selected under parent and
// all mandatory config children of that case are present
func ChoiceIsSet(parent *Value, choice *schema.Object) bool {
	cas := SelectedCase(parent, choice)
	if cas == nil {
		return false
	}
	for _, o := range cas.DataChildren() {
		if o.Mandatory && o.IsConfig() && parent.FindChild(o.NS(), o.Name) == nil {
			return false
		}
	}
	return true
}

// InstanceCheck checks the instance counts of the children of v against
// tmpl, which is normally v's own object
//
// Every violation is logged and recorded; the returned *ncx.Error carries
// all of them and the status of the last one.
func (e *Engine) InstanceCheck(v *Value, tmpl *schema.Object) error {
	errs := &ncx.Error{Operation: "instance check"}
	e.checkObjects(v, tmpl.Children, errs)
	return errs.Err()
}

// ChoiceCheck checks that at most one case of choice is selected under v,
// that a mandatory choice has a selection, and the instance counts within
// the selected case
func (e *Engine) ChoiceCheck(v *Value, choice *schema.Object) error {
	errs := &ncx.Error{Operation: "choice check"}
	e.checkChoice(v, choice, errs)
	return errs.Err()
}

// Validate runs InstanceCheck on v and every container and list entry below
// it, collecting all findings
func (e *Engine) Validate(v *Value) error {
	errs := &ncx.Error{Operation: "validate"}
	v.Walk(func(n *Value) bool {
		if !n.HasChildStorage() {
			return false
		}
		e.checkObjects(n, n.obj.Children, errs)
		return true
	})
	return errs.Err()
}

func (e *Engine) report(errs *ncx.Error, v *Value, st ncx.Status, name, format string, args ...any) {
	m := ncx.ErrorModel{Status: st, Name: name, Message: fmt.Sprintf(format, args...)}
	if id, err := InstanceID(v, FormatXPath1, false); err == nil {
		m.Value = id
	}
	e.logger.Error("instance check failed", "node", name, "status", st.Error(), "parent", m.Value, "reason", m.Message)
	errs.Add(m)
}

func (e *Engine) checkObjects(v *Value, objs []*schema.Object, errs *ncx.Error) {
	for _, o := range objs {
		switch o.Kind {
		case schema.KindChoice:
			e.checkChoice(v, o, errs)
		case schema.KindCase, schema.KindRPC, schema.KindInput, schema.KindOutput:
		default:
			e.checkCount(v, o, errs)
		}
	}
}

func (e *Engine) checkCount(v *Value, o *schema.Object, errs *ncx.Error) {
	n := uint32(v.ChildInstanceCount(o.NS(), o.Name))
	lo, hi := o.Bounds()
	if n < lo {
		if !e.whenTrue(o, v, v.Root()) {
			return
		}
		if o.Iqual() == schema.IqualOne {
			e.report(errs, v, ncx.ErrMissingInstance, o.Name, "mandatory %s missing", o.Kind)
		} else {
			e.report(errs, v, ncx.ErrMissingInstance, o.Name, "%d instances, at least %d required", n, lo)
		}
	}
	if hi > 0 && n > hi {
		e.report(errs, v, ncx.ErrExtraInstance, o.Name, "%d instances, at most %d allowed", n, hi)
	}
}

func (e *Engine) checkChoice(v *Value, choice *schema.Object, errs *ncx.Error) {
	var selected *schema.Object
	for _, ch := range v.children {
		cas := caseUnder(ch, choice)
		if cas == nil {
			continue
		}
		if selected == nil {
			selected = cas
			continue
		}
		if cas != selected {
			e.report(errs, v, ncx.ErrExtraChoice, choice.Name,
				"case %s conflicts with case %s via %s", cas.Name, selected.Name, ch.Name())
			return
		}
	}
	if selected == nil {
		if choice.Mandatory {
			e.report(errs, v, ncx.ErrMissingChoice, choice.Name, "no case selected")
		}
		return
	}
	e.checkObjects(v, selected.Children, errs)
}

// Canonicalize reorders the children of v and of every complex descendant
// into schema order, keys first for list entries
//
// Instances of the same object keep their relative order. Children that
// match no schema node are appended in their original order and logged.
// Datastore root containers sort their top-level children by qualified
// name. Error nodes must have been purged first.
func (e *Engine) Canonicalize(v *Value) {
	if !v.HasChildStorage() {
		return
	}
	if v.obj.Root {
		slices.SortStableFunc(v.children, func(a, b *Value) int {
			return cmp.Or(cmp.Compare(a.Prefix(), b.Prefix()), cmp.Compare(a.Name(), b.Name()))
		})
	} else {
		e.reorder(v)
	}
	for _, ch := range v.children {
		e.Canonicalize(ch)
	}
}

func (e *Engine) reorder(v *Value) {
	order := v.obj.DataChildren()
	if v.obj.Kind == schema.KindList {
		keys := v.obj.KeyObjects()
		rest := slices.DeleteFunc(slices.Clone(order), func(o *schema.Object) bool {
			return slices.Contains(keys, o)
		})
		order = append(keys, rest...)
	}

	out := make([]*Value, 0, len(v.children))
	used := make(map[*Value]bool, len(v.children))
	for _, o := range order {
		for _, ch := range v.children {
			if !used[ch] && ch.obj == o {
				out = append(out, ch)
				used[ch] = true
			}
		}
	}
	for _, ch := range v.children {
		if !used[ch] {
			e.logger.Warn("child not in schema order", "parent", v.Name(), "child", ch.Name())
			out = append(out, ch)
		}
	}
	v.children = out
}

// PurgeErrors removes every descendant of v whose status is not OK,
// dropping it from its parent's key chain first
func PurgeErrors(v *Value) {
	kept := v.children[:0]
	var purged []*Value
	for _, ch := range v.children {
		if ch.status != ncx.StatusOK {
			purged = append(purged, ch)
			continue
		}
		kept = append(kept, ch)
	}
	clear(v.children[len(kept):])
	v.children = kept
	for _, ch := range purged {
		v.removeKey(ch.id)
		ch.parent = nil
		ch.Discard()
	}
	for _, ch := range v.children {
		PurgeErrors(ch)
	}
}
