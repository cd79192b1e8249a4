// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

// Package cond evaluates the condition expressions of when-stmts and of
// the script statements if, elif, while and eval against value trees.
//
// Expressions use the expr language (github.com/expr-lang/expr). The
// children of the context node are visible as variables, with '-' in
// node names replaced by '_'; the document root is visible as root and the
// context node itself as current. Script variables are referenced as $name
// (local, falling back to global), $$name (global) or $1..$9.
//
//	ssh_port == 22 && root.system?.hostname != nil
//	$count < 3
package cond

import (
	"fmt"
	"maps"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	ncx "github.com/netascode/go-ncx"
	"github.com/netascode/go-ncx/schema"
	"github.com/netascode/go-ncx/val"
)

// Resolver looks up script variable references such as "$x" or "$$x"
type Resolver interface {
	Resolve(ref string) (*val.Value, error)
}

// Evaluator compiles expressions once and evaluates them against value
// trees. It implements val.WhenEvaluator.
type Evaluator struct {
	mu       sync.Mutex
	programs map[string]*compiled
	vars     Resolver
	logger   ncx.Logger
}

type compiled struct {
	program *vm.Program
	refs    []string
}

// Option configures an Evaluator
type Option func(*Evaluator)

// WithResolver makes script variables available to expressions
func WithResolver(r Resolver) Option {
	return func(e *Evaluator) {
		e.vars = r
	}
}

// WithLogger sets the logger
func WithLogger(l ncx.Logger) Option {
	return func(e *Evaluator) {
		e.logger = l
	}
}

// New creates an Evaluator
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		programs: make(map[string]*compiled),
		logger:   &ncx.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var varRef = regexp.MustCompile(`\$\$?([A-Za-z_][A-Za-z0-9_-]*|[0-9])`)

func (e *Evaluator) compile(text string) (*compiled, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.programs[text]; ok {
		return c, nil
	}

	c := &compiled{}
	source := varRef.ReplaceAllStringFunc(text, func(ref string) string {
		i := slices.Index(c.refs, ref)
		if i < 0 {
			i = len(c.refs)
			c.refs = append(c.refs, ref)
		}
		return "__v" + strconv.Itoa(i)
	})
	program, err := expr.Compile(source, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("%w: compile %q: %w", ncx.ErrEvalFailed, text, err)
	}
	c.program = program
	e.programs[text] = c
	e.logger.Debug("compiled expression", "expr", text, "vars", len(c.refs))
	return c, nil
}

// Run evaluates text and returns the raw result
func (e *Evaluator) Run(text string, context, root *val.Value) (any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty expression", ncx.ErrEvalFailed)
	}
	c, err := e.compile(text)
	if err != nil {
		return nil, err
	}
	env := Env(context, root)
	for i, ref := range c.refs {
		if e.vars == nil {
			return nil, fmt.Errorf("%w: variable %s: no variable store", ncx.ErrEvalFailed, ref)
		}
		v, err := e.vars.Resolve(ref)
		if err != nil {
			return nil, fmt.Errorf("%w: variable %s: %w", ncx.ErrEvalFailed, ref, err)
		}
		env["__v"+strconv.Itoa(i)] = Native(v)
	}
	out, err := expr.Run(c.program, env)
	if err != nil {
		return nil, fmt.Errorf("%w: eval %q: %w", ncx.ErrEvalFailed, text, err)
	}
	return out, nil
}

// EvalBool evaluates text and converts the result to a boolean with
// Truth
func (e *Evaluator) EvalBool(text string, context, root *val.Value) (bool, error) {
	out, err := e.Run(text, context, root)
	if err != nil {
		return false, err
	}
	return Truth(out), nil
}

// EvalWhen implements val.WhenEvaluator
func (e *Evaluator) EvalWhen(text string, context, root *val.Value) (bool, error) {
	return e.EvalBool(text, context, root)
}

// Eval evaluates text and converts the result into a value node named
// name, whatever the result kind
func (e *Evaluator) Eval(name, text string, context, root *val.Value) (*val.Value, error) {
	out, err := e.Run(text, context, root)
	if err != nil {
		return nil, err
	}
	return ToValue(name, out), nil
}

// Truth converts an expression result to a boolean: nil, false, zero
// numbers, empty strings and empty collections are false
func Truth(x any) bool {
	switch v := x.(type) {
	case nil:
		return false
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case uint64:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v != ""
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	}
	return true
}

// Env builds the expression environment for a context node
func Env(context, root *val.Value) map[string]any {
	env := make(map[string]any)
	if context != nil {
		if m, ok := Native(context).(map[string]any); ok {
			maps.Copy(env, m)
		}
		env["current"] = Native(context)
	}
	if root != nil {
		env["root"] = Native(root)
	}
	return env
}

// Native converts a value node to plain Go data: maps for containers and
// list entries, slices for repeated children, scalars for leaves
func Native(v *val.Value) any {
	if v == nil {
		return nil
	}
	if v.HasChildStorage() {
		m := make(map[string]any, v.NumChildren())
		for _, ch := range v.Children() {
			key := identifier(ch.Name())
			x := Native(ch)
			switch prev := m[key].(type) {
			case nil:
				if ch.Object().Kind == schema.KindList || ch.Object().Kind == schema.KindLeafList {
					m[key] = []any{x}
				} else {
					m[key] = x
				}
			case []any:
				m[key] = append(prev, x)
			default:
				m[key] = []any{prev, x}
			}
		}
		return m
	}
	switch p := v.Payload().(type) {
	case nil:
		return nil
	case val.Empty:
		return true
	case val.Bool:
		return bool(p)
	case val.Int:
		return int(p)
	case val.Uint:
		// expr compares integer kinds as int
		if p > math.MaxInt64 {
			return float64(p)
		}
		return int(p)
	case val.Float:
		return float64(p)
	case val.Decimal:
		f, _ := strconv.ParseFloat(val.Text(p), 64)
		return f
	case val.Union:
		return Native(unionLeaf(v, p))
	default:
		return val.Text(p)
	}
}

func unionLeaf(v *val.Value, u val.Union) *val.Value {
	leaf := val.New(schema.Leaf(v.Name(), u.Member))
	leaf.SetPayload(u.Value)
	return leaf
}

func identifier(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// ToValue converts an expression result into a value node: booleans,
// numbers and strings become leaves, maps become containers and slices
// become repeated children named "item"
func ToValue(name string, x any) *val.Value {
	switch v := x.(type) {
	case *val.Value:
		c := v.Clone()
		c.SetName(name)
		return c
	case bool:
		leaf := val.New(schema.Leaf(name, schema.TypeBoolean))
		leaf.SetPayload(val.Bool(v))
		return leaf
	case int:
		leaf := val.New(schema.Leaf(name, schema.TypeInt64))
		leaf.SetPayload(val.Int(v))
		return leaf
	case int64:
		leaf := val.New(schema.Leaf(name, schema.TypeInt64))
		leaf.SetPayload(val.Int(v))
		return leaf
	case float64:
		leaf := val.New(schema.Leaf(name, schema.TypeFloat64))
		leaf.SetPayload(val.Float(v))
		return leaf
	case string:
		return val.NewString(name, v)
	case nil:
		return val.NewString(name, "")
	case map[string]any:
		c := val.NewContainer(name)
		for _, k := range slices.Sorted(maps.Keys(v)) {
			if ch := v[k]; ch != nil {
				addItems(c, k, ch)
			}
		}
		return c
	case []any:
		c := val.NewContainer(name)
		addItems(c, "item", v)
		return c
	default:
		return val.NewString(name, fmt.Sprint(v))
	}
}

func addItems(parent *val.Value, name string, x any) {
	if list, ok := x.([]any); ok {
		for _, item := range list {
			_ = parent.AddChild(ToValue(name, item))
		}
		return
	}
	_ = parent.AddChild(ToValue(name, x))
}
