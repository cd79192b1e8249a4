// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package val

import (
	"errors"
	"testing"

	"github.com/netascode/go-ncx/schema"
)

// testSchema returns a fresh copy of the system model used across the val
// tests
func testSchema() *schema.Object {
	return schema.Container("system", schema.Module("sys", 10),
		schema.Leaf("hostname", schema.TypeString, schema.Mandatory()),
		schema.Leaf("domain", schema.TypeString, schema.Default("example.com")),
		schema.Leaf("mtu", schema.TypeUint16, schema.Default("1500"), schema.When("hostname")),
		schema.Leaf("banner", schema.TypeString, schema.Default("hello"), schema.When("boom")),
		schema.Choice("transport", schema.DefaultCase("ssh"),
			schema.Case("ssh",
				schema.Leaf("ssh-port", schema.TypeUint16, schema.Default("22")),
				schema.Leaf("ssh-key", schema.TypeString, schema.Mandatory()),
			),
			schema.Case("telnet", schema.Leaf("telnet", schema.TypeEmpty)),
		),
		schema.List("user", schema.Keys("name"),
			schema.Leaf("uid", schema.TypeUint32),
			schema.Leaf("name", schema.TypeString),
			schema.Leaf("shell", schema.TypeString, schema.Default("/bin/sh")),
		),
		schema.List("route", schema.Keys("prefix", "table"),
			schema.Leaf("prefix", schema.TypeString),
			schema.Leaf("table", schema.TypeUint32),
		),
		schema.LeafList("server", schema.TypeString),
		schema.Container("state", schema.Config(false),
			schema.Leaf("uptime", schema.TypeUint64, schema.Default("0")),
		),
	)
}

// add creates the child name of parent, parsing text for simple types
func add(t *testing.T, parent *Value, name, text string) *Value {
	t.Helper()
	o := parent.Object().FindData(name)
	if o == nil {
		t.Fatalf("no schema node %s under %s", name, parent.Name())
	}
	var v *Value
	if o.Type.IsSimple() {
		var err error
		if v, err = NewLeaf(o, text); err != nil {
			t.Fatalf("NewLeaf(%s, %q): %v", name, text, err)
		}
	} else {
		v = New(o)
	}
	if err := parent.AddChild(v); err != nil {
		t.Fatalf("AddChild(%s): %v", name, err)
	}
	return v
}

func addUser(t *testing.T, sys *Value, name, uid string) *Value {
	t.Helper()
	u := add(t, sys, "user", "")
	add(t, u, "uid", uid)
	add(t, u, "name", name)
	if err := BuildIndexChain(u); err != nil {
		t.Fatalf("BuildIndexChain: %v", err)
	}
	return u
}

func childNames(v *Value) []string {
	var names []string
	for _, ch := range v.Children() {
		names = append(names, ch.Name())
	}
	return names
}

// whenFunc adapts a function to WhenEvaluator
type whenFunc func(expr string, context, root *Value) (bool, error)

func (f whenFunc) EvalWhen(expr string, context, root *Value) (bool, error) {
	return f(expr, context, root)
}

// childWhen treats the expression as a child name that must be present;
// "boom" fails to evaluate
var childWhen = whenFunc(func(expr string, context, _ *Value) (bool, error) {
	if expr == "boom" {
		return false, errors.New("boom")
	}
	return context.FindChild(0, expr) != nil, nil
})
