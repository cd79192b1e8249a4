// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package schema

// Item is anything that can be passed to an Object constructor: a child
// Object or an Option
type Item interface {
	apply(*Object)
}

// Option sets one property of an Object under construction
type Option func(*Object)

func (f Option) apply(o *Object) { f(o) }

func (o *Object) apply(parent *Object) {
	o.Parent = parent
	parent.Children = append(parent.Children, o)
}

func build(kind Kind, name string, typ BaseType, items []Item) *Object {
	o := &Object{Kind: kind, Name: name, Type: typ}
	for _, it := range items {
		if it != nil {
			it.apply(o)
		}
	}
	return o
}

// Container creates a container object
//
// Example:
//
//	obj := schema.Container("interfaces",
//	    schema.Module("if", 10),
//	    schema.List("interface", schema.Keys("name"),
//	        schema.Leaf("name", schema.TypeString),
//	        schema.Leaf("mtu", schema.TypeUint16, schema.Default("1500")),
//	    ),
//	)
func Container(name string, items ...Item) *Object {
	return build(KindContainer, name, TypeContainer, items)
}

// List creates a list object; declare its keys with Keys
func List(name string, items ...Item) *Object {
	return build(KindList, name, TypeList, items)
}

// Leaf creates a leaf object of base type typ
func Leaf(name string, typ BaseType, items ...Item) *Object {
	return build(KindLeaf, name, typ, items)
}

// LeafList creates a leaf-list object of base type typ
func LeafList(name string, typ BaseType, items ...Item) *Object {
	return build(KindLeafList, name, typ, items)
}

// Choice creates a choice object; its children should be cases
func Choice(name string, items ...Item) *Object {
	return build(KindChoice, name, TypeNone, items)
}

// Case creates a case object
func Case(name string, items ...Item) *Object {
	return build(KindCase, name, TypeNone, items)
}

// Anyxml creates an anyxml object holding opaque content
func Anyxml(name string, items ...Item) *Object {
	return build(KindAnyxml, name, TypeAnyxml, items)
}

// RPC creates an rpc object; add Input and Output sections as children
func RPC(name string, items ...Item) *Object {
	return build(KindRPC, name, TypeContainer, items)
}

// Input creates the input section of an rpc
func Input(items ...Item) *Object {
	return build(KindInput, "input", TypeContainer, items)
}

// Output creates the output section of an rpc
func Output(items ...Item) *Object {
	return build(KindOutput, "output", TypeContainer, items)
}

// Module sets the module prefix and namespace id
func Module(prefix string, ns uint32) Option {
	return func(o *Object) {
		o.Module = prefix
		o.Namespace = ns
	}
}

// Default sets the default value of a leaf
func Default(value string) Option {
	return func(o *Object) {
		o.Default = value
		o.HasDefault = true
	}
}

// Mandatory marks the object as mandatory
func Mandatory() Option {
	return func(o *Object) {
		o.Mandatory = true
	}
}

// Config sets the config flag; Config(false) marks state data
func Config(enabled bool) Option {
	return func(o *Object) {
		o.NoConfig = !enabled
	}
}

// Presence marks a container as a presence container
func Presence() Option {
	return func(o *Object) {
		o.Presence = true
	}
}

// Keys declares the key leaves of a list, in key order
func Keys(names ...string) Option {
	return func(o *Object) {
		o.Keys = append(o.Keys, names...)
	}
}

// MinElements sets the minimum instance count of a list or leaf-list
func MinElements(n uint32) Option {
	return func(o *Object) {
		o.MinElements = n
	}
}

// MaxElements sets the maximum instance count of a list or leaf-list
func MaxElements(n uint32) Option {
	return func(o *Object) {
		o.MaxElements = n
	}
}

// OrderedByUser disables canonical ordering of list or leaf-list entries
func OrderedByUser() Option {
	return func(o *Object) {
		o.OrderedByUser = true
	}
}

// When attaches a when-stmt expression
func When(expr string) Option {
	return func(o *Object) {
		o.When = expr
	}
}

// DefaultCase names the default case of a choice
func DefaultCase(name string) Option {
	return func(o *Object) {
		o.DefaultCase = name
	}
}

// DefaultParm names the child that absorbs unmatched command-line tokens
func DefaultParm(name string) Option {
	return func(o *Object) {
		o.DefaultParm = name
	}
}

// Enums sets the enumeration names of an enumeration leaf
func Enums(names ...string) Option {
	return func(o *Object) {
		o.Enums = append(o.Enums, names...)
	}
}

// Bits sets the bit names of a bits leaf
func Bits(names ...string) Option {
	return func(o *Object) {
		o.Bits = append(o.Bits, names...)
	}
}

// Members sets the member types of a union leaf, tried in order
func Members(types ...BaseType) Option {
	return func(o *Object) {
		o.Members = append(o.Members, types...)
	}
}

// FractionDigits sets the fraction digits of a decimal64 leaf
func FractionDigits(n int) Option {
	return func(o *Object) {
		o.FractionDigits = n
	}
}

// MinLength sets the minimum length of a string leaf
func MinLength(n int) Option {
	return func(o *Object) {
		o.MinLength = n
	}
}

// Root marks a container as a datastore root
func Root() Option {
	return func(o *Object) {
		o.Root = true
	}
}

// Description sets the description text
func Description(text string) Option {
	return func(o *Object) {
		o.Description = text
	}
}
