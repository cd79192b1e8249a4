// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package schema

import (
	"slices"
	"strings"
)

// NetconfPrefix and NetconfNamespace identify the NETCONF base module used
// for the synthetic rpc element of instance identifiers
const (
	NetconfPrefix    = "nc"
	NetconfNamespace = 1
)

// Object is a compiled schema node ("object template")
//
// Objects are built once, by the constructors in this package or by
// LoadYAML, and are read-only afterwards. Value nodes keep a back-reference
// to their Object and never modify it.
type Object struct {
	Kind Kind
	Name string

	// Module is the prefix of the defining module; inherited when empty
	Module string
	// Namespace is the module namespace id; inherited when zero
	Namespace uint32

	// Type is the base type of leaf and leaf-list nodes; complex kinds
	// carry TypeContainer, TypeList or TypeAnyxml
	Type           BaseType
	Enums          []string
	Bits           []string
	Members        []BaseType
	FractionDigits int
	MinLength      int

	Default    string
	HasDefault bool
	Mandatory  bool
	// NoConfig marks config false; it is inherited by descendants
	NoConfig bool
	Presence bool

	MinElements uint32
	// MaxElements of zero means unbounded
	MaxElements   uint32
	OrderedByUser bool

	Keys        []string
	When        string
	DefaultCase string
	DefaultParm string

	// Root marks an ncx:root container (a configuration datastore root)
	Root bool

	Description string

	Children []*Object
	Parent   *Object
}

// Prefix returns the module prefix, inherited from the nearest ancestor
// that declares one
func (o *Object) Prefix() string {
	for cur := o; cur != nil; cur = cur.Parent {
		if cur.Module != "" {
			return cur.Module
		}
	}
	return ""
}

// NS returns the namespace id, inherited like Prefix
func (o *Object) NS() uint32 {
	for cur := o; cur != nil; cur = cur.Parent {
		if cur.Namespace != 0 {
			return cur.Namespace
		}
	}
	return 0
}

// QName returns "prefix:name", or the bare name without a prefix
func (o *Object) QName() string {
	if p := o.Prefix(); p != "" {
		return p + ":" + o.Name
	}
	return o.Name
}

// IsConfig reports whether instances of o are configuration data
//
// Output parameters and anything under config false are not.
func (o *Object) IsConfig() bool {
	for cur := o; cur != nil; cur = cur.Parent {
		if cur.NoConfig || cur.Kind == KindOutput {
			return false
		}
	}
	return true
}

// IsDataNode reports whether instances of o appear in a value tree.
// Choice and case objects only shape the schema.
func (o *Object) IsDataNode() bool {
	switch o.Kind {
	case KindChoice, KindCase, KindRPC:
		return false
	}
	return true
}

// IsKey reports whether o is a key leaf of its parent list
func (o *Object) IsKey() bool {
	return o.Kind == KindLeaf && o.Parent != nil && o.Parent.Kind == KindList &&
		slices.Contains(o.Parent.Keys, o.Name)
}

// KeyObjects returns the key leaves of a list in key order
func (o *Object) KeyObjects() []*Object {
	if o.Kind != KindList {
		return nil
	}
	keys := make([]*Object, 0, len(o.Keys))
	for _, k := range o.Keys {
		if ch := o.Child(k); ch != nil {
			keys = append(keys, ch)
		}
	}
	return keys
}

// Child returns the direct schema child named name, or nil
func (o *Object) Child(name string) *Object {
	for _, ch := range o.Children {
		if ch.Name == name {
			return ch
		}
	}
	return nil
}

// FindData returns the data node named name reachable from o, looking
// through choice and case objects, or nil
func (o *Object) FindData(name string) *Object {
	for _, ch := range o.Children {
		switch ch.Kind {
		case KindChoice, KindCase:
			if found := ch.FindData(name); found != nil {
				return found
			}
		default:
			if ch.Name == name {
				return ch
			}
		}
	}
	return nil
}

// DataChildren returns the data nodes reachable from o in schema order,
// flattening choice and case objects
func (o *Object) DataChildren() []*Object {
	var out []*Object
	for _, ch := range o.Children {
		switch ch.Kind {
		case KindChoice, KindCase:
			out = append(out, ch.DataChildren()...)
		default:
			out = append(out, ch)
		}
	}
	return out
}

// MatchPrefix returns the data nodes whose name starts with prefix
func (o *Object) MatchPrefix(prefix string) []*Object {
	var out []*Object
	for _, ch := range o.DataChildren() {
		if strings.HasPrefix(ch.Name, prefix) {
			out = append(out, ch)
		}
	}
	return out
}

// Case returns the case object o is a member of, or nil
func (o *Object) Case() *Object {
	if o.Parent != nil && o.Parent.Kind == KindCase {
		return o.Parent
	}
	return nil
}

// Choice returns the choice object a case or case member belongs to
func (o *Object) Choice() *Object {
	cas := o
	if o.Kind != KindCase {
		cas = o.Case()
	}
	if cas == nil || cas.Parent == nil || cas.Parent.Kind != KindChoice {
		return nil
	}
	return cas.Parent
}

// DataParent returns the nearest ancestor that is a data node
func (o *Object) DataParent() *Object {
	for cur := o.Parent; cur != nil; cur = cur.Parent {
		if cur.IsDataNode() {
			return cur
		}
	}
	return nil
}

// DefaultCaseObject returns the default case of a choice, or nil
func (o *Object) DefaultCaseObject() *Object {
	if o.Kind != KindChoice || o.DefaultCase == "" {
		return nil
	}
	return o.Child(o.DefaultCase)
}

// DefaultParmObject returns the schema-declared default parameter, or nil
func (o *Object) DefaultParmObject() *Object {
	if o.DefaultParm == "" {
		return nil
	}
	return o.FindData(o.DefaultParm)
}

// SoleChoice returns the choice when it is o's only child, or nil
func (o *Object) SoleChoice() *Object {
	if len(o.Children) == 1 && o.Children[0].Kind == KindChoice {
		return o.Children[0]
	}
	return nil
}

// IsEmptyType reports whether o is a leaf of type empty
func (o *Object) IsEmptyType() bool {
	return o.Kind == KindLeaf && o.Type == TypeEmpty
}

// IsRPCInput reports whether o is the input section of an rpc
func (o *Object) IsRPCInput() bool {
	return o.Kind == KindInput
}

// RPC returns the rpc object owning an input or output section, or nil
func (o *Object) RPC() *Object {
	if (o.Kind == KindInput || o.Kind == KindOutput) && o.Parent != nil && o.Parent.Kind == KindRPC {
		return o.Parent
	}
	return nil
}

// Input returns the input section of an rpc, or nil
func (o *Object) Input() *Object {
	for _, ch := range o.Children {
		if ch.Kind == KindInput {
			return ch
		}
	}
	return nil
}

// Output returns the output section of an rpc, or nil
func (o *Object) Output() *Object {
	for _, ch := range o.Children {
		if ch.Kind == KindOutput {
			return ch
		}
	}
	return nil
}

// Iqual returns the categorical instance qualifier of o
func (o *Object) Iqual() Iqual {
	switch o.Kind {
	case KindList, KindLeafList:
		if o.MinElements > 0 {
			return IqualOneMore
		}
		return IqualZeroMore
	case KindLeaf, KindChoice, KindAnyxml, KindContainer:
		if o.Mandatory {
			return IqualOne
		}
	}
	return IqualOpt
}

// Bounds returns the minimum and maximum instance count of o; a max of zero
// means unbounded
func (o *Object) Bounds() (uint32, uint32) {
	switch o.Iqual() {
	case IqualOne:
		return 1, 1
	case IqualOpt:
		return 0, 1
	default:
		return o.MinElements, o.MaxElements
	}
}

// Path returns the schema path of o as "/prefix:name/..."
func (o *Object) Path() string {
	var parts []string
	for cur := o; cur != nil; cur = cur.Parent {
		parts = append(parts, cur.QName())
	}
	slices.Reverse(parts)
	return "/" + strings.Join(parts, "/")
}
