// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package rpc

import (
	"slices"
	"sort"
	"strings"

	ncx "github.com/netascode/go-ncx"
	"github.com/netascode/go-ncx/schema"
	"github.com/netascode/go-ncx/val"
	gnmipb "github.com/openconfig/gnmi/proto/gnmi"
	"github.com/tidwall/gjson"
)

// PathString renders p in the gNMI string form /pfx:a/b[k=v]
//
// Keys are sorted by name; ']' and '\' in key values are escaped.
func PathString(p *gnmipb.Path) string {
	var b strings.Builder
	if o := p.GetOrigin(); o != "" {
		b.WriteString(o + ":")
	}
	for _, e := range p.GetElem() {
		b.WriteByte('/')
		b.WriteString(e.GetName())
		keys := make([]string, 0, len(e.GetKey()))
		for k := range e.GetKey() {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := strings.NewReplacer(`\`, `\\`, `]`, `\]`).Replace(e.GetKey()[k])
			b.WriteString("[" + k + "=" + v + "]")
		}
	}
	if b.Len() == 0 || strings.HasSuffix(b.String(), ":") {
		b.WriteByte('/')
	}
	return b.String()
}

func localName(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// treeBuilder assembles reply data under one container, binding nodes to
// catalog templates where the path resolves
type treeBuilder struct {
	catalog *schema.Catalog
	root    *val.Value
	logger  ncx.Logger
}

func newTreeBuilder(cat *schema.Catalog, name string, logger ncx.Logger) *treeBuilder {
	return &treeBuilder{catalog: cat, root: val.NewContainer(name), logger: logger}
}

// templates resolves the objects along elems; unresolved positions are nil
func (b *treeBuilder) templates(elems []*gnmipb.PathElem) []*schema.Object {
	objs := make([]*schema.Object, len(elems))
	if b.catalog == nil || len(elems) == 0 {
		return objs
	}
	obj := b.catalog.Find(elems[0].GetName())
	for i := range elems {
		if i > 0 && obj != nil {
			obj = obj.FindData(localName(elems[i].GetName()))
		}
		if obj == nil {
			break
		}
		objs[i] = obj
	}
	return objs
}

// entry finds or creates the child of parent addressed by elem
func (b *treeBuilder) entry(parent *val.Value, elem *gnmipb.PathElem, obj *schema.Object) (*val.Value, error) {
	name := localName(elem.GetName())
	for _, ch := range parent.FindAll(0, name) {
		if keysMatch(ch, elem.GetKey()) {
			return ch, nil
		}
	}

	var n *val.Value
	if obj != nil {
		n = val.New(obj)
	} else {
		n = val.NewContainer(name)
	}
	keys := make([]string, 0, len(elem.GetKey()))
	for k := range elem.GetKey() {
		keys = append(keys, k)
	}
	if obj != nil && len(obj.Keys) > 0 {
		slices.SortFunc(keys, func(a, b string) int {
			return slices.Index(obj.Keys, a) - slices.Index(obj.Keys, b)
		})
	} else {
		sort.Strings(keys)
	}
	for _, k := range keys {
		kv, err := b.leaf(obj, k, elem.GetKey()[k])
		if err != nil {
			return nil, err
		}
		if err := n.AddChild(kv); err != nil {
			return nil, err
		}
	}
	if obj != nil && obj.Kind == schema.KindList {
		if err := val.BuildIndexChain(n); err != nil {
			return nil, err
		}
	}
	if err := parent.AddChild(n); err != nil {
		return nil, err
	}
	return n, nil
}

func (b *treeBuilder) leaf(parent *schema.Object, name, text string) (*val.Value, error) {
	if parent != nil {
		if o := parent.FindData(name); o != nil && o.Type.IsSimple() {
			return val.NewLeaf(o, text)
		}
	}
	return val.NewString(name, text), nil
}

func keysMatch(v *val.Value, keys map[string]string) bool {
	for k, want := range keys {
		ch := v.FindChild(0, k)
		if ch == nil || ch.String() != want {
			return false
		}
	}
	return true
}

// add places one notification update into the tree
func (b *treeBuilder) add(prefix *gnmipb.Path, u *gnmipb.Update) error {
	elems := append(slices.Clone(prefix.GetElem()), u.GetPath().GetElem()...)
	if len(elems) == 0 {
		return b.addRoot(u.GetVal())
	}
	objs := b.templates(elems)

	parent := b.root
	for i := 0; i < len(elems)-1; i++ {
		var err error
		if parent, err = b.entry(parent, elems[i], objs[i]); err != nil {
			return err
		}
	}

	last := elems[len(elems)-1]
	obj := objs[len(objs)-1]
	if obj != nil {
		v, err := val.FromTypedValue(obj, u.GetVal())
		if err == nil {
			return b.attach(parent, v, last.GetKey())
		}
		b.logger.Debug("reply value does not fit its template, keeping it generic",
			"path", PathString(&gnmipb.Path{Elem: elems}),
			"error", err.Error())
	}
	for _, v := range genericValue(localName(last.GetName()), u.GetVal()) {
		if err := b.attach(parent, v, last.GetKey()); err != nil {
			return err
		}
	}
	return nil
}

// attach adds v below parent, filling list keys the value itself lacks
func (b *treeBuilder) attach(parent, v *val.Value, keys map[string]string) error {
	for k, text := range keys {
		if v.FindChild(0, k) != nil || !v.HasChildStorage() {
			continue
		}
		kv, err := b.leaf(v.Object(), k, text)
		if err != nil {
			return err
		}
		if err := v.InsertChild(0, kv); err != nil {
			return err
		}
	}
	if v.Object().Kind == schema.KindList {
		if err := val.BuildIndexChain(v); err != nil {
			return err
		}
	}
	return parent.AddChild(v)
}

// addRoot spreads a whole-document update over the top-level members
func (b *treeBuilder) addRoot(tv *gnmipb.TypedValue) error {
	raw := jsonBytes(tv)
	if raw == nil {
		return b.root.AddChild(val.NewString("value", typedText(tv)))
	}
	var err error
	gjson.ParseBytes(raw).ForEach(func(key, value gjson.Result) bool {
		var obj *schema.Object
		if b.catalog != nil {
			obj = b.catalog.Find(key.String())
		}
		if obj != nil {
			var v *val.Value
			if v, err = val.DecodeJSON(obj, []byte(value.Raw)); err == nil {
				err = b.root.AddChild(v)
				return err == nil
			}
		}
		for _, v := range fromJSON(localName(key.String()), value) {
			if err = b.root.AddChild(v); err != nil {
				return false
			}
		}
		return true
	})
	return err
}

func jsonBytes(tv *gnmipb.TypedValue) []byte {
	switch x := tv.GetValue().(type) {
	case *gnmipb.TypedValue_JsonIetfVal:
		return x.JsonIetfVal
	case *gnmipb.TypedValue_JsonVal:
		return x.JsonVal
	}
	return nil
}

func typedText(tv *gnmipb.TypedValue) string {
	// a scalar typed value renders through a throwaway string leaf
	v, err := val.FromTypedValue(schema.Leaf("value", schema.TypeString), tv)
	if err != nil {
		return ""
	}
	return v.String()
}

func genericValue(name string, tv *gnmipb.TypedValue) []*val.Value {
	if raw := jsonBytes(tv); raw != nil {
		return fromJSON(name, gjson.ParseBytes(raw))
	}
	return []*val.Value{val.NewString(name, typedText(tv))}
}

// fromJSON builds generic nodes from JSON; an array yields one sibling per
// element
func fromJSON(name string, r gjson.Result) []*val.Value {
	switch {
	case r.IsArray():
		var out []*val.Value
		for _, item := range r.Array() {
			out = append(out, fromJSON(name, item)...)
		}
		return out
	case r.IsObject():
		c := val.NewContainer(name)
		r.ForEach(func(key, value gjson.Result) bool {
			for _, ch := range fromJSON(localName(key.String()), value) {
				_ = c.AddChild(ch) //nolint:errcheck // generic containers always hold children
			}
			return true
		})
		return []*val.Value{c}
	default:
		return []*val.Value{val.NewString(name, r.String())}
	}
}
