// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package schema

import (
	"fmt"
	"sort"
	"strings"

	ncx "github.com/netascode/go-ncx"
)

// Catalog indexes the top-level objects of every loaded module
type Catalog struct {
	top []*Object
}

// NewCatalog creates a catalog holding objs
func NewCatalog(objs ...*Object) *Catalog {
	c := &Catalog{}
	c.Add(objs...)
	return c
}

// Add registers top-level objects
func (c *Catalog) Add(objs ...*Object) {
	c.top = append(c.top, objs...)
}

// Objects returns every top-level object in registration order
func (c *Catalog) Objects() []*Object {
	return c.top
}

// Find returns the top-level object named name; a "prefix:name" form
// restricts the match to one module
func (c *Catalog) Find(name string) *Object {
	prefix, local := splitQName(name)
	for _, o := range c.top {
		if o.Name == local && (prefix == "" || o.Prefix() == prefix) {
			return o
		}
	}
	return nil
}

// RPCNames returns the names of all rpc objects, sorted
func (c *Catalog) RPCNames() []string {
	var names []string
	for _, o := range c.top {
		if o.Kind == KindRPC {
			names = append(names, o.Name)
		}
	}
	sort.Strings(names)
	return names
}

// MatchRPC finds an rpc by exact name, then by unique prefix
//
// Returns an error when the prefix matches several rpcs or none.
func (c *Catalog) MatchRPC(name string) (*Object, error) {
	if o := c.Find(name); o != nil && o.Kind == KindRPC {
		return o, nil
	}
	prefix, local := splitQName(name)
	var matches []*Object
	for _, o := range c.top {
		if o.Kind == KindRPC && strings.HasPrefix(o.Name, local) &&
			(prefix == "" || o.Prefix() == prefix) {
			matches = append(matches, o)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: no rpc matches %q", ncx.ErrUnknownParm, name)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Name
		}
		return nil, fmt.Errorf("%w: rpc %q matches %s", ncx.ErrAmbiguousParm, name, strings.Join(names, ", "))
	}
}

func splitQName(name string) (string, string) {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}
