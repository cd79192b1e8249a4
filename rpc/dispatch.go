// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package rpc

import (
	"context"
	"fmt"
	"strings"

	ncx "github.com/netascode/go-ncx"
	"github.com/netascode/go-ncx/schema"
	"github.com/netascode/go-ncx/val"
)

// Dispatch maps a NETCONF operation onto gNMI and returns the reply tree
//
// get and get-config become a Get of the paths named by the filter
// parameter (whole device when absent), answered with a "data" tree.
// edit-config becomes a Set with one update per child of the config
// parameter, or a replace when default-operation is replace; the reply is
// an empty "ok" container. close-session drops the channel. Other
// operations have no gNMI counterpart.
func (c *GNMIClient) Dispatch(ctx context.Context, op *schema.Object, input *val.Value) (*val.Value, error) {
	switch op.Name {
	case "get", "get-config":
		paths, err := filterPaths(input)
		if err != nil {
			return nil, err
		}
		var mods []func(*Req)
		if op.Name == "get-config" {
			mods = append(mods, ConfigOnly())
		}
		res, err := c.Get(ctx, paths, mods...)
		if err != nil {
			return nil, replyError(op.Name, res.Errors, err)
		}
		b := newTreeBuilder(c.catalog, "data", c.logger)
		for _, n := range res.Notifications {
			for _, u := range n.GetUpdate() {
				if err := b.add(n.GetPrefix(), u); err != nil {
					return nil, err
				}
			}
		}
		return b.root, nil

	case "edit-config":
		ops, err := editOperations(input)
		if err != nil {
			return nil, err
		}
		res, err := c.Set(ctx, ops)
		if err != nil {
			return nil, replyError(op.Name, res.Errors, err)
		}
		return val.NewContainer("ok"), nil

	case "close-session":
		return val.NewContainer("ok"), c.Disconnect()
	}
	return nil, fmt.Errorf("%w: operation %s has no gNMI mapping", ncx.ErrInvalidValue, op.Name)
}

// replyError collects the server's findings into one error
func replyError(op string, details []ncx.ErrorModel, err error) error {
	if len(details) == 0 {
		return err
	}
	e := &ncx.Error{Operation: op, InternalMsg: err.Error()}
	for _, d := range details {
		e.Add(d)
	}
	return e
}

// filterPaths reads the gNMI paths out of a filter parameter: the children
// of a subtree filter, or the space-separated paths of a text filter
func filterPaths(input *val.Value) ([]string, error) {
	var f *val.Value
	if input != nil {
		f = input.FindChild(0, "filter")
	}
	if f == nil {
		return []string{"/"}, nil
	}
	if !f.HasChildStorage() {
		paths := strings.Fields(f.String())
		if len(paths) == 0 {
			return []string{"/"}, nil
		}
		return paths, nil
	}
	var paths []string
	for _, ch := range f.Children() {
		p, err := val.GNMIPath(ch.Clone())
		if err != nil {
			return nil, err
		}
		paths = append(paths, PathString(p))
	}
	if len(paths) == 0 {
		paths = []string{"/"}
	}
	return paths, nil
}

// editOperations turns the config parameter into Set operations
func editOperations(input *val.Value) ([]SetOperation, error) {
	var cfg *val.Value
	if input != nil {
		cfg = input.FindChild(0, "config")
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: edit-config needs a config parameter", ncx.ErrMissingInstance)
	}
	mk := Update
	if leafTextOf(input, "default-operation") == "replace" {
		mk = Replace
	}

	if !cfg.HasChildStorage() {
		text := strings.TrimSpace(cfg.String())
		if !strings.HasPrefix(text, "{") {
			return nil, fmt.Errorf("%w: gNMI config content must be a tree or a JSON document", ncx.ErrWrongType)
		}
		return []SetOperation{mk("/", text)}, nil
	}

	var ops []SetOperation
	for _, ch := range cfg.Children() {
		top := ch.Clone()
		p, err := val.GNMIPath(top)
		if err != nil {
			return nil, err
		}
		value, err := val.MarshalJSON(top)
		if err != nil {
			return nil, err
		}
		ops = append(ops, mk(PathString(p), value))
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("%w: config parameter is empty", ncx.ErrMissingInstance)
	}
	return ops, nil
}

func leafTextOf(v *val.Value, name string) string {
	if ch := v.FindChild(0, name); ch != nil {
		return ch.String()
	}
	return ""
}
