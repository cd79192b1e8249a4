// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package commands

import (
	"fmt"
	"io"

	ncx "github.com/netascode/go-ncx"
	"github.com/netascode/go-ncx/rpc"
	"github.com/netascode/go-ncx/schema"
	"github.com/netascode/go-ncx/shell"
)

// dispatcher is a shell.Dispatcher holding a device connection
type dispatcher interface {
	shell.Dispatcher
	io.Closer
}

// newCatalog returns a catalog holding the NETCONF base operations
func newCatalog() *schema.Catalog {
	return schema.NewCatalog(rpc.NetconfOperations()...)
}

// newDispatcher creates the dispatcher for the configured device
//
// Returns nil without a configured device; configuring both transports is
// an error.
func newDispatcher(cfg *ncx.Config, cat *schema.Catalog, logger ncx.Logger) (dispatcher, error) {
	common := []rpc.Option{rpc.WithCatalog(cat), rpc.WithLogger(logger)}

	switch {
	case cfg.GNMI != nil && cfg.NETCONF != nil:
		return nil, fmt.Errorf("%w: configure either a gNMI or a NETCONF target, not both", ncx.ErrInvalidValue)
	case cfg.NETCONF != nil:
		sess, err := rpc.NewNetconfSession(cfg.NETCONF.Target, append(rpc.FromConfig(cfg.NETCONF), common...)...)
		if err != nil {
			return nil, err
		}
		return sess, nil
	case cfg.GNMI != nil:
		client, err := rpc.NewGNMIClient(cfg.GNMI.Target, append(rpc.FromConfig(cfg.GNMI), common...)...)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return nil, nil
}
