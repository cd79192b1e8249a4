// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package val

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/netascode/go-ncx/schema"
)

// Format selects the instance-identifier dialect
type Format int

const (
	// FormatPath renders /pfx:list[k1,k2] with string keys double-quoted
	FormatPath Format = iota
	// FormatXPath1 renders /pfx:list[pfx:k1='v1' and pfx:k2='v2']
	FormatXPath1
	// FormatXPath2 renders /pfx:list[pfx:k1="v1" and pfx:k2="v2"]
	FormatXPath2
	// FormatCLI renders /pfx:list v1 v2, quoting only where needed
	FormatCLI
)

func (f Format) String() string {
	switch f {
	case FormatPath:
		return "path"
	case FormatXPath1:
		return "xpath1"
	case FormatXPath2:
		return "xpath2"
	case FormatCLI:
		return "cli"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// InstanceID renders the path addressing v from the top of its tree
//
// Nodes of an rpc input section render below a synthetic /nc:rpc/pfx:op
// prefix. With stopAtRoot the walk ends below the nearest datastore root
// container. Unkeyed siblings sharing a name are told apart by a 1-based
// [N] position. Keyed list entries must have every key present.
//
// Example:
//
//	id, err := val.InstanceID(mtu, val.FormatXPath1, false)
//	// /if:interfaces/if:interface[if:name='eth0']/if:mtu
func InstanceID(v *Value, format Format, stopAtRoot bool) (string, error) {
	var chain []*Value
	rpcOp := (*schema.Object)(nil)
	for cur := v; cur != nil; cur = cur.parent {
		if stopAtRoot && cur.obj.Root {
			break
		}
		if cur.obj.IsRPCInput() {
			rpcOp = cur.obj.RPC()
			break
		}
		chain = append(chain, cur)
	}

	var b strings.Builder
	if rpcOp != nil {
		b.WriteString("/" + schema.NetconfPrefix + ":rpc/")
		b.WriteString(rpcOp.QName())
	}
	for i := len(chain) - 1; i >= 0; i-- {
		n := chain[i]
		b.WriteByte('/')
		if p := n.Prefix(); p != "" {
			b.WriteString(p)
			b.WriteByte(':')
		}
		b.WriteString(n.Name())

		keys, err := keyValues(n)
		if err != nil {
			return "", err
		}
		if len(keys) > 0 {
			writeKeys(&b, keys, format)
			continue
		}
		if p := n.parent; p != nil && p.ChildInstanceCount(n.NS(), n.Name()) > 1 {
			b.WriteString("[" + strconv.Itoa(p.ChildInstanceID(n)) + "]")
		}
	}
	if b.Len() == 0 {
		return "/", nil
	}
	return b.String(), nil
}

func writeKeys(b *strings.Builder, keys []*Value, format Format) {
	switch format {
	case FormatPath:
		b.WriteByte('[')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			if k.Type().IsString() {
				b.WriteString(strconv.Quote(k.String()))
			} else {
				b.WriteString(k.String())
			}
		}
		b.WriteByte(']')

	case FormatXPath1, FormatXPath2:
		b.WriteByte('[')
		for i, k := range keys {
			if i > 0 {
				b.WriteString(" and ")
			}
			q := byte('\'')
			if format == FormatXPath2 {
				q = '"'
			}
			s := k.String()
			if strings.IndexByte(s, q) >= 0 {
				if q == '\'' {
					q = '"'
				} else {
					q = '\''
				}
			}
			if p := k.Prefix(); p != "" {
				b.WriteString(p)
				b.WriteByte(':')
			}
			b.WriteString(k.Name())
			b.WriteByte('=')
			b.WriteByte(q)
			b.WriteString(s)
			b.WriteByte(q)
		}
		b.WriteByte(']')

	case FormatCLI:
		for _, k := range keys {
			b.WriteByte(' ')
			s := k.String()
			if NeedsQuotes(s) {
				b.WriteString(strconv.Quote(s))
			} else {
				b.WriteString(s)
			}
		}
	}
}
