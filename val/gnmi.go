// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package val

import (
	"fmt"
	"strconv"

	ncx "github.com/netascode/go-ncx"
	"github.com/netascode/go-ncx/schema"
	gnmipb "github.com/openconfig/gnmi/proto/gnmi"
)

// GNMIPath converts the instance identifier of v into a gNMI path
//
// The first element carries the module prefix; list entries carry their
// keys. Datastore root containers are not part of the path.
func GNMIPath(v *Value) (*gnmipb.Path, error) {
	var chain []*Value
	for cur := v; cur != nil; cur = cur.parent {
		if cur.obj.Root || cur.obj.IsRPCInput() {
			break
		}
		chain = append(chain, cur)
	}
	path := &gnmipb.Path{}
	for i := len(chain) - 1; i >= 0; i-- {
		n := chain[i]
		name := n.Name()
		if i == len(chain)-1 || n.NS() != chain[i+1].NS() {
			name = n.obj.QName()
			if n.name != "" && n.Prefix() != "" {
				name = n.Prefix() + ":" + n.name
			}
		}
		elem := &gnmipb.PathElem{Name: name}
		keys, err := keyValues(n)
		if err != nil {
			return nil, err
		}
		if len(keys) > 0 {
			elem.Key = make(map[string]string, len(keys))
			for _, k := range keys {
				elem.Key[k.Name()] = k.String()
			}
		}
		path.Elem = append(path.Elem, elem)
	}
	return path, nil
}

// TypedValue converts v into a gNMI typed value
//
// Containers, list entries and empty leaves are sent as JSON_IETF.
func TypedValue(v *Value) (*gnmipb.TypedValue, error) {
	if v.HasChildStorage() {
		raw, err := MarshalJSON(v)
		if err != nil {
			return nil, err
		}
		return &gnmipb.TypedValue{Value: &gnmipb.TypedValue_JsonIetfVal{JsonIetfVal: []byte(raw)}}, nil
	}
	switch p := v.payload.(type) {
	case Bool:
		return &gnmipb.TypedValue{Value: &gnmipb.TypedValue_BoolVal{BoolVal: bool(p)}}, nil
	case Int:
		return &gnmipb.TypedValue{Value: &gnmipb.TypedValue_IntVal{IntVal: int64(p)}}, nil
	case Uint:
		return &gnmipb.TypedValue{Value: &gnmipb.TypedValue_UintVal{UintVal: uint64(p)}}, nil
	case Float:
		return &gnmipb.TypedValue{Value: &gnmipb.TypedValue_DoubleVal{DoubleVal: float64(p)}}, nil
	case Binary:
		return &gnmipb.TypedValue{Value: &gnmipb.TypedValue_BytesVal{BytesVal: []byte(p)}}, nil
	case Empty:
		return &gnmipb.TypedValue{Value: &gnmipb.TypedValue_JsonIetfVal{JsonIetfVal: []byte("[null]")}}, nil
	case nil:
		return nil, fmt.Errorf("%w: %s has no value", ncx.ErrEmptyValue, v.Name())
	default:
		return &gnmipb.TypedValue{Value: &gnmipb.TypedValue_StringVal{StringVal: Text(p)}}, nil
	}
}

// FromTypedValue builds a node bound to obj from a gNMI typed value
func FromTypedValue(obj *schema.Object, tv *gnmipb.TypedValue) (*Value, error) {
	var text string
	switch x := tv.GetValue().(type) {
	case *gnmipb.TypedValue_JsonIetfVal:
		return DecodeJSON(obj, x.JsonIetfVal)
	case *gnmipb.TypedValue_JsonVal:
		return DecodeJSON(obj, x.JsonVal)
	case *gnmipb.TypedValue_StringVal:
		text = x.StringVal
	case *gnmipb.TypedValue_BoolVal:
		text = strconv.FormatBool(x.BoolVal)
	case *gnmipb.TypedValue_IntVal:
		text = strconv.FormatInt(x.IntVal, 10)
	case *gnmipb.TypedValue_UintVal:
		text = strconv.FormatUint(x.UintVal, 10)
	case *gnmipb.TypedValue_DoubleVal:
		text = strconv.FormatFloat(x.DoubleVal, 'g', -1, 64)
	case *gnmipb.TypedValue_BytesVal:
		v := New(obj)
		v.payload = Binary(x.BytesVal)
		return v, nil
	case *gnmipb.TypedValue_AsciiVal:
		text = x.AsciiVal
	default:
		return nil, fmt.Errorf("%w: unsupported typed value %T for %s", ncx.ErrWrongType, x, obj.Name)
	}
	return NewLeaf(obj, text)
}
