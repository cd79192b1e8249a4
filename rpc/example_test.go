// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package rpc_test

import (
	"fmt"

	"github.com/netascode/go-ncx/rpc"
	"github.com/netascode/go-ncx/schema"
	gnmipb "github.com/openconfig/gnmi/proto/gnmi"
)

func ExamplePathString() {
	p := &gnmipb.Path{Elem: []*gnmipb.PathElem{
		{Name: "if:interfaces"},
		{Name: "interface", Key: map[string]string{"name": "eth0"}},
		{Name: "mtu"},
	}}
	fmt.Println(rpc.PathString(p))
	// Output: /if:interfaces/interface[name=eth0]/mtu
}

func ExampleNetconfOperations() {
	cat := schema.NewCatalog(rpc.NetconfOperations()...)

	op, err := cat.MatchRPC("get-c")
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(op.QName())
	for _, o := range op.Input().DataChildren() {
		fmt.Println(" ", o.Name, o.Kind)
	}
	// Output:
	// nc:get-config
	//   source container
	//   filter anyxml
}

func ExampleUpdate() {
	ops := []rpc.SetOperation{
		rpc.Update("/if:interfaces/interface[name=eth0]", `{"mtu": 9000}`),
		rpc.Replace("/system/config/hostname", `"r1"`, rpc.SetEncoding(rpc.EncodingJSON)),
		rpc.Delete("/if:interfaces/interface[name=eth1]"),
	}
	for _, op := range ops {
		fmt.Println(op.OperationType, op.Path, op.Encoding)
	}
	// Output:
	// update /if:interfaces/interface[name=eth0] json_ietf
	// replace /system/config/hostname json
	// delete /if:interfaces/interface[name=eth1]
}
