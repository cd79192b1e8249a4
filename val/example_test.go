// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package val_test

import (
	"fmt"

	"github.com/netascode/go-ncx/schema"
	"github.com/netascode/go-ncx/val"
)

func ExampleInstanceID() {
	ifs := schema.Container("interfaces", schema.Module("if", 10),
		schema.List("interface", schema.Keys("name"),
			schema.Leaf("name", schema.TypeString),
			schema.Leaf("mtu", schema.TypeUint16, schema.Default("1500")),
		),
	)
	listObj := ifs.Child("interface")

	root := val.New(ifs)
	entry := val.New(listObj)
	name, _ := val.NewLeaf(listObj.Child("name"), "eth0")
	_ = entry.AddChild(name)
	_ = val.BuildIndexChain(entry)
	_ = root.AddChild(entry)
	_ = val.NewEngine().AddDefaults(root, nil, nil)

	mtu := entry.FindChild(0, "mtu")
	for _, f := range []val.Format{val.FormatXPath1, val.FormatPath, val.FormatCLI} {
		id, _ := val.InstanceID(mtu, f, false)
		fmt.Println(id, "=", mtu)
	}
	// Output:
	// /if:interfaces/if:interface[if:name='eth0']/if:mtu = 1500
	// /if:interfaces/if:interface["eth0"]/if:mtu = 1500
	// /if:interfaces/if:interface eth0/if:mtu = 1500
}
