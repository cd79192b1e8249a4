// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package rpc

import (
	"github.com/netascode/go-ncx/schema"
)

func datastore(name string, mandatory bool, stores ...string) *schema.Object {
	cases := make([]schema.Item, 0, len(stores))
	for _, s := range stores {
		cases = append(cases, schema.Case(s, schema.Leaf(s, schema.TypeEmpty)))
	}
	items := []schema.Item{schema.Choice("config-"+name, cases...)}
	if mandatory {
		items = append(items, schema.Mandatory())
	}
	return schema.Container(name, items...)
}

// NetconfOperations returns the NETCONF base operations as rpc templates
// in the "nc" module
//
// Datastore parameters are containers holding a choice of empty leaves, so
// "source=running" on a command line selects <source><running/></source>.
func NetconfOperations() []*schema.Object {
	mod := schema.Module(schema.NetconfPrefix, schema.NetconfNamespace)
	filter := func() *schema.Object {
		return schema.Anyxml("filter", schema.Description("Subtree filter or XPath expression"))
	}
	return []*schema.Object{
		schema.RPC("get", mod, schema.Description("Retrieve configuration and state data"),
			schema.Input(filter()),
			schema.Output(schema.Anyxml("data"))),
		schema.RPC("get-config", mod, schema.Description("Retrieve configuration data"),
			schema.Input(
				datastore("source", true, "candidate", "running", "startup"),
				filter()),
			schema.Output(schema.Anyxml("data"))),
		schema.RPC("edit-config", mod, schema.Description("Edit a configuration datastore"),
			schema.Input(
				datastore("target", true, "candidate", "running"),
				schema.Leaf("default-operation", schema.TypeEnum,
					schema.Enums("merge", "replace", "none")),
				schema.Leaf("test-option", schema.TypeEnum,
					schema.Enums("test-then-set", "set", "test-only")),
				schema.Leaf("error-option", schema.TypeEnum,
					schema.Enums("stop-on-error", "continue-on-error", "rollback-on-error")),
				schema.Anyxml("config", schema.Mandatory()))),
		schema.RPC("copy-config", mod, schema.Description("Copy a datastore"),
			schema.Input(
				datastore("target", true, "candidate", "running", "startup"),
				datastore("source", true, "candidate", "running", "startup"))),
		schema.RPC("delete-config", mod, schema.Description("Delete a datastore"),
			schema.Input(datastore("target", true, "startup"))),
		schema.RPC("lock", mod, schema.Description("Lock a datastore"),
			schema.Input(datastore("target", true, "candidate", "running", "startup"))),
		schema.RPC("unlock", mod, schema.Description("Unlock a datastore"),
			schema.Input(datastore("target", true, "candidate", "running", "startup"))),
		schema.RPC("partial-lock", mod, schema.Description("Lock the nodes selected by XPath expressions"),
			schema.Input(schema.LeafList("select", schema.TypeString, schema.MinElements(1))),
			schema.Output(
				schema.Leaf("lock-id", schema.TypeUint32),
				schema.LeafList("locked-node", schema.TypeString))),
		schema.RPC("partial-unlock", mod, schema.Description("Release a partial lock"),
			schema.Input(schema.Leaf("lock-id", schema.TypeUint32, schema.Mandatory()))),
		schema.RPC("validate", mod, schema.Description("Validate a datastore"),
			schema.Input(datastore("source", true, "candidate", "running", "startup"))),
		schema.RPC("commit", mod, schema.Description("Commit the candidate datastore")),
		schema.RPC("discard-changes", mod, schema.Description("Revert the candidate datastore")),
		schema.RPC("close-session", mod, schema.Description("End the session")),
		schema.RPC("kill-session", mod, schema.Description("Force another session to end"),
			schema.Input(schema.Leaf("session-id", schema.TypeUint32, schema.Mandatory()))),
	}
}
