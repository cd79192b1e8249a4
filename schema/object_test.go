// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	ncx "github.com/netascode/go-ncx"
)

func testTree() *Object {
	return Container("system", Module("sys", 10),
		Leaf("hostname", TypeString, Mandatory()),
		Choice("transport", DefaultCase("ssh"),
			Case("ssh", Leaf("ssh-port", TypeUint16, Default("22"))),
			Case("telnet", Leaf("telnet", TypeEmpty)),
		),
		List("user", Keys("name"), MinElements(1),
			Leaf("name", TypeString),
			Leaf("uid", TypeUint32),
		),
		Container("state", Config(false),
			Leaf("uptime", TypeUint64),
		),
	)
}

func TestDataChildren(t *testing.T) {
	sys := testTree()

	var names []string
	for _, ch := range sys.DataChildren() {
		names = append(names, ch.Name)
	}
	want := []string{"hostname", "ssh-port", "telnet", "user", "state"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("DataChildren mismatch (-want +got):\n%s", diff)
	}
}

func TestFindData(t *testing.T) {
	sys := testTree()

	tests := []struct {
		name       string
		lookup     string
		wantKind   Kind
		wantChoice string
		wantNil    bool
	}{
		{name: "direct leaf", lookup: "hostname", wantKind: KindLeaf},
		{name: "through case", lookup: "telnet", wantKind: KindLeaf, wantChoice: "transport"},
		{name: "list", lookup: "user", wantKind: KindList},
		{name: "choice is not data", lookup: "transport", wantNil: true},
		{name: "missing", lookup: "nope", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sys.FindData(tt.lookup)
			if tt.wantNil {
				if got != nil {
					t.Errorf("Expected nil, got %s", got.Path())
				}
				return
			}
			if got == nil {
				t.Fatalf("Expected %s to be found", tt.lookup)
			}
			if got.Kind != tt.wantKind {
				t.Errorf("Expected kind %s, got %s", tt.wantKind, got.Kind)
			}
			choice := ""
			if ch := got.Choice(); ch != nil {
				choice = ch.Name
			}
			if choice != tt.wantChoice {
				t.Errorf("Expected choice %q, got %q", tt.wantChoice, choice)
			}
		})
	}
}

func TestInheritedProperties(t *testing.T) {
	sys := testTree()
	uptime := sys.Child("state").Child("uptime")

	if uptime.IsConfig() {
		t.Error("Expected uptime under config false to be state data")
	}
	if !sys.FindData("hostname").IsConfig() {
		t.Error("Expected hostname to be config data")
	}
	if got := uptime.Prefix(); got != "sys" {
		t.Errorf("Expected inherited prefix sys, got %q", got)
	}
	if got := uptime.NS(); got != 10 {
		t.Errorf("Expected inherited namespace 10, got %d", got)
	}
	if got := uptime.Path(); got != "/sys:system/sys:state/sys:uptime" {
		t.Errorf("Unexpected path %q", got)
	}
}

func TestBounds(t *testing.T) {
	sys := testTree()

	tests := []struct {
		node  string
		iqual Iqual
		min   uint32
		max   uint32
	}{
		{node: "hostname", iqual: IqualOne, min: 1, max: 1},
		{node: "ssh-port", iqual: IqualOpt, min: 0, max: 1},
		{node: "user", iqual: IqualOneMore, min: 1, max: 0},
	}

	for _, tt := range tests {
		t.Run(tt.node, func(t *testing.T) {
			o := sys.FindData(tt.node)
			if o.Iqual() != tt.iqual {
				t.Errorf("Expected %s, got %s", tt.iqual, o.Iqual())
			}
			min, max := o.Bounds()
			if min != tt.min || max != tt.max {
				t.Errorf("Expected bounds (%d,%d), got (%d,%d)", tt.min, tt.max, min, max)
			}
		})
	}

	user := sys.FindData("user")
	if !user.Child("name").IsKey() || user.Child("uid").IsKey() {
		t.Error("Expected only name to be a key")
	}
	if keys := user.KeyObjects(); len(keys) != 1 || keys[0].Name != "name" {
		t.Errorf("Unexpected key objects %v", keys)
	}
}

func TestCatalogMatchRPC(t *testing.T) {
	cat := NewCatalog(
		RPC("get-config", Module("nc", 1)),
		RPC("get", Module("nc", 1)),
		RPC("edit-config", Module("nc", 1)),
		Container("system", Module("sys", 10)),
	)

	tests := []struct {
		name    string
		lookup  string
		want    string
		wantErr error
	}{
		{name: "exact wins over prefix", lookup: "get", want: "get"},
		{name: "unique prefix", lookup: "edit", want: "edit-config"},
		{name: "qualified", lookup: "nc:get-config", want: "get-config"},
		{name: "ambiguous", lookup: "ge", wantErr: ncx.ErrAmbiguousParm},
		{name: "unknown", lookup: "reboot", wantErr: ncx.ErrUnknownParm},
		{name: "containers are not rpcs", lookup: "system", wantErr: ncx.ErrUnknownParm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cat.MatchRPC(tt.lookup)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got.Name != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got.Name)
			}
		})
	}

	if diff := cmp.Diff([]string{"edit-config", "get", "get-config"}, cat.RPCNames()); diff != "" {
		t.Errorf("RPCNames mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadYAML(t *testing.T) {
	doc := `
module: ex
namespace: 20
nodes:
  - kind: rpc
    name: run
    children:
      - kind: input
        default-parm: script
        children:
          - {kind: leaf, name: script, type: string, mandatory: true}
          - {kind: leaf, name: verbose, type: boolean, default: "false"}
          - kind: leaf
            name: mode
            type: enumeration
            enums: [fast, slow]
  - kind: list
    name: peer
    keys: [addr]
    children:
      - {kind: leaf, name: addr, type: string}
`
	objs, err := LoadYAML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(objs) != 2 {
		t.Fatalf("Expected 2 objects, got %d", len(objs))
	}

	in := objs[0].Input()
	if in == nil {
		t.Fatal("Expected rpc input")
	}
	if in.RPC() != objs[0] {
		t.Error("Expected input to point back at its rpc")
	}
	if got := in.DefaultParmObject(); got == nil || got.Name != "script" {
		t.Errorf("Expected default parm script, got %v", got)
	}
	verbose := in.Child("verbose")
	if !verbose.HasDefault || verbose.Default != "false" || verbose.Type != TypeBoolean {
		t.Errorf("Unexpected verbose leaf %+v", verbose)
	}
	if got := in.Child("mode").Enums; len(got) != 2 {
		t.Errorf("Expected 2 enums, got %v", got)
	}
	if objs[1].Child("addr").Prefix() != "ex" {
		t.Error("Expected module prefix to be inherited from the file")
	}
}

func TestLoadYAMLErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "unknown kind",
			doc:  "module: ex\nnamespace: 20\nnodes:\n  - {kind: grouping, name: g}\n",
			want: "oneof",
		},
		{
			name: "leaf without type",
			doc:  "module: ex\nnamespace: 20\nnodes:\n  - {kind: leaf, name: x}\n",
			want: "required_if",
		},
		{
			name: "list without keys",
			doc:  "module: ex\nnamespace: 20\nnodes:\n  - {kind: list, name: l}\n",
			want: "required_if",
		},
		{
			name: "key not a child",
			doc:  "module: ex\nnamespace: 20\nnodes:\n  - {kind: list, name: l, keys: [k]}\n",
			want: "not a child leaf",
		},
		{
			name: "unknown field",
			doc:  "module: ex\nnamespace: 20\nnodes:\n  - {kind: leaf, name: x, type: string, colour: red}\n",
			want: "colour",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadYAML(strings.NewReader(tt.doc))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
