// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package val

import (
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	ncx "github.com/netascode/go-ncx"
	"github.com/netascode/go-ncx/schema"
)

func TestAddDefaults(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, sys *Value)
		want    []string
		notWant []string
	}{
		{
			name:    "empty tree",
			setup:   func(t *testing.T, sys *Value) {},
			want:    []string{"domain", "ssh-port"},
			notWant: []string{"mtu", "banner", "uptime", "telnet", "user"},
		},
		{
			name: "when condition satisfied",
			setup: func(t *testing.T, sys *Value) {
				add(t, sys, "hostname", "r1")
			},
			want: []string{"hostname", "domain", "mtu", "ssh-port"},
		},
		{
			name: "selected case wins over default case",
			setup: func(t *testing.T, sys *Value) {
				add(t, sys, "telnet", "")
			},
			want:    []string{"telnet", "domain"},
			notWant: []string{"ssh-port"},
		},
		{
			name: "explicit value kept",
			setup: func(t *testing.T, sys *Value) {
				add(t, sys, "domain", "corp")
			},
			want: []string{"domain", "ssh-port"},
		},
		{
			name: "existing state container not defaulted",
			setup: func(t *testing.T, sys *Value) {
				add(t, sys, "state", "")
			},
			want: []string{"state", "domain", "ssh-port"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := New(testSchema())
			tt.setup(t, sys)
			e := NewEngine(WithWhen(childWhen))
			if err := e.AddDefaults(sys, nil, nil); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			got := childNames(sys)
			for _, w := range tt.want {
				if !slices.Contains(got, w) {
					t.Errorf("Expected %s in %v", w, got)
				}
			}
			for _, nw := range tt.notWant {
				if slices.Contains(got, nw) {
					t.Errorf("Expected no %s in %v", nw, got)
				}
			}
			if st := sys.FindChild(0, "state"); st != nil && st.NumChildren() != 0 {
				t.Error("Expected no defaults under config false")
			}
		})
	}
}

func TestAddDefaultsListEntries(t *testing.T) {
	sys := New(testSchema())
	addUser(t, sys, "alice", "1")
	addUser(t, sys, "bob", "2")

	if err := NewEngine().AddDefaults(sys, nil, nil); err != nil {
		t.Fatal(err)
	}
	for _, u := range sys.FindAll(0, "user") {
		sh := u.FindChild(0, "shell")
		if sh == nil || sh.String() != "/bin/sh" || !sh.IsDefault() {
			t.Errorf("Expected default shell in %v", childNames(u))
		}
	}
	if n := sys.ChildInstanceCount(0, "route"); n != 0 {
		t.Errorf("Expected no list entries to be created, got %d", n)
	}
}

func TestAddDefaultsIdempotent(t *testing.T) {
	sys := New(testSchema())
	add(t, sys, "hostname", "r1")
	addUser(t, sys, "alice", "1")
	e := NewEngine(WithWhen(childWhen))

	if err := e.AddDefaults(sys, nil, nil); err != nil {
		t.Fatal(err)
	}
	once, err := EncodeJSON(sys)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.AddDefaults(sys, nil, nil); err != nil {
		t.Fatal(err)
	}
	twice, err := EncodeJSON(sys)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("Second AddDefaults changed the tree (-once +twice):\n%s", diff)
	}
}

func TestAddDefaultsMandatoryChoice(t *testing.T) {
	obj := schema.Container("c", schema.Module("m", 3),
		schema.Choice("ch", schema.Mandatory(), schema.DefaultCase("a"),
			schema.Case("a", schema.Leaf("x", schema.TypeString, schema.Default("d"))),
		),
	)
	v := New(obj)
	if err := NewEngine().AddDefaults(v, nil, nil); err != nil {
		t.Fatal(err)
	}
	if v.NumChildren() != 0 {
		t.Errorf("Expected mandatory choice to be skipped, got %v", childNames(v))
	}
}

func TestInstanceCheck(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(t *testing.T, sys *Value)
		wantErr   error
		wantCount int
	}{
		{
			name: "complete",
			setup: func(t *testing.T, sys *Value) {
				add(t, sys, "hostname", "r1")
				add(t, sys, "ssh-key", "k")
			},
		},
		{
			name:      "missing mandatory",
			setup:     func(t *testing.T, sys *Value) {},
			wantErr:   ncx.ErrMissingInstance,
			wantCount: 1,
		},
		{
			name: "extra instance",
			setup: func(t *testing.T, sys *Value) {
				add(t, sys, "hostname", "r1")
				add(t, sys, "hostname", "r2")
			},
			wantErr:   ncx.ErrExtraInstance,
			wantCount: 1,
		},
		{
			name: "missing mandatory in selected case",
			setup: func(t *testing.T, sys *Value) {
				add(t, sys, "hostname", "r1")
				add(t, sys, "ssh-port", "22")
			},
			wantErr:   ncx.ErrMissingInstance,
			wantCount: 1,
		},
		{
			name: "every violation collected, last reported",
			setup: func(t *testing.T, sys *Value) {
				add(t, sys, "domain", "a")
				add(t, sys, "domain", "b")
				add(t, sys, "telnet", "")
				add(t, sys, "ssh-key", "k")
			},
			wantErr:   ncx.ErrExtraChoice,
			wantCount: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := New(testSchema())
			tt.setup(t, sys)
			err := NewEngine().InstanceCheck(sys, sys.Object())
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}
			var nerr *ncx.Error
			if !errors.As(err, &nerr) {
				t.Fatalf("Expected *ncx.Error, got %v", err)
			}
			if nerr.Status != tt.wantErr {
				t.Errorf("Expected status %v, got %v", tt.wantErr, nerr.Status)
			}
			if len(nerr.Errors) != tt.wantCount {
				t.Errorf("Expected %d findings, got %d: %s", tt.wantCount, len(nerr.Errors), nerr.DetailedError())
			}
		})
	}
}

func TestChoiceCheck(t *testing.T) {
	sys := New(testSchema())
	add(t, sys, "ssh-port", "22")
	add(t, sys, "telnet", "")
	choice := sys.Object().Child("transport")

	err := NewEngine().ChoiceCheck(sys, choice)
	if !errors.Is(err, ncx.ErrExtraChoice) {
		t.Errorf("Expected ErrExtraChoice, got %v", err)
	}

	mandatory := schema.Container("c", schema.Module("m", 3),
		schema.Choice("ch", schema.Mandatory(),
			schema.Case("a", schema.Leaf("x", schema.TypeString)),
		),
	)
	err = NewEngine().ChoiceCheck(New(mandatory), mandatory.Child("ch"))
	if !errors.Is(err, ncx.ErrMissingChoice) {
		t.Errorf("Expected ErrMissingChoice, got %v", err)
	}
}

func TestChoiceIsSet(t *testing.T) {
	choice := testSchema().Child("transport")

	tests := []struct {
		name  string
		leafs map[string]string
		want  bool
	}{
		{name: "nothing selected", want: false},
		{name: "mandatory member missing", leafs: map[string]string{"ssh-port": "22"}, want: false},
		{name: "complete case", leafs: map[string]string{"ssh-port": "22", "ssh-key": "k"}, want: true},
		{name: "empty case", leafs: map[string]string{"telnet": ""}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := New(choice.Parent)
			for name, text := range tt.leafs {
				add(t, sys, name, text)
			}
			if got := ChoiceIsSet(sys, choice); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}

	sys := New(choice.Parent)
	add(t, sys, "telnet", "")
	if cas := SelectedCase(sys, choice); cas == nil || cas.Name != "telnet" {
		t.Errorf("Expected telnet case, got %v", cas)
	}
}

func TestCheckWhen(t *testing.T) {
	sys := New(testSchema())
	mtu := add(t, sys, "mtu", "1500")
	banner := add(t, sys, "banner", "x")
	e := NewEngine(WithWhen(childWhen))

	if ok, err := e.CheckWhen(mtu); err != nil || ok {
		t.Errorf("Expected false without hostname, got %v (%v)", ok, err)
	}
	add(t, sys, "hostname", "r1")
	if ok, err := e.CheckWhen(mtu); err != nil || !ok {
		t.Errorf("Expected true with hostname, got %v (%v)", ok, err)
	}
	if _, err := e.CheckWhen(banner); !errors.Is(err, ncx.ErrEvalFailed) {
		t.Errorf("Expected ErrEvalFailed, got %v", err)
	}
}

func TestCanonicalize(t *testing.T) {
	sys := New(testSchema())
	add(t, sys, "server", "b")
	u := add(t, sys, "user", "")
	add(t, u, "shell", "/bin/sh")
	add(t, u, "uid", "1")
	add(t, u, "name", "alice")
	add(t, sys, "domain", "d")
	add(t, sys, "server", "a")
	add(t, sys, "hostname", "r1")
	stray := NewString("stray", "x")
	sys.AddChild(stray)

	NewEngine().Canonicalize(sys)

	if diff := cmp.Diff([]string{"hostname", "domain", "user", "server", "server", "stray"}, childNames(sys)); diff != "" {
		t.Errorf("Top order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"name", "uid", "shell"}, childNames(u)); diff != "" {
		t.Errorf("List entry order mismatch (-want +got):\n%s", diff)
	}
	var servers []string
	for _, s := range sys.FindAll(0, "server") {
		servers = append(servers, s.String())
	}
	if diff := cmp.Diff([]string{"b", "a"}, servers); diff != "" {
		t.Errorf("Expected leaf-list entries to keep their order (-want +got):\n%s", diff)
	}
}

func TestCanonicalizeRoot(t *testing.T) {
	cfg := schema.Container("config", schema.Root())
	root := New(cfg)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		root.AddChild(NewContainer(name))
	}
	NewEngine().Canonicalize(root)
	if diff := cmp.Diff([]string{"alpha", "mid", "zeta"}, childNames(root)); diff != "" {
		t.Errorf("Root order mismatch (-want +got):\n%s", diff)
	}
}

func TestPurgeErrors(t *testing.T) {
	sys := New(testSchema())
	host := add(t, sys, "hostname", "r1")
	bad := add(t, sys, "domain", "d")
	u := addUser(t, sys, "alice", "1")
	u.FindChild(0, "uid").SetStatus(ncx.ErrInvalidValue)
	bad.SetStatus(ncx.ErrWrongType)

	PurgeErrors(sys)

	if diff := cmp.Diff([]string{"hostname", "user"}, childNames(sys)); diff != "" {
		t.Errorf("Mismatch (-want +got):\n%s", diff)
	}
	if bad.Parent() != nil {
		t.Error("Expected purged node to be detached")
	}
	if u.FindChild(0, "uid") != nil || !u.HasIndex() {
		t.Error("Expected uid purged and key chain kept")
	}
	if host.Parent() != sys {
		t.Error("Expected valid nodes to stay")
	}

	u.FindChild(0, "name").SetStatus(ncx.ErrInvalidValue)
	PurgeErrors(sys)
	if u.HasIndex() {
		t.Error("Expected purged key to unlink the chain")
	}
}
