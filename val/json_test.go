// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package val

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	ncx "github.com/netascode/go-ncx"
	"github.com/tidwall/gjson"
)

func TestBody(t *testing.T) {
	body := Body{}.
		Set("name", "eth0").
		Set("mtu", 9000).
		Delete("mtu")
	doc, err := body.String()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := gjson.Get(doc, "name").String(); got != "eth0" {
		t.Errorf("Expected eth0, got %s", got)
	}
	if gjson.Get(doc, "mtu").Exists() {
		t.Error("Expected mtu to be deleted")
	}

	bad := Body{}.Set("", 1).Set("y", 1)
	if bad.Err() == nil || bad.Res() != "" {
		t.Error("Expected sticky error")
	}
}

func TestEncodeJSON(t *testing.T) {
	sys := New(testSchema())
	add(t, sys, "hostname", "r1")
	add(t, sys, "telnet", "")
	addUser(t, sys, "alice", "1")
	addUser(t, sys, "bob", "2")
	add(t, sys, "server", "a")
	add(t, sys, "server", "b")
	st := add(t, sys, "state", "")
	add(t, st, "uptime", "99")

	doc, err := EncodeJSON(sys)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	checks := map[string]string{
		`sys:system.hostname`:     `"r1"`,
		`sys:system.telnet`:       `[null]`,
		`sys:system.user.#`:       `2`,
		`sys:system.user.1.name`:  `"bob"`,
		`sys:system.user.0.uid`:   `1`,
		`sys:system.server`:       `["a","b"]`,
		`sys:system.state.uptime`: `"99"`,
	}
	for path, want := range checks {
		if got := gjson.Get(doc, path).Raw; got != want {
			t.Errorf("%s: Expected %s, got %s (%s)", path, want, got, doc)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	obj := testSchema()
	doc := `{"sys:system":{
		"hostname":"r1",
		"telnet":[null],
		"user":[{"name":"alice","uid":1},{"name":"bob","uid":2}],
		"server":["a","b"],
		"state":{"uptime":"99"}
	}}`

	sys, err := DecodeJSON(obj, []byte(doc))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var ids []string
	for _, u := range sys.FindAll(0, "user") {
		id, err := InstanceID(u, FormatXPath1, false)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		ids = append(ids, id)
	}
	want := []string{
		"/sys:system/sys:user[sys:name='alice']",
		"/sys:system/sys:user[sys:name='bob']",
	}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("Instance ids mismatch (-want +got):\n%s", diff)
	}
	if telnet := sys.FindChild(0, "telnet"); telnet == nil || telnet.Case() == nil || telnet.Case().Name != "telnet" {
		t.Error("Expected telnet to select its case")
	}
	if got := sys.FindChild(0, "state").FindChild(0, "uptime").Payload(); got != Uint(99) {
		t.Errorf("Expected uptime 99, got %#v", got)
	}

	// re-encoding gives the same document
	again, err := EncodeJSON(sys)
	if err != nil {
		t.Fatal(err)
	}
	if got := gjson.Get(again, `sys:system.user.1.name`).String(); got != "bob" {
		t.Errorf("Expected bob, got %s", got)
	}
}

func TestDecodeJSONErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{name: "invalid json", doc: `{"hostname":`, wantErr: ncx.ErrInvalidValue},
		{name: "unknown member", doc: `{"colour":"red"}`, wantErr: ncx.ErrUnknownParm},
		{name: "bad value", doc: `{"mtu":"big"}`, wantErr: ncx.ErrInvalidValue},
		{name: "list entry without key", doc: `{"user":[{"uid":1}]}`, wantErr: ncx.ErrMissingIndex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeJSON(testSchema(), []byte(tt.doc))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
