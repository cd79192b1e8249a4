// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package rpc

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Juniper/go-netconf/netconf"
	"github.com/netascode/go-ncx/schema"
	"github.com/netascode/go-ncx/val"
	gnmipb "github.com/openconfig/gnmi/proto/gnmi"
	"golang.org/x/crypto/ssh"
)

// TestLogger records log lines for assertions
type TestLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *TestLogger) record(level, msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("%s %s %v", level, msg, keysAndValues))
}

func (l *TestLogger) Debug(msg string, keysAndValues ...any) { l.record("DEBUG", msg, keysAndValues...) }
func (l *TestLogger) Info(msg string, keysAndValues ...any)  { l.record("INFO", msg, keysAndValues...) }
func (l *TestLogger) Warn(msg string, keysAndValues ...any)  { l.record("WARN", msg, keysAndValues...) }
func (l *TestLogger) Error(msg string, keysAndValues ...any) { l.record("ERROR", msg, keysAndValues...) }

func (l *TestLogger) contains(s string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if strings.Contains(m, s) {
			return true
		}
	}
	return false
}

// fakeTransport answers Get and Set from canned responses; queued errors
// are returned first, one per call
type fakeTransport struct {
	mu      sync.Mutex
	errs    []error
	getResp *gnmipb.GetResponse
	setResp *gnmipb.SetResponse
	gets    []*gnmipb.GetRequest
	sets    []*gnmipb.SetRequest
}

func (f *fakeTransport) next() error {
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *fakeTransport) Get(_ context.Context, req *gnmipb.GetRequest) (*gnmipb.GetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets = append(f.gets, req)
	if err := f.next(); err != nil {
		return nil, err
	}
	if f.getResp == nil {
		return &gnmipb.GetResponse{}, nil
	}
	return f.getResp, nil
}

func (f *fakeTransport) Set(_ context.Context, req *gnmipb.SetRequest) (*gnmipb.SetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets = append(f.sets, req)
	if err := f.next(); err != nil {
		return nil, err
	}
	if f.setResp == nil {
		return &gnmipb.SetResponse{}, nil
	}
	return f.setResp, nil
}

// newTestClient returns a client wired to tr instead of a real channel
func newTestClient(t *testing.T, tr transport, opts ...Option) *GNMIClient {
	t.Helper()
	base := []Option{
		Username("admin"),
		Password("secret"),
		TLS(false),
		BackoffMinDelay(time.Millisecond),
		BackoffMaxDelay(5 * time.Millisecond),
	}
	c, err := NewGNMIClient("10.0.0.1", append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewGNMIClient() error = %v", err)
	}
	c.tr = tr
	c.connected = true
	return c
}

// fakeConn answers every Exec with the next queued reply
type fakeConn struct {
	mu      sync.Mutex
	replies []*netconf.RPCReply
	err     error
	sent    []string
	closed  bool
	block   chan struct{}
}

func (f *fakeConn) Exec(methods ...netconf.RPCMethod) (*netconf.RPCReply, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range methods {
		f.sent = append(f.sent, m.MarshalMethod())
	}
	if f.err != nil {
		return nil, f.err
	}
	if len(f.replies) == 0 {
		return &netconf.RPCReply{Ok: true}, nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// newTestSession returns a session whose dialer hands out conn
func newTestSession(t *testing.T, conn *fakeConn, opts ...Option) *NetconfSession {
	t.Helper()
	base := []Option{
		Username("admin"),
		Password("secret"),
		VerifyCertificate(false),
		BackoffMinDelay(time.Millisecond),
		BackoffMaxDelay(5 * time.Millisecond),
	}
	s, err := NewNetconfSession("10.0.0.2", append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewNetconfSession() error = %v", err)
	}
	s.dial = func(string, *ssh.ClientConfig) (netconfConn, error) {
		return conn, nil
	}
	return s
}

// interfacesSchema is the data model used across the rpc tests
func interfacesSchema() *schema.Object {
	return schema.Container("interfaces", schema.Module("if", 20),
		schema.List("interface", schema.Keys("name"),
			schema.Leaf("name", schema.TypeString),
			schema.Leaf("mtu", schema.TypeUint16),
			schema.Leaf("enabled", schema.TypeBoolean),
		),
	)
}

func testCatalog() *schema.Catalog {
	cat := schema.NewCatalog(interfacesSchema())
	cat.Add(NetconfOperations()...)
	return cat
}

// add creates the child name of parent, parsing text for simple types
func add(t *testing.T, parent *val.Value, name, text string) *val.Value {
	t.Helper()
	o := parent.Object().FindData(name)
	if o == nil {
		t.Fatalf("no schema node %s under %s", name, parent.Name())
	}
	var v *val.Value
	if o.Type.IsSimple() {
		var err error
		if v, err = val.NewLeaf(o, text); err != nil {
			t.Fatalf("NewLeaf(%s, %q): %v", name, text, err)
		}
	} else {
		v = val.New(o)
	}
	if err := parent.AddChild(v); err != nil {
		t.Fatalf("AddChild(%s): %v", name, err)
	}
	return v
}

// interfaceTree builds interfaces/interface[name]/mtu under parent
func interfaceTree(t *testing.T, obj *schema.Object, name, mtu string) *val.Value {
	t.Helper()
	ifs := val.New(obj)
	entry := add(t, ifs, "interface", "")
	add(t, entry, "name", name)
	add(t, entry, "mtu", mtu)
	if err := val.BuildIndexChain(entry); err != nil {
		t.Fatalf("BuildIndexChain: %v", err)
	}
	return ifs
}

// operation returns the catalog rpc name and an input tree for it
func operation(t *testing.T, cat *schema.Catalog, name string) (*schema.Object, *val.Value) {
	t.Helper()
	op, err := cat.MatchRPC(name)
	if err != nil {
		t.Fatalf("MatchRPC(%s): %v", name, err)
	}
	return op, val.New(op.Input())
}
