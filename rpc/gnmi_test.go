// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package rpc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	ncx "github.com/netascode/go-ncx"
	gnmipb "github.com/openconfig/gnmi/proto/gnmi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// TestNewGNMIClientValidation tests client configuration validation
func TestNewGNMIClientValidation(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		opts       []Option
		wantErrMsg string
	}{
		{
			name:       "empty target",
			target:     "",
			wantErrMsg: "target address cannot be empty",
		},
		{
			name:       "whitespace target",
			target:     "   ",
			wantErrMsg: "target address cannot be empty",
		},
		{
			name:       "invalid port low",
			target:     "192.168.1.1",
			opts:       []Option{Port(0)},
			wantErrMsg: "invalid port: 0 (must be 1-65535)",
		},
		{
			name:       "invalid port high",
			target:     "192.168.1.1",
			opts:       []Option{Port(65536)},
			wantErrMsg: "invalid port: 65536 (must be 1-65535)",
		},
		{
			name:       "zero connect timeout",
			target:     "192.168.1.1",
			opts:       []Option{ConnectTimeout(0)},
			wantErrMsg: "connect timeout must be positive",
		},
		{
			name:       "negative operation timeout",
			target:     "192.168.1.1",
			opts:       []Option{OperationTimeout(-time.Second)},
			wantErrMsg: "operation timeout must be positive",
		},
		{
			name:       "negative max retries",
			target:     "192.168.1.1",
			opts:       []Option{MaxRetries(-1)},
			wantErrMsg: "max retries must be non-negative",
		},
		{
			name:       "zero backoff min delay",
			target:     "192.168.1.1",
			opts:       []Option{BackoffMinDelay(0)},
			wantErrMsg: "backoff min delay must be positive",
		},
		{
			name:       "max delay less than min delay",
			target:     "192.168.1.1",
			opts:       []Option{BackoffMinDelay(10 * time.Second), BackoffMaxDelay(5 * time.Second)},
			wantErrMsg: "must be greater than min delay",
		},
		{
			name:       "factor below one",
			target:     "192.168.1.1",
			opts:       []Option{BackoffDelayFactor(0.5)},
			wantErrMsg: "backoff delay factor must be >= 1.0",
		},
		{
			name:       "missing certificate file",
			target:     "192.168.1.1",
			opts:       []Option{TLSCert("/nonexistent/dir/client.pem")},
			wantErrMsg: "TLS certificate file not found: client.pem",
		},
		{
			name:   "valid configuration",
			target: "192.168.1.1",
			opts:   []Option{Username("admin"), Password("secret")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewGNMIClient(tt.target, tt.opts...)
			if tt.wantErrMsg == "" {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				if c.Target != tt.target {
					t.Errorf("Expected target %s, got %s", tt.target, c.Target)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.wantErrMsg)
			}
			if !strings.Contains(err.Error(), tt.wantErrMsg) {
				t.Errorf("Expected error containing %q, got %q", tt.wantErrMsg, err.Error())
			}
		})
	}
}

// TestNewGNMIClientTLSFiles tests that existing TLS files pass validation
func TestNewGNMIClientTLSFiles(t *testing.T) {
	dir := t.TempDir()
	ca := filepath.Join(dir, "ca.pem")
	if err := os.WriteFile(ca, []byte("-----BEGIN CERTIFICATE-----\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := NewGNMIClient("192.168.1.1", Username("admin"), TLSCA(ca))
	if err != nil && strings.Contains(err.Error(), "file not found") {
		t.Errorf("Expected existing CA file to pass validation, got %v", err)
	}
}

// TestNewGNMIClientWarnings tests the warnings for risky settings
func TestNewGNMIClientWarnings(t *testing.T) {
	l := &TestLogger{}
	if _, err := NewGNMIClient("192.168.1.1", WithLogger(l), VerifyCertificate(false)); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	for _, want := range []string{"TLS certificate verification disabled", "no credentials configured"} {
		if !l.contains(want) {
			t.Errorf("Expected warning %q to be logged", want)
		}
	}
}

// TestHasCredentials tests credential detection
func TestHasCredentials(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want bool
	}{
		{"none", nil, false},
		{"username", []Option{Username("admin")}, true},
		{"password", []Option{Password("secret")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewGNMIClient("192.168.1.1", tt.opts...)
			if err != nil {
				t.Fatal(err)
			}
			if got := c.HasCredentials(); got != tt.want {
				t.Errorf("Expected HasCredentials() = %v, got %v", tt.want, got)
			}
		})
	}
}

// TestCapabilityAccessors tests the recorded server encodings
func TestCapabilityAccessors(t *testing.T) {
	c := newTestClient(t, &fakeTransport{})
	c.capabilities = []string{"json", "json_ietf"}

	if !c.HasCapability("json_ietf") {
		t.Error("Expected json_ietf capability")
	}
	if c.HasCapability("proto") {
		t.Error("Expected no proto capability")
	}
	caps := c.ServerCapabilities()
	caps[0] = "changed"
	if c.capabilities[0] != "json" {
		t.Errorf("Expected ServerCapabilities to return a copy, got %v", c.capabilities)
	}
}

// TestPrepareJSONForLogging tests redaction and size limits
func TestPrepareJSONForLogging(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		pretty  bool
		want    string
		notWant string
	}{
		{
			name:    "password redacted",
			input:   `{"user":"admin","password":"hunter2"}`,
			want:    `"password":"[REDACTED]"`,
			notWant: "hunter2",
		},
		{
			name:    "secret with spaces redacted",
			input:   `{"secret" : "abc"}`,
			want:    `"secret":"[REDACTED]"`,
			notWant: "abc",
		},
		{
			name:  "plain value kept",
			input: `{"mtu":9000}`,
			want:  `"mtu":9000`,
		},
		{
			name:   "pretty printed",
			input:  `{"mtu":9000}`,
			pretty: true,
			want:   "\n  \"mtu\": 9000\n",
		},
		{
			name:  "too large",
			input: `"` + strings.Repeat("a", MaxJSONSizeForLogging) + `"`,
			want:  JSONTooLargeMessage,
		},
		{
			name:  "too many sensitive fields",
			input: strings.Repeat(`"token"`, MaxSensitiveFields+1),
			want:  JSONTooManySensitiveMsg,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, &fakeTransport{}, WithPrettyPrintLogs(tt.pretty))
			got := c.prepareJSONForLogging(tt.input)
			if !strings.Contains(got, tt.want) {
				t.Errorf("Expected output containing %q, got %q", tt.want, got)
			}
			if tt.notWant != "" && strings.Contains(got, tt.notWant) {
				t.Errorf("Expected %q to be redacted, got %q", tt.notWant, got)
			}
		})
	}
}

// TestRetryLogicTransientErrorDetection tests which errors are retried
func TestRetryLogicTransientErrorDetection(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantTransient bool
		wantTransport bool
	}{
		{"nil", nil, false, false},
		{"plain error", errors.New("boom"), false, false},
		{"unavailable", status.Error(codes.Unavailable, "down"), true, true},
		{"deadline", status.Error(codes.DeadlineExceeded, "slow"), true, true},
		{"resource exhausted", status.Error(codes.ResourceExhausted, "busy"), true, false},
		{"aborted", status.Error(codes.Aborted, "conflict"), true, false},
		{"invalid argument", status.Error(codes.InvalidArgument, "bad path"), false, false},
		{"not found", status.Error(codes.NotFound, "missing"), false, false},
	}

	c := newTestClient(t, &fakeTransport{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.checkTransientError(tt.err); got != tt.wantTransient {
				t.Errorf("Expected transient %v, got %v", tt.wantTransient, got)
			}
			if got := c.isTransportError(tt.err); got != tt.wantTransport {
				t.Errorf("Expected transport error %v, got %v", tt.wantTransport, got)
			}
		})
	}
}

// TestExtractErrorDetails tests conversion of errors into findings
func TestExtractErrorDetails(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []ncx.ErrorModel
	}{
		{
			name: "nil",
			err:  nil,
			want: nil,
		},
		{
			name: "grpc status",
			err:  status.Error(codes.NotFound, "no such path"),
			want: []ncx.ErrorModel{{Code: uint32(codes.NotFound), Status: ncx.ErrNotFound, Message: "no such path"}},
		},
		{
			name: "grpc aborted",
			err:  status.Error(codes.Aborted, "locked"),
			want: []ncx.ErrorModel{{Code: uint32(codes.Aborted), Status: ncx.ErrInUseLocked, Message: "locked"}},
		},
		{
			name: "status sentinel",
			err:  invalidf("paths cannot be empty"),
			want: []ncx.ErrorModel{{
				Code:    uint32(ncx.ErrInvalidValue.Code()),
				Status:  ncx.ErrInvalidValue,
				Message: ncx.ErrInvalidValue.Error() + ": paths cannot be empty",
			}},
		},
	}

	c := newTestClient(t, &fakeTransport{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.extractErrorDetails(tt.err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Expected details (-want +got):\n%s", diff)
			}
		})
	}
}

// TestInputValidation_PathSecurity tests path checks
func TestInputValidation_PathSecurity(t *testing.T) {
	tests := []struct {
		name    string
		paths   []string
		wantErr string
	}{
		{"valid", []string{"/if:interfaces/interface[name=eth0]"}, ""},
		{"module qualified", []string{"openconfig:/interfaces"}, ""},
		{"empty list", nil, "paths cannot be empty"},
		{"empty path", []string{""}, "path cannot be empty"},
		{"relative", []string{"interfaces"}, "must start with '/'"},
		{"null byte", []string{"/a\x00b"}, "null byte"},
		{"traversal", []string{"/a/../b"}, "traversal"},
		{"too long", []string{"/" + strings.Repeat("a", MaxPathLength)}, "exceeds maximum length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePaths(tt.paths)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
			if !errors.Is(err, ncx.ErrInvalidValue) {
				t.Errorf("Expected ErrInvalidValue, got %v", err)
			}
		})
	}
}

// TestInputValidation_SetOperations tests Set operation checks
func TestInputValidation_SetOperations(t *testing.T) {
	tests := []struct {
		name    string
		ops     []SetOperation
		wantErr string
	}{
		{"valid update", []SetOperation{Update("/a", `{"b":1}`)}, ""},
		{"delete ignores value", []SetOperation{Delete("/a")}, ""},
		{"no operations", nil, "operations cannot be empty"},
		{"empty type", []SetOperation{{Path: "/a"}}, "operation type cannot be empty"},
		{"unknown type", []SetOperation{{OperationType: "merge", Path: "/a"}}, "operation type invalid"},
		{"bad json", []SetOperation{Update("/a", `{"b":`)}, "invalid JSON syntax"},
		{"bad encoding", []SetOperation{Update("/a", `1`, SetEncoding("proto"))}, "encoding \"proto\""},
		{"ascii skips json check", []SetOperation{Update("/a", `not json`, SetEncoding(EncodingASCII))}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSetOperations(tt.ops)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestGet tests a Get against a fake transport
func TestGet(t *testing.T) {
	tr := &fakeTransport{getResp: &gnmipb.GetResponse{
		Notification: []*gnmipb.Notification{{
			Timestamp: 1,
			Update: []*gnmipb.Update{{
				Path: &gnmipb.Path{Elem: []*gnmipb.PathElem{{Name: "system"}, {Name: "hostname"}}},
				Val:  &gnmipb.TypedValue{Value: &gnmipb.TypedValue_StringVal{StringVal: "r1"}},
			}},
		}},
	}}
	c := newTestClient(t, tr)

	res, err := c.Get(context.Background(), []string{"/system/hostname"}, ConfigOnly())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !res.OK {
		t.Error("Expected OK result")
	}
	if len(res.Notifications) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(res.Notifications))
	}
	if len(tr.gets) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(tr.gets))
	}
	req := tr.gets[0]
	if req.GetType() != gnmipb.GetRequest_CONFIG {
		t.Errorf("Expected CONFIG data type, got %v", req.GetType())
	}
	if req.GetEncoding() != gnmipb.Encoding_JSON_IETF {
		t.Errorf("Expected JSON_IETF encoding, got %v", req.GetEncoding())
	}
	if got := PathString(req.GetPath()[0]); got != "/system/hostname" {
		t.Errorf("Expected path /system/hostname, got %s", got)
	}
	if got := res.GetValue("notification.0.update.0.val.string_val").String(); got != "r1" {
		t.Errorf("Expected r1 in JSON view, got %q", got)
	}
}

// TestGetValidation tests that invalid requests never reach the transport
func TestGetValidation(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		mods  []func(*Req)
	}{
		{"no paths", nil, nil},
		{"bad encoding", []string{"/a"}, []func(*Req){GetEncoding("xml")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTransport{}
			c := newTestClient(t, tr)
			res, err := c.Get(context.Background(), tt.paths, tt.mods...)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if len(res.Errors) == 0 || res.Errors[0].Status != ncx.ErrInvalidValue {
				t.Errorf("Expected ErrInvalidValue finding, got %v", res.Errors)
			}
			if len(tr.gets) != 0 {
				t.Errorf("Expected no request sent, got %d", len(tr.gets))
			}
		})
	}
}

// TestGetCanceledContext tests that a canceled context fails fast
func TestGetCanceledContext(t *testing.T) {
	tr := &fakeTransport{}
	c := newTestClient(t, tr)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Get(ctx, []string{"/a"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if len(tr.gets) != 0 {
		t.Errorf("Expected no request sent, got %d", len(tr.gets))
	}
}

// TestGetNotConnected tests a closed client
func TestGetNotConnected(t *testing.T) {
	c := newTestClient(t, &fakeTransport{})
	c.tr = nil

	_, err := c.Get(context.Background(), []string{"/a"})
	if !errors.Is(err, ncx.ErrReadFailed) {
		t.Errorf("Expected ErrReadFailed, got %v", err)
	}
}

// TestRetryLogicMaxRetriesEnforcement tests retries of transient errors
func TestRetryLogicMaxRetriesEnforcement(t *testing.T) {
	busy := status.Error(codes.ResourceExhausted, "busy")
	tests := []struct {
		name      string
		retries   int
		errs      []error
		wantErr   bool
		wantCalls int
	}{
		{"success first try", 3, nil, false, 1},
		{"success after retries", 3, []error{busy, busy}, false, 3},
		{"retries exhausted", 2, []error{busy, busy, busy, busy}, true, 3},
		{"no retries", 0, []error{busy}, true, 1},
		{"permanent error", 3, []error{status.Error(codes.InvalidArgument, "bad")}, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTransport{errs: tt.errs}
			c := newTestClient(t, tr, MaxRetries(tt.retries))
			_, err := c.Set(context.Background(), []SetOperation{Update("/a", `{"b":1}`)})
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error %v, got %v", tt.wantErr, err)
			}
			if len(tr.sets) != tt.wantCalls {
				t.Errorf("Expected %d calls, got %d", tt.wantCalls, len(tr.sets))
			}
		})
	}
}

// TestRetryLogicErrorExtraction tests findings carried by a failed Set
func TestRetryLogicErrorExtraction(t *testing.T) {
	tr := &fakeTransport{errs: []error{status.Error(codes.InvalidArgument, "unknown leaf foo")}}
	c := newTestClient(t, tr)

	res, err := c.Set(context.Background(), []SetOperation{Delete("/a")})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	want := []ncx.ErrorModel{{Code: uint32(codes.InvalidArgument), Status: ncx.ErrInvalidValue, Message: "unknown leaf foo"}}
	if diff := cmp.Diff(want, res.Errors); diff != "" {
		t.Errorf("Expected findings (-want +got):\n%s", diff)
	}
	if res.OK {
		t.Error("Expected OK false")
	}
}

// TestSetRequestContent tests the SetRequest built from operations
func TestSetRequestContent(t *testing.T) {
	tr := &fakeTransport{}
	c := newTestClient(t, tr)

	_, err := c.Set(context.Background(), []SetOperation{
		Update("/system/hostname", `"r1"`),
		Replace("/system/domain", `"example.com"`),
		Delete("/system/banner"),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	req := tr.sets[0]
	if len(req.GetUpdate()) != 1 || len(req.GetReplace()) != 1 || len(req.GetDelete()) != 1 {
		t.Fatalf("Expected one update, replace and delete, got %d/%d/%d",
			len(req.GetUpdate()), len(req.GetReplace()), len(req.GetDelete()))
	}
	if got := PathString(req.GetDelete()[0]); got != "/system/banner" {
		t.Errorf("Expected delete path /system/banner, got %s", got)
	}
	if got := string(req.GetUpdate()[0].GetVal().GetJsonIetfVal()); got != `"r1"` {
		t.Errorf("Expected update value \"r1\", got %s", got)
	}
}

// TestCreateAttemptContext tests the deadline of one attempt
func TestCreateAttemptContext(t *testing.T) {
	c := newTestClient(t, &fakeTransport{}, OperationTimeout(20*time.Second))

	tests := []struct {
		name    string
		ctx     func() (context.Context, context.CancelFunc)
		req     *Req
		wantMax time.Duration
	}{
		{
			name:    "request timeout",
			ctx:     func() (context.Context, context.CancelFunc) { return context.Background(), func() {} },
			req:     &Req{Timeout: 2 * time.Second},
			wantMax: 2 * time.Second,
		},
		{
			name: "context deadline",
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 5*time.Second)
			},
			req:     &Req{},
			wantMax: 5 * time.Second,
		},
		{
			name:    "operation timeout",
			ctx:     func() (context.Context, context.CancelFunc) { return context.Background(), func() {} },
			req:     &Req{},
			wantMax: 20 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent, cancelParent := tt.ctx()
			defer cancelParent()
			ctx, cancel := c.createAttemptContext(parent, tt.req)
			defer cancel()
			deadline, ok := ctx.Deadline()
			if !ok {
				t.Fatal("Expected a deadline")
			}
			if left := time.Until(deadline); left > tt.wantMax || left < tt.wantMax-time.Second {
				t.Errorf("Expected about %v left, got %v", tt.wantMax, left)
			}
		})
	}
}

// TestCalculateTotalTimeout tests the retry budget
func TestCalculateTotalTimeout(t *testing.T) {
	c := newTestClient(t, &fakeTransport{},
		OperationTimeout(10*time.Second),
		MaxRetries(2),
		BackoffMinDelay(time.Second),
		BackoffMaxDelay(4*time.Second))

	got := c.calculateTotalTimeout()
	low := 10*time.Second + 1*time.Second + 2*time.Second + 4*time.Second
	high := low + low/10
	if got < low || got > high {
		t.Errorf("Expected total timeout in [%v, %v], got %v", low, high, got)
	}
}

// TestDisconnectAndClose tests that both drop the transport
func TestDisconnectAndClose(t *testing.T) {
	c := newTestClient(t, &fakeTransport{})
	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if c.connected || c.tr != nil {
		t.Error("Expected disconnected client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if c.target != nil {
		t.Error("Expected target released after Close")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Expected second Close to succeed, got %v", err)
	}
}
