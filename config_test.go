// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package ncx

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// TestDefaultConfig tests that the defaults pass validation
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected valid defaults, got %v", err)
	}
	if !cfg.Autocomplete || !cfg.ContinueOnError {
		t.Error("Expected autocomplete and continue-on-error enabled")
	}
	if cfg.MaxNest != MaxNest || cfg.MaxLoops != MaxLoops {
		t.Errorf("Expected limits %d/%d, got %d/%d", MaxNest, MaxLoops, cfg.MaxNest, cfg.MaxLoops)
	}
}

// TestParseConfig tests decoding YAML on top of the defaults
func TestParseConfig(t *testing.T) {
	doc := `
autocomplete: false
max_nest: 16
script_paths: [./scripts, /etc/ncxsh]
netconf:
  target: router1.example.net
  port: 2830
  username: admin
  timeout: 5s
  known_hosts: /home/admin/.ssh/known_hosts
  namespaces:
    if: urn:ietf:params:xml:ns:yang:ietf-interfaces
`
	cfg, err := ParseConfig(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	want := DefaultConfig()
	want.Autocomplete = false
	want.MaxNest = 16
	want.ScriptPaths = []string{"./scripts", "/etc/ncxsh"}
	want.NETCONF = &TransportConfig{
		Target:     "router1.example.net",
		Port:       2830,
		Username:   "admin",
		Timeout:    5 * time.Second,
		KnownHosts: "/home/admin/.ssh/known_hosts",
		Namespaces: map[string]string{"if": "urn:ietf:params:xml:ns:yang:ietf-interfaces"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Expected config (-want +got):\n%s", diff)
	}
}

// TestParseConfigEmpty tests that an empty document yields the defaults
func TestParseConfigEmpty(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("Expected defaults (-want +got):\n%s", diff)
	}
}

// TestParseConfigInvalid tests decode and constraint failures
func TestParseConfigInvalid(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantField string
	}{
		{"unknown field", "max_nesting: 3\n", ""},
		{"nest too deep", "max_nest: 513\n", "Config.MaxNest"},
		{"zero loops", "max_loops: 0\n", "Config.MaxLoops"},
		{"bad log level", "log_level: loud\n", "Config.LogLevel"},
		{"empty script path", "script_paths: ['']\n", "Config.ScriptPaths[0]"},
		{"missing target", "gnmi:\n  username: admin\n", "Config.GNMI.Target"},
		{"bad port", "gnmi:\n  target: 10.0.0.1\n  port: 70000\n", "Config.GNMI.Port"},
		{"too many retries", "netconf:\n  target: 10.0.0.1\n  max_retries: 11\n", "Config.NETCONF.MaxRetries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig(strings.NewReader(tt.doc))
			if err == nil {
				t.Fatal("Expected an error")
			}
			if tt.wantField == "" {
				return
			}
			var nerr *Error
			if !errors.As(err, &nerr) {
				t.Fatalf("Expected *Error, got %T: %v", err, err)
			}
			if !errors.Is(err, ErrInvalidValue) {
				t.Errorf("Expected ErrInvalidValue, got %v", err)
			}
			if nerr.Errors[0].Name != tt.wantField {
				t.Errorf("Expected field %s, got %s", tt.wantField, nerr.Errors[0].Name)
			}
		})
	}
}

// TestLoadConfig tests reading a configuration file
func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ncxsh.yaml")
	if err := os.WriteFile(path, []byte("log_level: debug\nalias_file: aliases\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.AliasFile != "aliases" {
		t.Errorf("Expected file values, got log_level=%s alias_file=%s", cfg.LogLevel, cfg.AliasFile)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}
