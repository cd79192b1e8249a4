// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package ncx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Session limits
const (
	// MaxNest is the deepest script nesting a session may configure
	MaxNest = 512

	// MaxLoops is the largest iteration cap of a while loop
	MaxLoops = 65535

	// MaxScriptParms is the number of positional script parameters ($1..$9)
	MaxScriptParms = 9
)

// Default session configuration values
const (
	DefaultAutocomplete    = true
	DefaultContinueOnError = true
	DefaultLogLevel        = "info"
	DefaultGNMIPort        = 57400
	DefaultNetconfPort     = 830
	DefaultTimeout         = 30 * time.Second
	DefaultMaxRetries      = 3
)

// Config holds the per-session settings shared by the parser, the variable
// store and the runstack.
//
// A Config is built once per session and passed by reference; components
// never consult process-wide state.
//
// Example YAML:
//
//	autocomplete: true
//	max_nest: 64
//	max_loops: 1000
//	script_paths: [./scripts]
//	gnmi:
//	  target: 192.168.1.1
//	  username: admin
type Config struct {
	// Autocomplete enables unique-prefix matching of parameter names
	Autocomplete bool `yaml:"autocomplete"`

	// ContinueOnError keeps parsing past a bad parameter
	ContinueOnError bool `yaml:"continue_on_error"`

	// MaxNest bounds script recursion
	MaxNest int `yaml:"max_nest" validate:"gte=1,lte=512"`

	// MaxLoops bounds while-loop iterations
	MaxLoops int `yaml:"max_loops" validate:"gte=1,lte=65535"`

	// ScriptPaths are searched for relative script names
	ScriptPaths []string `yaml:"script_paths" validate:"dive,required"`

	// LogLevel is one of debug, info, warn, error, none
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error none"`

	// DefaultModule is the prefix used for unqualified command names
	DefaultModule string `yaml:"default_module"`

	// SchemaFiles are YAML template descriptors loaded at startup
	SchemaFiles []string `yaml:"schema_files" validate:"dive,required"`

	// SavedVarsFile persists global variables between sessions
	SavedVarsFile string `yaml:"saved_vars_file"`

	// AliasFile holds name=value alias lines
	AliasFile string `yaml:"alias_file"`

	// GNMI configures the gNMI dispatcher (optional)
	GNMI *TransportConfig `yaml:"gnmi" validate:"omitempty"`

	// NETCONF configures the NETCONF dispatcher (optional)
	NETCONF *TransportConfig `yaml:"netconf" validate:"omitempty"`
}

// TransportConfig holds the connection settings of one RPC dispatcher
type TransportConfig struct {
	Target     string        `yaml:"target" validate:"required,hostname_port|hostname|ip"`
	Port       int           `yaml:"port" validate:"omitempty,gte=1,lte=65535"`
	Username   string        `yaml:"username"`
	Password   string        `yaml:"password"`
	Insecure   bool          `yaml:"insecure"`
	SkipVerify bool          `yaml:"skip_verify"`
	Timeout    time.Duration `yaml:"timeout" validate:"gte=0"`
	MaxRetries int           `yaml:"max_retries" validate:"gte=0,lte=10"`

	// gNMI TLS files
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`
	TLSCA   string `yaml:"tls_ca"`

	// NETCONF SSH settings
	KeyFile    string `yaml:"key_file"`
	KnownHosts string `yaml:"known_hosts"`

	// Namespaces maps module prefixes to the namespace URIs sent on the wire
	Namespaces map[string]string `yaml:"namespaces"`
}

// DefaultConfig returns a Config populated with default values
func DefaultConfig() *Config {
	return &Config{
		Autocomplete:    DefaultAutocomplete,
		ContinueOnError: DefaultContinueOnError,
		MaxNest:         MaxNest,
		MaxLoops:        MaxLoops,
		LogLevel:        DefaultLogLevel,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration against its constraints
//
// Returns an *Error with one finding per failed field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}
	e := &Error{Operation: "config"}
	for _, fe := range verrs {
		e.Add(ErrorModel{
			Status:  ErrInvalidValue,
			Name:    fe.Namespace(),
			Value:   fmt.Sprintf("%v", fe.Value()),
			Message: fmt.Sprintf("failed %q constraint", fe.Tag()),
		})
	}
	return e
}

// ParseConfig decodes a YAML document on top of the defaults and validates
// the result
func ParseConfig(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads and validates a YAML configuration file
//
// Example:
//
//	cfg, err := ncx.LoadConfig("ncxsh.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return ParseConfig(bytes.NewReader(data))
}
