// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package rpc

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	"time"

	ncx "github.com/netascode/go-ncx"
	"github.com/netascode/go-ncx/schema"
)

// Default dispatcher settings
const (
	DefaultMaxRetries         = 3
	DefaultBackoffMinDelay    = 1 * time.Second
	DefaultBackoffMaxDelay    = 60 * time.Second
	DefaultBackoffDelayFactor = 2
	DefaultConnectTimeout     = 30 * time.Second
	DefaultOperationTimeout   = 15 * time.Second
)

// NetconfBaseURI is the namespace of the NETCONF base operations
const NetconfBaseURI = "urn:ietf:params:xml:ns:netconf:base:1.0"

// Option configures a GNMIClient or a NetconfSession
type Option func(*options)

type options struct {
	port     int
	username string
	password string

	tlsCert    string
	tlsKey     string
	tlsCA      string
	keyFile    string
	knownHosts string

	useTLS bool
	verify bool

	connectTimeout   time.Duration
	operationTimeout time.Duration

	maxRetries    int
	backoffMin    time.Duration
	backoffMax    time.Duration
	backoffFactor float64

	logger          ncx.Logger
	prettyPrintLogs bool

	catalog    *schema.Catalog
	namespaces map[string]string
}

func defaultOptions(port int) options {
	return options{
		port:             port,
		useTLS:           true,
		verify:           true,
		connectTimeout:   DefaultConnectTimeout,
		operationTimeout: DefaultOperationTimeout,
		maxRetries:       DefaultMaxRetries,
		backoffMin:       DefaultBackoffMinDelay,
		backoffMax:       DefaultBackoffMaxDelay,
		backoffFactor:    DefaultBackoffDelayFactor,
		logger:           &ncx.NoOpLogger{},
		prettyPrintLogs:  true,
		namespaces:       map[string]string{schema.NetconfPrefix: NetconfBaseURI},
	}
}

// Backoff returns the delay before retry attempt (0-based)
//
// The delay is min(minDelay * factor^attempt, maxDelay) plus up to 10%
// jitter from crypto/rand, or from the clock when crypto/rand fails.
func (c *options) Backoff(attempt int) time.Duration {
	delay := float64(c.backoffMin) * math.Pow(c.backoffFactor, float64(attempt))
	if math.IsInf(delay, 1) || delay > float64(c.backoffMax) {
		delay = float64(c.backoffMax)
	}
	base := delay

	jitterMax := int64(delay * 0.1)
	var jitter int64
	if jitterMax > 0 {
		var buf [8]byte
		if _, err := rand.Read(buf[:]); err == nil {
			//nolint:gosec // G115: masked to a non-negative int64
			jitter = int64(binary.BigEndian.Uint64(buf[:])&0x7FFFFFFFFFFFFFFF) % jitterMax
		} else {
			ts := time.Now().UnixNano()
			jitter = (ts%jitterMax + jitterMax) % jitterMax
			c.logger.Warn("crypto/rand failed, using timestamp-based jitter",
				"error", err.Error(),
				"attempt", attempt)
		}
		delay += float64(jitter)
	}

	d := time.Duration(delay)
	c.logger.Debug("backoff calculated",
		"attempt", attempt,
		"base_delay_ms", time.Duration(base).Milliseconds(),
		"jitter_ms", time.Duration(jitter).Milliseconds(),
		"final_delay_ms", d.Milliseconds())
	return d
}

// Username sets the login user
func Username(username string) Option {
	return func(o *options) {
		o.username = username
	}
}

// Password sets the login password
func Password(password string) Option {
	return func(o *options) {
		o.password = password
	}
}

// TLSCert sets the gNMI client certificate file
func TLSCert(path string) Option {
	return func(o *options) {
		o.tlsCert = path
	}
}

// TLSKey sets the gNMI client key file
func TLSKey(path string) Option {
	return func(o *options) {
		o.tlsKey = path
	}
}

// TLSCA sets the CA file used to verify the gNMI server
func TLSCA(path string) Option {
	return func(o *options) {
		o.tlsCA = path
	}
}

// KeyFile sets the SSH private key used for NETCONF public key login
func KeyFile(path string) Option {
	return func(o *options) {
		o.keyFile = path
	}
}

// KnownHosts sets the known_hosts file used to verify the NETCONF server
func KnownHosts(path string) Option {
	return func(o *options) {
		o.knownHosts = path
	}
}

// Port sets the server port used when the target carries none
func Port(port int) Option {
	return func(o *options) {
		o.port = port
	}
}

// TLS enables or disables TLS on the gNMI channel (default: enabled)
func TLS(enabled bool) Option {
	return func(o *options) {
		o.useTLS = enabled
	}
}

// VerifyCertificate enables or disables verification of the server's
// certificate or host key (default: enabled)
func VerifyCertificate(verify bool) Option {
	return func(o *options) {
		o.verify = verify
	}
}

// ConnectTimeout bounds connection establishment
func ConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		o.connectTimeout = d
	}
}

// OperationTimeout bounds a single request attempt
func OperationTimeout(d time.Duration) Option {
	return func(o *options) {
		o.operationTimeout = d
	}
}

// MaxRetries sets the number of retries after a transient failure
func MaxRetries(n int) Option {
	return func(o *options) {
		o.maxRetries = n
	}
}

// BackoffMinDelay sets the first retry delay
func BackoffMinDelay(d time.Duration) Option {
	return func(o *options) {
		o.backoffMin = d
	}
}

// BackoffMaxDelay caps the retry delay
func BackoffMaxDelay(d time.Duration) Option {
	return func(o *options) {
		o.backoffMax = d
	}
}

// BackoffDelayFactor sets the exponential growth of the retry delay
func BackoffDelayFactor(f float64) Option {
	return func(o *options) {
		o.backoffFactor = f
	}
}

// WithLogger sets the logger; a nil logger is ignored
func WithLogger(logger ncx.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPrettyPrintLogs indents JSON written to debug logs (default: enabled)
func WithPrettyPrintLogs(enabled bool) Option {
	return func(o *options) {
		o.prettyPrintLogs = enabled
	}
}

// WithCatalog sets the templates reply data is bound to; without a catalog
// replies are built from generic nodes
func WithCatalog(cat *schema.Catalog) Option {
	return func(o *options) {
		o.catalog = cat
	}
}

// WithNamespace maps a module prefix to the namespace URI sent on the wire
func WithNamespace(prefix, uri string) Option {
	return func(o *options) {
		o.namespaces[prefix] = uri
	}
}

// FromConfig converts a transport configuration into options
//
// Example:
//
//	client, err := rpc.NewGNMIClient(cfg.GNMI.Target, rpc.FromConfig(cfg.GNMI)...)
func FromConfig(tc *ncx.TransportConfig) []Option {
	if tc == nil {
		return nil
	}
	opts := []Option{
		Username(tc.Username),
		Password(tc.Password),
		TLS(!tc.Insecure),
		VerifyCertificate(!tc.SkipVerify),
		TLSCert(tc.TLSCert),
		TLSKey(tc.TLSKey),
		TLSCA(tc.TLSCA),
		KeyFile(tc.KeyFile),
		KnownHosts(tc.KnownHosts),
	}
	if tc.MaxRetries > 0 {
		opts = append(opts, MaxRetries(tc.MaxRetries))
	}
	if tc.Port != 0 {
		opts = append(opts, Port(tc.Port))
	}
	if tc.Timeout > 0 {
		opts = append(opts, ConnectTimeout(tc.Timeout), OperationTimeout(tc.Timeout))
	}
	for prefix, uri := range tc.Namespaces {
		opts = append(opts, WithNamespace(prefix, uri))
	}
	return opts
}

// Timeout sets a per-request attempt timeout
func Timeout(d time.Duration) func(*Req) {
	return func(r *Req) {
		r.Timeout = d
	}
}

// GetEncoding sets the encoding of a Get request
func GetEncoding(enc string) func(*Req) {
	return func(r *Req) {
		r.Encoding = enc
	}
}

// ConfigOnly restricts a Get to configuration data
func ConfigOnly() func(*Req) {
	return func(r *Req) {
		r.DataType = "config"
	}
}

// SetEncoding sets the encoding of one Set operation
func SetEncoding(enc string) func(*SetOperation) {
	return func(op *SetOperation) {
		op.Encoding = enc
	}
}
