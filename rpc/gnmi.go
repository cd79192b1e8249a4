// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"

	ncx "github.com/netascode/go-ncx"
	gnmipb "github.com/openconfig/gnmi/proto/gnmi"
	"github.com/openconfig/gnmic/pkg/api"
	"github.com/openconfig/gnmic/pkg/api/target"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultGNMIPort is used when the target address carries no port
const DefaultGNMIPort = ncx.DefaultGNMIPort

// Limits on JSON written to debug logs
const (
	MaxJSONSizeForLogging = 1 * 1024 * 1024
	MaxSensitiveFields    = 1000
)

// Placeholders logged instead of oversized or suspicious JSON
const (
	JSONTooLargeMessage     = "[JSON TOO LARGE FOR LOGGING]"
	JSONTooManySensitiveMsg = "[JSON CONTAINS TOO MANY SENSITIVE FIELDS]"
)

// TransientErrors are the gRPC codes worth retrying
var TransientErrors = []codes.Code{
	codes.Unavailable,
	codes.ResourceExhausted,
	codes.DeadlineExceeded,
	codes.Aborted,
}

var sensitiveFields = []string{"password", "secret", "key", "community", "token", "auth"}

var defaultRedactionPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(sensitiveFields))
	for i, f := range sensitiveFields {
		out[i] = regexp.MustCompile(`"` + f + `"\s*:\s*"[^"]*"`)
	}
	return out
}()

// transport is the part of a gnmic target a request needs
type transport interface {
	Get(ctx context.Context, req *gnmipb.GetRequest) (*gnmipb.GetResponse, error)
	Set(ctx context.Context, req *gnmipb.SetRequest) (*gnmipb.SetResponse, error)
}

// GNMIClient dispatches value trees to a device over gNMI
//
// The client is configured by NewGNMIClient but connects lazily on the
// first request. Transient failures are retried with exponential backoff;
// a broken channel is re-established before the next attempt.
type GNMIClient struct {
	options

	// Target is the device address as given to NewGNMIClient
	Target string

	mu           sync.RWMutex
	target       *target.Target
	tr           transport
	connected    bool
	capabilities []string

	redactionPatterns []*regexp.Regexp
}

// NewGNMIClient creates a client for addr ("host" or "host:port")
//
// Example:
//
//	client, err := rpc.NewGNMIClient("192.168.1.1",
//	    rpc.Username("admin"),
//	    rpc.Password("secret"),
//	    rpc.VerifyCertificate(false),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
func NewGNMIClient(addr string, opts ...Option) (*GNMIClient, error) {
	c := &GNMIClient{
		options:           defaultOptions(DefaultGNMIPort),
		Target:            addr,
		redactionPatterns: defaultRedactionPatterns,
	}
	for _, opt := range opts {
		opt(&c.options)
	}
	if err := c.validateConfig(); err != nil {
		return nil, err
	}
	if err := c.createTarget(); err != nil {
		return nil, err
	}
	c.logger.Info("gNMI client created",
		"target", c.Target,
		"port", c.port,
		"connection", "lazy")
	return c, nil
}

// Disconnect drops the channel but keeps the configuration; the next
// request reconnects
func (c *GNMIClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.target == nil {
		return nil
	}
	if err := c.target.Close(); err != nil {
		c.logger.Warn("gNMI close returned error during disconnect",
			"target", c.Target,
			"error", err.Error())
	}
	c.connected = false
	c.tr = nil
	c.logger.Info("gNMI connection disconnected", "target", c.Target)
	return nil
}

// Close releases the channel for good; later requests fail
func (c *GNMIClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.target
	c.target = nil
	c.tr = nil
	c.connected = false
	if t == nil {
		return nil
	}
	if err := t.Close(); err != nil {
		return err
	}
	c.logger.Info("gNMI connection closed", "target", c.Target)
	return nil
}

// HasCapability reports whether the server announced enc
func (c *GNMIClient) HasCapability(enc string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Contains(c.capabilities, enc)
}

// ServerCapabilities returns a copy of the announced encodings
func (c *GNMIClient) ServerCapabilities() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.capabilities)
}

// HasCredentials reports whether a user, password or client certificate
// is configured
func (c *GNMIClient) HasCredentials() bool {
	return c.username != "" || c.password != "" || c.tlsCert != ""
}

// prepareJSONForLogging redacts credentials and optionally indents s
func (c *GNMIClient) prepareJSONForLogging(s string) string {
	if len(s) > MaxJSONSizeForLogging {
		return JSONTooLargeMessage
	}
	count := 0
	for _, f := range sensitiveFields {
		count += strings.Count(s, `"`+f+`"`)
	}
	if count > MaxSensitiveFields {
		c.logger.Warn("too many sensitive fields detected",
			"count", count,
			"max", MaxSensitiveFields)
		return JSONTooManySensitiveMsg
	}

	redacted := c.redactSensitiveData(s)
	if c.prettyPrintLogs {
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(redacted), "", "  "); err == nil {
			return buf.String()
		}
	}
	return redacted
}

func (c *GNMIClient) redactSensitiveData(s string) string {
	for i, pattern := range c.redactionPatterns {
		s = pattern.ReplaceAllString(s, `"`+sensitiveFields[i]+`":"[REDACTED]"`)
	}
	return s
}

// checkTransientError reports whether err carries a retryable gRPC code
func (c *GNMIClient) checkTransientError(err error) bool {
	st, ok := status.FromError(err)
	if err == nil || !ok {
		return false
	}
	transient := slices.Contains(TransientErrors, st.Code())
	c.logger.Debug("checked error for transient code",
		"code", st.Code().String(),
		"transient", transient)
	return transient
}

// isTransportError reports whether err means the channel is unusable
func (c *GNMIClient) isTransportError(err error) bool {
	st, ok := status.FromError(err)
	if err == nil || !ok {
		return false
	}
	return st.Code() == codes.Unavailable || st.Code() == codes.DeadlineExceeded
}

func (c *GNMIClient) validateConfig() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ncx.ErrInvalidValue, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.Target) == "" {
		return invalid("target address cannot be empty")
	}
	if c.port < 1 || c.port > 65535 {
		return invalid("invalid port: %d (must be 1-65535)", c.port)
	}
	if c.connectTimeout <= 0 {
		return invalid("connect timeout must be positive, got: %v", c.connectTimeout)
	}
	if c.operationTimeout <= 0 {
		return invalid("operation timeout must be positive, got: %v", c.operationTimeout)
	}
	if c.maxRetries < 0 {
		return invalid("max retries must be non-negative, got: %d", c.maxRetries)
	}
	if c.backoffMin <= 0 {
		return invalid("backoff min delay must be positive, got: %v", c.backoffMin)
	}
	if c.backoffMax <= c.backoffMin {
		return invalid("backoff max delay (%v) must be greater than min delay (%v)", c.backoffMax, c.backoffMin)
	}
	if c.backoffFactor < 1.0 {
		return invalid("backoff delay factor must be >= 1.0, got: %f", c.backoffFactor)
	}

	if c.useTLS && !c.verify {
		c.logger.Warn("TLS certificate verification disabled",
			"target", c.Target,
			"recommendation", "use only in testing environments")
	}
	if !c.useTLS {
		c.logger.Warn("TLS disabled, connection is not encrypted", "target", c.Target)
	}

	for _, f := range []struct{ kind, path string }{
		{"certificate", c.tlsCert},
		{"key", c.tlsKey},
		{"CA", c.tlsCA},
	} {
		if f.path == "" {
			continue
		}
		if _, err := os.Stat(f.path); err != nil {
			c.logger.Debug("TLS file check failed", "path", f.path, "error", err.Error())
			return fmt.Errorf("%w: TLS %s file not found: %s", ncx.ErrNotFound, f.kind, filepath.Base(f.path))
		}
	}

	if !c.HasCredentials() {
		c.logger.Warn("no credentials configured",
			"target", c.Target,
			"message", "device may reject connection")
	}
	return nil
}

// createTarget builds the gnmic target without connecting
func (c *GNMIClient) createTarget() error {
	address := c.Target
	if !strings.Contains(address, ":") {
		address = fmt.Sprintf("%s:%d", address, c.port)
	}

	opts := []api.TargetOption{
		api.Name(c.Target),
		api.Address(address),
		api.Timeout(c.connectTimeout),
		api.Insecure(!c.useTLS),
		api.SkipVerify(!c.verify),
	}
	if c.username != "" {
		opts = append(opts, api.Username(c.username))
	}
	if c.password != "" {
		opts = append(opts, api.Password(c.password))
	}
	if c.tlsCert != "" {
		opts = append(opts, api.TLSCert(c.tlsCert))
	}
	if c.tlsKey != "" {
		opts = append(opts, api.TLSKey(c.tlsKey))
	}
	if c.tlsCA != "" {
		opts = append(opts, api.TLSCA(c.tlsCA))
	}

	t, err := api.NewTarget(opts...)
	if err != nil {
		return fmt.Errorf("failed to create gnmic target: %w", err)
	}
	c.target = t
	return nil
}

// ensureConnected opens the channel on first use
func (c *GNMIClient) ensureConnected(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}
	if c.target == nil {
		return fmt.Errorf("%w: client not connected", ncx.ErrReadFailed)
	}
	c.logger.Debug("establishing gNMI connection", "target", c.Target, "port", c.port)
	if err := c.target.CreateGNMIClient(ctx); err != nil {
		return fmt.Errorf("failed to establish connection: %w", err)
	}
	c.tr = c.target
	c.connected = true
	c.logger.Info("gNMI connection established", "target", c.Target)
	return nil
}

// reconnect replaces a broken channel
func (c *GNMIClient) reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Warn("gNMI reconnecting", "target", c.Target, "reason", "transport error")
	if c.target != nil {
		_ = c.target.Close() //nolint:errcheck // channel is already broken
	}
	c.connected = false
	c.tr = nil
	if err := c.createTarget(); err != nil {
		return err
	}
	if err := c.target.CreateGNMIClient(ctx); err != nil {
		c.logger.Error("gNMI reconnection failed", "target", c.Target, "error", err.Error())
		return fmt.Errorf("failed to reconnect: %w", err)
	}
	c.tr = c.target
	c.connected = true
	c.logger.Info("gNMI reconnected", "target", c.Target)
	return nil
}

// active returns the connected transport
func (c *GNMIClient) active() (transport, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tr == nil {
		return nil, fmt.Errorf("%w: client not connected", ncx.ErrReadFailed)
	}
	return c.tr, nil
}

// Capabilities asks the server for its version, encodings and models and
// records the encodings for HasCapability
func (c *GNMIClient) Capabilities(ctx context.Context) (CapabilitiesRes, error) {
	fail := func(err error) (CapabilitiesRes, error) {
		return CapabilitiesRes{Errors: c.extractErrorDetails(err)}, err
	}
	if err := checkContextCancellation(ctx); err != nil {
		return fail(err)
	}
	if err := c.ensureConnected(ctx); err != nil {
		return fail(err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.operationTimeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target == nil {
		return fail(fmt.Errorf("%w: client not connected", ncx.ErrReadFailed))
	}
	resp, err := c.target.Capabilities(ctx)
	if err != nil {
		c.logger.Error("gNMI Capabilities failed", "target", c.Target, "error", err.Error())
		return fail(fmt.Errorf("capabilities request failed: %w", err))
	}

	caps := make([]string, 0, len(resp.SupportedEncodings))
	for _, enc := range resp.SupportedEncodings {
		caps = append(caps, strings.ToLower(enc.String()))
	}
	c.capabilities = caps
	c.logger.Debug("gNMI Capabilities response",
		"version", resp.GNMIVersion,
		"encodings", len(caps),
		"models", len(resp.SupportedModels))

	return CapabilitiesRes{
		Version:      resp.GNMIVersion,
		Capabilities: caps,
		Models:       resp.SupportedModels,
		OK:           true,
	}, nil
}

// Ping verifies connectivity with a Capabilities request
func (c *GNMIClient) Ping(ctx context.Context) error {
	_, err := c.Capabilities(ctx)
	return err
}
