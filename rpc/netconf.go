// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package rpc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Juniper/go-netconf/netconf"
	ncx "github.com/netascode/go-ncx"
	"github.com/netascode/go-ncx/schema"
	"github.com/netascode/go-ncx/val"
	"github.com/netascode/go-ncx/vars"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DefaultNetconfPort is used when the target address carries no port
const DefaultNetconfPort = ncx.DefaultNetconfPort

// netconfConn is the part of a NETCONF session a request needs
type netconfConn interface {
	Exec(methods ...netconf.RPCMethod) (*netconf.RPCReply, error)
	Close() error
}

type dialFunc func(addr string, cfg *ssh.ClientConfig) (netconfConn, error)

func dialSSH(addr string, cfg *ssh.ClientConfig) (netconfConn, error) {
	s, err := netconf.DialSSH(addr, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NetconfSession dispatches value trees as NETCONF operations over SSH
//
// The input tree of an operation is rendered as the operation element,
// with xmlns attributes taken from the namespace map, and sent as a raw
// rpc. Reply data comes back as a value tree bound to catalog templates
// where they match.
type NetconfSession struct {
	options

	// Target is the device address as given to NewNetconfSession
	Target string

	mu   sync.Mutex
	conn netconfConn
	dial dialFunc
}

// NewNetconfSession creates a session for addr ("host" or "host:port");
// the SSH connection is opened on the first request
//
// Example:
//
//	sess, err := rpc.NewNetconfSession("192.168.1.1",
//	    rpc.Username("admin"),
//	    rpc.Password("secret"),
//	    rpc.KnownHosts(os.ExpandEnv("$HOME/.ssh/known_hosts")),
//	    rpc.WithNamespace("if", "urn:ietf:params:xml:ns:yang:ietf-interfaces"),
//	)
func NewNetconfSession(addr string, opts ...Option) (*NetconfSession, error) {
	s := &NetconfSession{
		options: defaultOptions(DefaultNetconfPort),
		Target:  addr,
		dial:    dialSSH,
	}
	for _, opt := range opts {
		opt(&s.options)
	}
	if err := s.validateConfig(); err != nil {
		return nil, err
	}
	s.logger.Info("NETCONF session created",
		"target", s.Target,
		"port", s.port,
		"connection", "lazy")
	return s, nil
}

func (s *NetconfSession) validateConfig() error {
	switch {
	case strings.TrimSpace(s.Target) == "":
		return invalidf("target address cannot be empty")
	case s.port < 1 || s.port > 65535:
		return invalidf("invalid port: %d (must be 1-65535)", s.port)
	case s.connectTimeout <= 0:
		return invalidf("connect timeout must be positive, got: %v", s.connectTimeout)
	case s.operationTimeout <= 0:
		return invalidf("operation timeout must be positive, got: %v", s.operationTimeout)
	case s.maxRetries < 0:
		return invalidf("max retries must be non-negative, got: %d", s.maxRetries)
	case s.backoffMin <= 0 || s.backoffMax <= s.backoffMin || s.backoffFactor < 1.0:
		return invalidf("invalid backoff settings")
	case s.username == "":
		return invalidf("NETCONF over SSH needs a username")
	case s.verify && s.knownHosts == "":
		return invalidf("host key verification needs a known_hosts file")
	}
	for _, path := range []string{s.keyFile, s.knownHosts} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%w: file not found: %s", ncx.ErrNotFound, filepath.Base(path))
		}
	}
	if !s.verify {
		s.logger.Warn("SSH host key verification disabled",
			"target", s.Target,
			"recommendation", "use only in testing environments")
	}
	return nil
}

// clientConfig builds the SSH settings: public key login when a key file
// is set, password login when a password is set
func (s *NetconfSession) clientConfig() (*ssh.ClientConfig, error) {
	cfg := &ssh.ClientConfig{
		User:    s.username,
		Timeout: s.connectTimeout,
	}
	if s.keyFile != "" {
		pem, err := os.ReadFile(s.keyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ncx.ErrReadFailed, err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("%w: private key %s: %w", ncx.ErrInvalidValue, filepath.Base(s.keyFile), err)
		}
		cfg.Auth = append(cfg.Auth, ssh.PublicKeys(signer))
	}
	if s.password != "" {
		cfg.Auth = append(cfg.Auth, ssh.Password(s.password))
	}
	if !s.verify {
		cfg.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // explicitly requested
		return cfg, nil
	}
	cb, err := knownhosts.New(s.knownHosts)
	if err != nil {
		return nil, fmt.Errorf("%w: known_hosts: %w", ncx.ErrInvalidValue, err)
	}
	cfg.HostKeyCallback = cb
	return cfg, nil
}

// connect opens the SSH session, retrying with backoff
func (s *NetconfSession) connect(ctx context.Context) (netconfConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return s.conn, nil
	}
	cfg, err := s.clientConfig()
	if err != nil {
		return nil, err
	}
	addr := s.Target
	if !strings.Contains(addr, ":") {
		addr = fmt.Sprintf("%s:%d", addr, s.port)
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		conn, err := s.dial(addr, cfg)
		if err == nil {
			s.conn = conn
			s.logger.Info("NETCONF session established", "target", s.Target)
			return conn, nil
		}
		lastErr = err
		if attempt == s.maxRetries {
			break
		}
		backoff := s.Backoff(attempt)
		s.logger.Warn("NETCONF connect failed, retrying",
			"target", s.Target,
			"attempt", attempt+1,
			"backoff", backoff.String(),
			"error", err.Error())
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ncx.ErrCanceled, ctx.Err())
		}
	}
	return nil, fmt.Errorf("%w: NETCONF connect to %s: %w", ncx.ErrReadFailed, s.Target, lastErr)
}

// Close ends the NETCONF session; the next request opens a new one
func (s *NetconfSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

type execResult struct {
	reply *netconf.RPCReply
	err   error
}

// exec sends body and waits for the reply, the operation timeout or ctx
func (s *NetconfSession) exec(ctx context.Context, body string) (*netconf.RPCReply, error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	done := make(chan execResult, 1)
	go func() {
		reply, err := conn.Exec(netconf.RawMethod(body))
		done <- execResult{reply, err}
	}()
	select {
	case r := <-done:
		return r.reply, r.err
	case <-ctx.Done():
		// the session cannot be resynchronized after an abandoned reply
		_ = s.Close() //nolint:errcheck // best effort
		return nil, fmt.Errorf("%w: %w", ncx.ErrCanceled, ctx.Err())
	}
}

// Dispatch sends op with the children of input and returns the reply tree:
// the reply's data element, an "ok" container for an empty reply, or an
// "rpc-reply" container when the reply holds several elements
func (s *NetconfSession) Dispatch(ctx context.Context, op *schema.Object, input *val.Value) (*val.Value, error) {
	body := encodeRPC(op, input, s.namespaces)
	s.logger.Debug("NETCONF request", "operation", op.Name, "rpc", body)

	reply, err := s.exec(ctx, body)
	if reply != nil && len(reply.Errors) > 0 {
		return nil, rpcErrors(op.Name, reply.Errors)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op.Name, err)
	}
	if op.Name == "close-session" {
		_ = s.Close() //nolint:errcheck // server already ended the session
	}

	top, err := decodeXML(reply.Data)
	if err != nil {
		return nil, err
	}
	var out *val.Value
	switch len(top) {
	case 0:
		out = val.NewContainer("ok")
	case 1:
		out = top[0]
	default:
		out = val.NewContainer("rpc-reply")
		for _, v := range top {
			if err := out.AddChild(v); err != nil {
				return nil, err
			}
		}
	}
	return s.bind(op, out), nil
}

// bind retargets reply data onto templates: the operation's output
// section (whole for a multi-element reply, by name for a single
// element), or the catalog for the members of a data element
func (s *NetconfSession) bind(op *schema.Object, v *val.Value) *val.Value {
	if out := op.Output(); out != nil {
		if v.Name() == "rpc-reply" {
			b, err := vars.Retarget(out, v)
			if err == nil {
				b.SetName(v.Name())
				return b
			}
			s.logger.Debug("reply does not fit output template", "operation", op.Name, "error", err.Error())
		}
		if o := out.FindData(v.Name()); o != nil && o.Kind != schema.KindAnyxml {
			b, err := vars.Retarget(o, v)
			if err == nil {
				return b
			}
			s.logger.Debug("reply does not fit output template", "operation", op.Name, "error", err.Error())
		}
	}
	if s.catalog == nil || v.Name() != "data" {
		return v
	}
	data := val.NewContainer("data")
	for _, ch := range v.Children() {
		member := ch.Clone()
		if o := s.catalog.Find(ch.Name()); o != nil && o.Kind != schema.KindRPC {
			if b, err := vars.Retarget(o, ch); err == nil {
				member = b
			} else {
				s.logger.Debug("reply data does not fit template", "node", ch.Name(), "error", err.Error())
			}
		}
		_ = data.AddChild(member) //nolint:errcheck // generic containers always hold children
	}
	return data
}

// rpcErrors converts rpc-error elements into one error carrying a finding
// per element
func rpcErrors(op string, errs []netconf.RPCError) error {
	e := &ncx.Error{Operation: op}
	for _, re := range errs {
		e.Add(ncx.ErrorModel{
			Status:  statusForTag(re.Tag),
			Name:    re.Path,
			Message: strings.TrimSpace(re.Message),
		})
	}
	return e
}

// statusForTag maps an rpc-error error-tag onto a status
func statusForTag(tag string) ncx.Status {
	switch tag {
	case "in-use":
		return ncx.ErrInUseLocked
	case "lock-denied":
		return ncx.ErrLockDenied
	case "invalid-value", "bad-attribute", "bad-element", "operation-not-supported", "malformed-message":
		return ncx.ErrInvalidValue
	case "too-big", "resource-denied":
		return ncx.ErrResourceDenied
	case "missing-attribute", "missing-element":
		return ncx.ErrMissingInstance
	case "unknown-attribute", "unknown-element", "unknown-namespace":
		return ncx.ErrUnknownParm
	case "access-denied":
		return ncx.ErrReadOnly
	case "data-exists":
		return ncx.ErrDuplicateEntry
	case "data-missing":
		return ncx.ErrNotFound
	default:
		return ncx.ErrInternal
	}
}
