// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	ncx "github.com/netascode/go-ncx"
	gnmipb "github.com/openconfig/gnmi/proto/gnmi"
	"github.com/openconfig/gnmic/pkg/api"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Request limits
const (
	// MaxValueSize bounds a single Set value
	MaxValueSize = 10 * 1024 * 1024

	// MaxPathLength bounds a gNMI path string
	MaxPathLength = 1024
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ncx.ErrInvalidValue, fmt.Sprintf(format, args...))
}

func validatePaths(paths []string) error {
	if len(paths) == 0 {
		return invalidf("paths cannot be empty")
	}
	for i, p := range paths {
		switch {
		case p == "":
			return invalidf("path cannot be empty (at index %d)", i)
		case len(p) > MaxPathLength:
			return invalidf("path at index %d exceeds maximum length of %d characters: %s", i, MaxPathLength, truncatePath(p))
		case !isValidGNMIPath(p):
			return invalidf("path at index %d must start with '/' or be module-qualified (module:path): %s", i, p)
		}
		if err := checkPathSecurity(p); err != nil {
			return fmt.Errorf("path at index %d is invalid: %w", i, err)
		}
	}
	return nil
}

func validateValue(value, encoding string) error {
	if len(value) > MaxValueSize {
		return invalidf("value size exceeds maximum of %d bytes (got %d bytes)", MaxValueSize, len(value))
	}
	if encoding == EncodingJSON || encoding == EncodingJSONIETF || encoding == "" {
		if strings.TrimSpace(value) != "" && !json.Valid([]byte(value)) {
			return invalidf("invalid JSON syntax")
		}
	}
	return nil
}

func validateSetOperations(ops []SetOperation) error {
	if len(ops) == 0 {
		return invalidf("operations cannot be empty")
	}
	for i, op := range ops {
		switch op.OperationType {
		case OperationUpdate, OperationReplace, OperationDelete:
		case "":
			return invalidf("operation type cannot be empty (at index %d)", i)
		default:
			return invalidf("operation type invalid: %s (at index %d)", op.OperationType, i)
		}
		if err := validatePaths([]string{op.Path}); err != nil {
			return fmt.Errorf("operation at index %d: %w", i, err)
		}
		if op.OperationType == OperationDelete {
			continue
		}
		enc := op.Encoding
		if enc == "" {
			enc = EncodingJSONIETF
		}
		if err := ValidateEncoding(enc); err != nil {
			return fmt.Errorf("operation at index %d: %w", i, err)
		}
		if err := validateValue(op.Value, enc); err != nil {
			return fmt.Errorf("operation at index %d: %w", i, err)
		}
	}
	return nil
}

// checkPathSecurity rejects null bytes and "/../" segments
func checkPathSecurity(path string) error {
	if i := strings.IndexByte(path, 0); i >= 0 {
		return invalidf("path contains null byte at position %d", i)
	}
	if i := strings.Index(path, "/../"); i >= 0 {
		return invalidf("path contains suspicious traversal pattern '/../' at position %d", i)
	}
	return nil
}

func truncatePath(path string) string {
	if len(path) <= 100 {
		return path
	}
	return path[:100] + "..."
}

// isValidGNMIPath accepts "/a/b" and "module:/a/b"
func isValidGNMIPath(path string) bool {
	if path == "" {
		return false
	}
	if path[0] == '/' {
		return true
	}
	i := strings.IndexByte(path, ':')
	return i > 0 && i < len(path)-1 && path[i+1] == '/'
}

// Get retrieves the data at paths
//
// The encoding defaults to json_ietf. Each attempt is bounded by the
// request timeout, an existing context deadline, or the client operation
// timeout, in that order.
//
// Example:
//
//	res, err := client.Get(ctx, []string{"/if:interfaces"}, rpc.ConfigOnly())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.GetValue("notification.0.update.#"))
func (c *GNMIClient) Get(ctx context.Context, paths []string, mods ...func(*Req)) (GetRes, error) {
	req := &Req{Encoding: EncodingJSONIETF}
	for _, mod := range mods {
		mod(req)
	}
	fail := func(err error) (GetRes, error) {
		return GetRes{Errors: c.extractErrorDetails(err)}, err
	}
	if err := validatePaths(paths); err != nil {
		return fail(fmt.Errorf("get: %w", err))
	}
	if err := ValidateEncoding(req.Encoding); err != nil {
		return fail(fmt.Errorf("get: %w", err))
	}
	if err := checkContextCancellation(ctx); err != nil {
		return fail(err)
	}
	if err := c.ensureConnected(ctx); err != nil {
		return fail(fmt.Errorf("get: connection failed: %w", err))
	}

	gopts := []api.GNMIOption{api.Encoding(req.Encoding)}
	if req.DataType != "" {
		gopts = append(gopts, api.DataType(req.DataType))
	}
	for _, p := range paths {
		gopts = append(gopts, api.Path(p))
	}
	getReq, err := api.NewGetRequest(gopts...)
	if err != nil {
		return fail(fmt.Errorf("get: failed to create request: %w", invalidf("%s", err)))
	}
	c.logger.Debug("gNMI Get request",
		"target", c.Target,
		"paths", strings.Join(paths, " "),
		"encoding", req.Encoding)

	var resp *gnmipb.GetResponse
	details, err := c.retry(ctx, "get", req, func(ctx context.Context, t transport) error {
		r, err := t.Get(ctx, getReq)
		resp = r
		return err
	})
	if err != nil {
		return GetRes{Errors: details}, err
	}

	for i, n := range resp.GetNotification() {
		c.logger.Debug("gNMI Get notification",
			"index", i,
			"updates", len(n.GetUpdate()),
			"notification", c.prepareJSONForLogging(marshalProto(n)))
	}
	return GetRes{
		Notifications: resp.GetNotification(),
		Timestamp:     time.Now().UnixNano(),
		OK:            true,
	}, nil
}

// Set applies ops in one transaction
//
// Example:
//
//	res, err := client.Set(ctx, []rpc.SetOperation{
//	    rpc.Update("/if:interfaces/interface[name=eth0]", `{"mtu": 9000}`),
//	    rpc.Delete("/if:interfaces/interface[name=eth1]"),
//	})
func (c *GNMIClient) Set(ctx context.Context, ops []SetOperation, mods ...func(*Req)) (SetRes, error) {
	req := &Req{}
	for _, mod := range mods {
		mod(req)
	}
	fail := func(err error) (SetRes, error) {
		return SetRes{Errors: c.extractErrorDetails(err)}, err
	}
	if err := validateSetOperations(ops); err != nil {
		return fail(fmt.Errorf("set: %w", err))
	}
	if err := checkContextCancellation(ctx); err != nil {
		return fail(err)
	}
	if err := c.ensureConnected(ctx); err != nil {
		return fail(fmt.Errorf("set: connection failed: %w", err))
	}

	var gopts []api.GNMIOption
	for _, op := range ops {
		enc := op.Encoding
		if enc == "" {
			enc = EncodingJSONIETF
		}
		switch op.OperationType {
		case OperationUpdate:
			gopts = append(gopts, api.Update(api.Path(op.Path), api.Value(op.Value, enc)))
		case OperationReplace:
			gopts = append(gopts, api.Replace(api.Path(op.Path), api.Value(op.Value, enc)))
		case OperationDelete:
			gopts = append(gopts, api.Delete(op.Path))
		}
		c.logger.Debug("gNMI Set operation",
			"operation", string(op.OperationType),
			"path", op.Path,
			"value", c.prepareJSONForLogging(op.Value))
	}
	setReq, err := api.NewSetRequest(gopts...)
	if err != nil {
		return fail(fmt.Errorf("set: failed to create request: %w", invalidf("%s", err)))
	}

	var resp *gnmipb.SetResponse
	details, err := c.retry(ctx, "set", req, func(ctx context.Context, t transport) error {
		r, err := t.Set(ctx, setReq)
		resp = r
		return err
	})
	if err != nil {
		return SetRes{Errors: details}, err
	}
	c.logger.Debug("gNMI Set response",
		"target", c.Target,
		"results", len(resp.GetResponse()))
	return SetRes{
		Response:  resp,
		Timestamp: time.Now().UnixNano(),
		OK:        true,
	}, nil
}

// retry runs call until it succeeds, fails permanently, or runs out of
// attempts or time
func (c *GNMIClient) retry(ctx context.Context, op string, req *Req, call func(context.Context, transport) error) ([]ncx.ErrorModel, error) {
	ctx, cancel := context.WithTimeout(ctx, c.calculateTotalTimeout())
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := checkContextCancellation(ctx); err != nil {
			return c.extractErrorDetails(err), fmt.Errorf("%s: %w", op, err)
		}
		t, err := c.active()
		if err != nil {
			return c.extractErrorDetails(err), fmt.Errorf("%s: %w", op, err)
		}

		attemptCtx, attemptCancel := c.createAttemptContext(ctx, req)
		lastErr = call(attemptCtx, t)
		attemptCancel()
		if lastErr == nil {
			return nil, nil
		}
		if !c.checkTransientError(lastErr) || attempt == c.maxRetries {
			break
		}

		if c.isTransportError(lastErr) {
			if err := c.reconnect(ctx); err != nil {
				return c.extractErrorDetails(err), fmt.Errorf("%s: reconnection failed: %w", op, err)
			}
		}
		backoff := c.Backoff(attempt)
		c.logger.Warn("transient error, retrying",
			"operation", op,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"backoff", backoff.String(),
			"error", lastErr.Error())
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return c.extractErrorDetails(ctx.Err()), fmt.Errorf("%s: context canceled during backoff: %w", op, ctx.Err())
		}
	}

	c.logger.Error("gNMI request failed",
		"operation", op,
		"target", c.Target,
		"error", lastErr.Error())
	return c.extractErrorDetails(lastErr), fmt.Errorf("%s: request failed: %w", op, lastErr)
}

// calculateTotalTimeout is the operation timeout plus every backoff delay
func (c *GNMIClient) calculateTotalTimeout() time.Duration {
	total := c.operationTimeout
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		total += c.Backoff(attempt)
	}
	return total
}

func checkContextCancellation(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// createAttemptContext bounds one attempt by the request timeout, the
// context deadline, or the client operation timeout, in that order
func (c *GNMIClient) createAttemptContext(ctx context.Context, req *Req) (context.Context, context.CancelFunc) {
	if req.Timeout > 0 {
		if req.Timeout < time.Second {
			c.logger.Warn("request timeout is very short", "timeout", req.Timeout.String())
		}
		return context.WithTimeout(ctx, req.Timeout)
	}
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.operationTimeout)
}

// extractErrorDetails turns err into findings carrying its gRPC code
func (c *GNMIClient) extractErrorDetails(err error) []ncx.ErrorModel {
	if err == nil {
		return nil
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return []ncx.ErrorModel{{
			Code:    uint32(st.Code()),
			Status:  statusForCode(st.Code()),
			Message: st.Message(),
		}}
	}
	s := ncx.StatusOf(err)
	return []ncx.ErrorModel{{
		Code:    uint32(s.Code()),
		Status:  s,
		Message: err.Error(),
	}}
}

// statusForCode maps a gRPC code reported by a server onto a status
func statusForCode(code codes.Code) ncx.Status {
	switch code {
	case codes.OK:
		return ncx.StatusOK
	case codes.InvalidArgument, codes.OutOfRange:
		return ncx.ErrInvalidValue
	case codes.NotFound:
		return ncx.ErrNotFound
	case codes.AlreadyExists:
		return ncx.ErrDuplicateEntry
	case codes.PermissionDenied, codes.Unauthenticated:
		return ncx.ErrReadOnly
	case codes.Aborted:
		return ncx.ErrInUseLocked
	case codes.ResourceExhausted:
		return ncx.ErrResourceDenied
	case codes.FailedPrecondition:
		return ncx.ErrMissingInstance
	case codes.Canceled, codes.DeadlineExceeded:
		return ncx.ErrCanceled
	case codes.Unavailable:
		return ncx.ErrReadFailed
	default:
		return ncx.ErrInternal
	}
}
