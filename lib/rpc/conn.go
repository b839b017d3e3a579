// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/privbridge/lib/codec"
)

// dialTimeout covers only the connect phase of a call.
const dialTimeout = 5 * time.Second

// Conn is a client for one server socket. It holds no open file
// descriptor between calls: each Invoke dials, sends one request,
// reads one response, and hangs up. Many goroutines may share a Conn;
// their calls proceed on independent connections.
type Conn struct {
	socketPath string
	closed     atomic.Bool
	onClose    func(*Conn)
}

// NewConn returns a client for the socket at socketPath. Nothing is
// dialed until the first call.
func NewConn(socketPath string) *Conn {
	return &Conn{socketPath: socketPath}
}

// SocketPath returns the path the client dials.
func (c *Conn) SocketPath() string { return c.socketPath }

// Close marks the client unusable. Later calls fail with a
// *TransportError wrapping ErrClosed. Calls already in flight are not
// interrupted. Close is idempotent.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if c.onClose != nil {
		c.onClose(c)
	}
	return nil
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool { return c.closed.Load() }

// Ping calls runtime.ping and verifies the answer.
func (c *Conn) Ping(ctx context.Context) error {
	var pong string
	if err := c.Invoke(ctx, RuntimeTarget, "ping", &pong); err != nil {
		return err
	}
	if pong != "pong" {
		return fmt.Errorf("unexpected ping reply %q from %s", pong, c.socketPath)
	}
	return nil
}

// Invoke implements Invoker. Callee failures are returned as
// *RemoteError, connection failures as *TransportError. Cancelling ctx
// abandons the call; the server may still complete it.
func (c *Conn) Invoke(ctx context.Context, target, method string, result any, args ...any) error {
	if c.closed.Load() {
		return &TransportError{Op: "call", Endpoint: c.socketPath, Err: ErrClosed}
	}

	encoded, err := EncodeArgs(args...)
	if err != nil {
		return fmt.Errorf("calling %s.%s: %w", target, method, err)
	}
	if size := encoded.size(); size > maxPayloadSize {
		return fmt.Errorf("calling %s.%s: %w: arguments of %d bytes exceed the %d-byte limit",
			target, method, ErrTooLarge, size, maxPayloadSize)
	}

	response, err := c.send(ctx, Request{Target: target, Method: method, Args: encoded, Compress: true})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("calling %s.%s: %w", target, method, ctx.Err())
		}
		return err
	}

	if !response.OK {
		kind := response.Kind
		if kind == "" {
			kind = KindInternal
		}
		return &RemoteError{Target: target, Method: method, Kind: kind, Message: response.Error}
	}

	if result != nil && len(response.Data) > 0 {
		data, err := response.payload()
		if err != nil {
			return &TransportError{Op: "read", Endpoint: c.socketPath, Err: err}
		}
		if err := codec.Unmarshal(data, result); err != nil {
			return fmt.Errorf("decoding result of %s.%s: %w", target, method, err)
		}
	}
	return nil
}

func (c *Conn) send(ctx context.Context, request Request) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, &TransportError{Op: "dial", Endpoint: c.socketPath, Err: err}
	}
	defer conn.Close()

	// A blocked read does not observe ctx on its own.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, &TransportError{Op: "write", Endpoint: c.socketPath, Err: err}
	}

	// CBOR is self-delimiting; the half-close just lets the server see
	// a clean EOF.
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}
	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxMessageSize)).Decode(&response); err != nil {
		return nil, &TransportError{Op: "read", Endpoint: c.socketPath, Err: err}
	}
	return &response, nil
}
