// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"errors"
	"fmt"
	"os"

	"github.com/bureau-foundation/privbridge/lib/netutil"
)

var (
	// ErrUnknownTarget is the kind of error returned when no object is
	// registered under the requested target name.
	ErrUnknownTarget = errors.New("unknown target")

	// ErrUnknownMethod is returned when the target exists but has no
	// such method.
	ErrUnknownMethod = errors.New("unknown method")

	// ErrInvalidArgument is returned for missing or undecodable
	// arguments.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrClosed is returned by calls on a Conn after Close.
	ErrClosed = errors.New("connection closed")

	// ErrTooLarge is returned when a request or result would exceed
	// the message size limit.
	ErrTooLarge = errors.New("message too large")
)

// Kind classifies a callee error so its meaning survives the trip
// across the socket.
type Kind string

const (
	KindPermission      Kind = "permission"
	KindNotExist        Kind = "not-exist"
	KindExist           Kind = "exist"
	KindInvalidArgument Kind = "invalid-argument"
	KindUnknownTarget   Kind = "unknown-target"
	KindUnknownMethod   Kind = "unknown-method"
	KindTooLarge        Kind = "too-large"
	KindInternal        Kind = "internal"
)

// kindSentinels maps each kind to the error value errors.Is matches on
// the receiving side.
var kindSentinels = map[Kind]error{
	KindPermission:      os.ErrPermission,
	KindNotExist:        os.ErrNotExist,
	KindExist:           os.ErrExist,
	KindInvalidArgument: ErrInvalidArgument,
	KindUnknownTarget:   ErrUnknownTarget,
	KindUnknownMethod:   ErrUnknownMethod,
	KindTooLarge:        ErrTooLarge,
}

// KindOf classifies err. Errors that already carry a kind (a
// *RemoteError relayed from a nested call) keep it.
func KindOf(err error) Kind {
	var remote *RemoteError
	if errors.As(err, &remote) && remote.Kind != "" {
		return remote.Kind
	}
	// Order matters only for errors wrapping more than one sentinel;
	// the protocol-level kinds are the more specific.
	for _, kind := range []Kind{
		KindUnknownTarget, KindUnknownMethod, KindInvalidArgument,
		KindTooLarge, KindPermission, KindNotExist, KindExist,
	} {
		if errors.Is(err, kindSentinels[kind]) {
			return kind
		}
	}
	return KindInternal
}

// RemoteError is an error raised by the callee inside the server.
type RemoteError struct {
	Target  string
	Method  string
	Kind    Kind
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Target, e.Method, e.Message)
}

// Is matches the sentinel for e.Kind, so callers test remote failures
// exactly as they would local ones.
func (e *RemoteError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && target == sentinel
}

// TransportError reports that the connection to the server could not
// be used: the socket was missing, the server refused or dropped the
// connection, or the response could not be read.
type TransportError struct {
	Op       string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rpc %s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PeerGone reports whether the failure means no server is there any
// more: nothing listening on the endpoint, or the connection dropped
// mid-call. Timeouts and malformed responses are not PeerGone.
func (e *TransportError) PeerGone() bool {
	return netutil.IsConnectionFailure(e.Err)
}

// IsTransport reports whether err is, or wraps, a *TransportError.
func IsTransport(err error) bool {
	var transport *TransportError
	return errors.As(err, &transport)
}
