// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil classifies socket errors seen by the bridge's RPC
// client.
package netutil

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"
)

// IsExpectedCloseError reports whether err is a normal connection
// termination: EOF, closed connection, broken pipe, or connection
// reset. These show up when the privileged server exits while a call
// is in flight.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}

// IsUnreachable reports whether a dial failed because nothing is
// listening: the socket file is gone (ENOENT) or no process has it
// open (ECONNREFUSED).
func IsUnreachable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrNotExist) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ENOENT || errno == syscall.ECONNREFUSED
	}
	return false
}

// IsConnectionFailure reports whether err means the peer cannot be
// used at all, either because it could not be reached or because the
// connection died underneath a request.
func IsConnectionFailure(err error) bool {
	return IsUnreachable(err) || IsExpectedCloseError(err)
}
