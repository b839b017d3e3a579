// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package rpc is the remote-object transport between the unprivileged
// controller and the elevated server.
//
// The server side is a [Registry] of named objects served by a
// [Server] on a Unix socket. An object is anything implementing
// [Object]: a single Invoke(ctx, method, args) entry point. Most
// objects are a [Methods] map from method name to function. The
// registry always contains the built-in "runtime" object (ping, echo,
// pid, uid, modules).
//
// The client side is the [Invoker] interface. [Conn] implements it
// over the socket; [Local] implements it directly against a Registry
// in the same process. Callers that hold an Invoker cannot tell which
// one they have: arguments and results pass through CBOR in both
// cases, and errors come back in the same shape.
//
// # Wire protocol
//
// One request per connection, as in every Bureau socket service. The
// client writes a CBOR [Request] {target, method, args, compress},
// half-closes, and reads one CBOR [Response] {ok, error, kind, data,
// compression, size}. Arguments are encoded individually so the server
// can route before it knows their types.
//
// Large results are compressed when the request allows it: zstd for
// text, lz4 for binary, nothing when compression would not help. The
// response names the algorithm and the original size. Requests and
// responses are capped at 64 MiB; a call whose arguments or result
// would not fit fails with kind "too-large" instead of a truncated
// read.
//
// The server binds at "<path>.new", prepares the socket through
// [Server.OnListen], and renames it into place. A socket visible at
// its final path is always connectable and already has its final
// owner and mode. [NewControlObject] gives the peer a "shutdown"
// method that stops the server the same way cancelling its context
// does.
//
// # Errors
//
// Failures of the callee come back as *[RemoteError]. Its Kind keeps
// the semantic class of the original error across the process
// boundary, so errors.Is(err, os.ErrPermission) works on the
// controller for a permission failure inside the server. Failures of
// the connection itself (socket gone, server died mid-call) are
// *[TransportError] and never carry a Kind.
//
// # Process-wide service
//
// [Shared] returns the process's single [Service], created on first
// use and never torn down. It turns endpoint URIs into verified
// connections and keeps count of the ones still open.
package rpc
