// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge runs a privileged server process through an elevation
// tool (sudo by default) and forwards calls to objects inside it.
//
// A [Bridge] owns one channel endpoint, a Unix socket whose path
// embeds the controller's pid and a random discriminator. Start checks
// that the elevation tool and server program are usable, launches
//
//	sudo [interpreter [-I<lib>] options...] <server> <endpoint> <uid>
//
// waits a bounded time for the endpoint to appear, and opens a
// connection through the process-wide rpc service. Object returns a
// [Proxy] whose calls run in the privileged process. Stop terminates
// the process and removes the endpoint; it is idempotent, and a
// runtime cleanup performs the same teardown if a started Bridge
// becomes unreachable without being stopped.
//
// [Run] is the scoped form: it starts a bridge, runs a function, and
// stops the bridge on every exit path, including panics.
//
// Errors from Start are typed: [*ConfigurationError] before anything
// is spawned, [*LaunchError] when the elevated process exits early,
// [*StartupTimeoutError] when the endpoint never appears, and
// [*rpc.TransportError] when the endpoint appears but does not answer.
// Any failure after the spawn tears the process down before Start
// returns.
package bridge
