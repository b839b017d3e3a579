// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [SocketDir] and [SocketPath] place Unix sockets under /tmp:
// sun_path holds 108 bytes and t.TempDir() paths routinely exceed it
// once an endpoint name with a pid and a UUID is appended.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so tests waiting on goroutines never hang forever. They are
// the only helpers allowed to use the wall clock.
//
// Helpers fail the test with t.Fatalf rather than returning errors.
package testutil
