// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package elevate starts the privileged server process and tears it
// down again.
//
// The launch line is
//
//	<tool> [tool-options] [<interpreter> [-I<library>]] [options] <server> <endpoint> <uid>
//
// where tool is the elevation mechanism (sudo by default). The
// interpreter is optional: a compiled server program is executed by
// the tool directly. The last two arguments are the only per-instance
// values: the socket path the server must bind and the uid of the
// invoking user, which the server uses to hand the socket back.
//
// [Check] verifies the launch line can work before anything runs.
// [Launch] starts it and reaps the child in the background so it never
// lingers as a zombie. [Cleanup] tears down one instance given only a
// [Record], a value snapshot that holds no reference to whatever
// launched the process, so it can run from a finalizer.
package elevate
