// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for privbridge binaries.
// They cover the raw I/O that happens before the structured logger
// exists or after main() has given up:
//
//   - Fatal error reporting to stderr (pre-logger).
//   - Process exit with a code carried by the error.
package process
