// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// maxSocketPath is the longest path that fits in sockaddr_un.sun_path
// on Linux. t.TempDir paths routinely exceed it, so socket tests use
// SocketDir instead.
const maxSocketPath = 107

// SocketDir creates a short-named directory under /tmp for Unix
// sockets. It is removed when the test completes, along with anything
// an elevated helper left inside it.
func SocketDir(t *testing.T) string {
	t.Helper()
	directory, err := os.MkdirTemp("/tmp", "pb-test-*")
	if err != nil {
		t.Fatalf("creating socket directory: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(directory)
	})
	return directory
}

// SocketPath returns name inside a fresh SocketDir. It fails the test
// if the result cannot be bound.
func SocketPath(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(SocketDir(t), name)
	if len(path) > maxSocketPath {
		t.Fatalf("socket path %s is %d bytes, limit is %d", path, len(path), maxSocketPath)
	}
	return path
}
