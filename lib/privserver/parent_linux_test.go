// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package privserver

import (
	"io"
	"os"
	"os/exec"
	"strconv"
	"testing"
	"time"

	"github.com/bureau-foundation/privbridge/lib/testutil"
)

func TestServerExitsWhenParentIsKilled(t *testing.T) {
	executable, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	socketPath := testutil.SocketPath(t, "orphan.sock")

	// sh stands in for sudo: it keeps the server as a child and
	// ignores SIGTERM, so only the parent death signal can stop the
	// server once sh is SIGKILLed.
	parent := exec.Command("sh", "-c", `trap : TERM; "$@"; exit $?`, "sh",
		executable, socketPath, strconv.Itoa(os.Getuid()))
	parent.Env = append(os.Environ(), serverEnvironment+"=1")
	parent.Stdout = io.Discard
	parent.Stderr = io.Discard
	if err := parent.Start(); err != nil {
		t.Fatalf("starting parent: %v", err)
	}
	t.Cleanup(func() {
		parent.Process.Kill()
		parent.Wait()
	})

	waitFor(t, "server socket", func() bool {
		_, err := os.Lstat(socketPath)
		return err == nil
	})

	if err := parent.Process.Kill(); err != nil {
		t.Fatalf("killing parent: %v", err)
	}
	parent.Wait()

	// The server removes its socket on the way out.
	waitFor(t, "server exit after parent death", func() bool {
		_, err := os.Lstat(socketPath)
		return os.IsNotExist(err)
	})
}

func waitFor(t *testing.T, what string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond) //nolint:realclock test polling
	}
}
