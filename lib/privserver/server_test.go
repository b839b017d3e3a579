// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package privserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/bureau-foundation/privbridge/lib/objects"
	"github.com/bureau-foundation/privbridge/lib/rpc"
	"github.com/bureau-foundation/privbridge/lib/testutil"
)

func TestParseArgs(t *testing.T) {
	config, err := ParseArgs([]string{"/tmp/privbridge-1-x", "1000"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if config.SocketPath != "/tmp/privbridge-1-x" || config.InvokingUID != 1000 {
		t.Errorf("ParseArgs = %+v", config)
	}

	for _, args := range [][]string{
		nil,
		{"/tmp/x"},
		{"/tmp/x", "1000", "extra"},
		{"relative", "1000"},
		{"/tmp/x", "root"},
		{"/tmp/x", "-1"},
	} {
		if _, err := ParseArgs(args); !errors.Is(err, ErrUsage) {
			t.Errorf("ParseArgs(%q) = %v, want ErrUsage", args, err)
		}
	}
}

func TestRegistryTargets(t *testing.T) {
	registry := NewRegistry()
	for _, target := range []string{rpc.RuntimeTarget, objects.FSTarget} {
		if _, ok := registry.Lookup(target); !ok {
			t.Errorf("registry missing %q", target)
		}
	}
}

func TestServeRestrictsSocket(t *testing.T) {
	socketPath := testutil.SocketPath(t, "server.sock")
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		errs <- Serve(ctx, Config{
			SocketPath:  socketPath,
			InvokingUID: os.Getuid(),
			Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		})
	}()

	conn := rpc.NewConn(socketPath)
	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := conn.Ping(context.Background()); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("server never answered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	info, err := os.Lstat(socketPath)
	if err != nil {
		t.Fatalf("Lstat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("socket mode = %v, want 0600", info.Mode().Perm())
	}

	var pid int
	if err := conn.Invoke(context.Background(), rpc.RuntimeTarget, "pid", &pid); err != nil {
		t.Fatalf("pid: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}

	cancel()
	if err := testutil.RequireReceive(t, errs, 5*time.Second, "server exit"); err != nil {
		t.Fatalf("Serve: %v", err)
	}
}

func TestServeStopsOnControlShutdown(t *testing.T) {
	socketPath := testutil.SocketPath(t, "control.sock")
	errs := make(chan error, 1)
	go func() {
		errs <- Serve(context.Background(), Config{
			SocketPath:  socketPath,
			InvokingUID: os.Getuid(),
			Logger:      discardLogger(),
		})
	}()

	conn := rpc.NewConn(socketPath)
	deadline := time.Now().Add(5 * time.Second)
	for conn.Ping(context.Background()) != nil {
		if time.Now().After(deadline) {
			t.Fatal("server never answered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := conn.Invoke(context.Background(), rpc.ControlTarget, "shutdown", nil); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := testutil.RequireReceive(t, errs, 5*time.Second, "server exit"); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if _, err := os.Lstat(socketPath); !os.IsNotExist(err) {
		t.Errorf("socket still present after shutdown: %v", err)
	}
}
