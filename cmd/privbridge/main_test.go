// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/bureau-foundation/privbridge/lib/elevate"
	"github.com/bureau-foundation/privbridge/lib/privserver"
	"github.com/bureau-foundation/privbridge/lib/testutil"
)

const serverEnvironment = "PRIVBRIDGE_TEST_SERVER"

func TestMain(m *testing.M) {
	if os.Getenv(serverEnvironment) != "" {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		if err := privserver.Run(os.Args[1:], logger); err != nil {
			fmt.Fprintf(os.Stderr, "test server: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// writeTestConfig points the CLI at this test binary, launched through
// env instead of sudo.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	executable, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	content := fmt.Sprintf(`
elevation:
  tool: env
  server_program: %s
  env: ["%s=1"]
endpoint:
  directory: %s
startup:
  timeout: 10s
`, executable, serverEnvironment, testutil.SocketDir(t))
	path := filepath.Join(t.TempDir(), "privbridge.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	err := run(args, strings.NewReader(stdin), &stdout)
	return stdout.String(), err
}

func TestEchoThroughServer(t *testing.T) {
	configPath := writeTestConfig(t)
	output, err := runCLI(t, "", "--config", configPath, "echo", "hello", "world")
	if err != nil {
		t.Fatalf("echo: %v", err)
	}
	if output != "hello world\n" {
		t.Errorf("echo printed %q", output)
	}
}

func TestWriteThenCat(t *testing.T) {
	configPath := writeTestConfig(t)
	target := filepath.Join(t.TempDir(), "resolv.conf")

	if _, err := runCLI(t, "nameserver 127.0.0.1\n", "--config", configPath, "write", target, "0600"); err != nil {
		t.Fatalf("write: %v", err)
	}
	info, err := os.Stat(target)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	output, err := runCLI(t, "", "--config", configPath, "cat", target)
	if err != nil {
		t.Fatalf("cat: %v", err)
	}
	if output != "nameserver 127.0.0.1\n" {
		t.Errorf("cat printed %q", output)
	}
}

func TestCallThroughServer(t *testing.T) {
	configPath := writeTestConfig(t)
	output, err := runCLI(t, "", "--config", configPath, "call", "runtime", "echo", `[
		// a map survives the round trip
		{"answer": 42},
	]`)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !strings.Contains(output, `"answer": 42`) {
		t.Errorf("call printed %q", output)
	}
}

func TestRemoteFailureIsReturned(t *testing.T) {
	configPath := writeTestConfig(t)
	_, err := runCLI(t, "", "--config", configPath, "cat", filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("cat absent = %v, want not-exist", err)
	}
}

func TestDigestRunsLocally(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	want, err := elevate.Digest(path)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	// No config and no elevation tool are needed.
	output, err := runCLI(t, "", "--config", "/nonexistent/privbridge.yaml", "digest", path)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if output != want+"\n" {
		t.Errorf("digest printed %q, want %q", output, want)
	}
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no command", nil, "no command given"},
		{"unknown command", []string{"reboot"}, `unknown command "reboot"`},
		{"missing argument", []string{"cat"}, "usage: privbridge cat"},
		{"extra argument", []string{"ping", "extra"}, "usage: privbridge ping"},
		{"bad flag", []string{"--no-such-flag", "ping"}, "unknown flag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, "", tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("run(%q) = %v, want error containing %q", tt.args, err, tt.want)
			}
		})
	}
}

func TestInvalidConfigIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "privbridge.yaml")
	if err := os.WriteFile(path, []byte("endpoint:\n  directory: relative\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := runCLI(t, "", "--config", path, "ping")
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Fatalf("run = %v, want invalid configuration", err)
	}
}

func TestParseCallArgs(t *testing.T) {
	args, err := parseCallArgs(`[
		"/etc/hosts", // path
		420,
		1.5,
		[1, 2],
	]`)
	if err != nil {
		t.Fatalf("parseCallArgs: %v", err)
	}
	want := []any{"/etc/hosts", int64(420), 1.5, []any{int64(1), int64(2)}}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("parseCallArgs = %#v, want %#v", args, want)
	}

	if _, err := parseCallArgs(`{"not": "an array"}`); err == nil {
		t.Error("parseCallArgs accepted an object")
	}
}

func TestParseMode(t *testing.T) {
	if mode, err := parseMode("0640"); err != nil || mode != 0o640 {
		t.Errorf("parseMode(0640) = %o, %v", mode, err)
	}
	for _, bad := range []string{"rw-r--r--", "999", "77777"} {
		if _, err := parseMode(bad); err == nil {
			t.Errorf("parseMode(%q) succeeded", bad)
		}
	}
}
