// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package elevate

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/privbridge/lib/testutil"
)

func writeExecutable(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("WriteFile %s: %v", path, err)
	}
}

func TestCheckAcceptsUsableCommand(t *testing.T) {
	server := filepath.Join(t.TempDir(), "server")
	writeExecutable(t, server, "#!/bin/sh\n")

	if err := Check(Command{Tool: "env", ServerProgram: server}, ""); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestCheckFailures(t *testing.T) {
	directory := t.TempDir()
	server := filepath.Join(directory, "server")
	writeExecutable(t, server, "#!/bin/sh\n")
	script := filepath.Join(directory, "server.script")
	if err := os.WriteFile(script, []byte("print 1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cases := []struct {
		name    string
		command Command
	}{
		{"no tool", Command{ServerProgram: server}},
		{"missing tool", Command{Tool: "privbridge-no-such-tool", ServerProgram: server}},
		{"no server", Command{Tool: "env"}},
		{"missing server", Command{Tool: "env", ServerProgram: filepath.Join(directory, "absent")}},
		{"server not executable", Command{Tool: "env", ServerProgram: script}},
		{"missing interpreter", Command{Tool: "env", Interpreter: "privbridge-no-such-interpreter", ServerProgram: script}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Check(tc.command, ""); !errors.Is(err, ErrUnavailable) {
				t.Errorf("Check = %v, want ErrUnavailable", err)
			}
		})
	}
}

func TestCheckScriptNeedNotBeExecutable(t *testing.T) {
	script := filepath.Join(t.TempDir(), "server.sh")
	if err := os.WriteFile(script, []byte("exit 0\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := Check(Command{Tool: "env", Interpreter: "sh", ServerProgram: script}, ""); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestCheckDigestPinning(t *testing.T) {
	server := filepath.Join(t.TempDir(), "server")
	writeExecutable(t, server, "#!/bin/sh\necho original\n")

	digest, err := Digest(server)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if len(digest) != 64 {
		t.Fatalf("digest %q is not 32 hex-encoded bytes", digest)
	}

	command := Command{Tool: "env", ServerProgram: server}
	if err := Check(command, digest); err != nil {
		t.Fatalf("Check with matching digest: %v", err)
	}

	writeExecutable(t, server, "#!/bin/sh\necho swapped\n")
	if err := Check(command, digest); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Check after swap = %v, want ErrUnavailable", err)
	}
}

func TestDigestIsKeyed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	digest, err := Digest(path)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	// Unkeyed BLAKE3 of the empty input.
	const plainEmpty = "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"
	if digest == plainEmpty {
		t.Error("Digest matches unkeyed BLAKE3; domain key not applied")
	}
}

func TestResolvePinsProgramToControllerPath(t *testing.T) {
	trusted := t.TempDir()
	shadow := t.TempDir()
	ran := filepath.Join(t.TempDir(), "ran")
	writeExecutable(t, filepath.Join(trusted, "pb-server"), "#!/bin/sh\necho trusted > "+ran+"\n")
	writeExecutable(t, filepath.Join(shadow, "pb-server"), "#!/bin/sh\necho shadow > "+ran+"\n")
	t.Setenv("PATH", trusted+string(os.PathListSeparator)+os.Getenv("PATH"))

	digest, err := Digest(filepath.Join(trusted, "pb-server"))
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}

	// env with its own PATH behaves like sudo with secure_path: a bare
	// program name would be looked up in shadow.
	command := Command{
		Tool:          "env",
		ToolOptions:   []string{"PATH=" + shadow + ":/usr/bin:/bin"},
		ServerProgram: "pb-server",
		Stdin:         strings.NewReader(""),
		Stderr:        io.Discard,
	}
	resolved, err := command.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := filepath.Join(trusted, "pb-server"); resolved.ServerProgram != want {
		t.Fatalf("Resolve picked %s, want %s", resolved.ServerProgram, want)
	}
	if err := Check(resolved, digest); err != nil {
		t.Fatalf("Check: %v", err)
	}

	process, err := Launch(resolved, "/tmp/pb-unused", 0, discardLogger())
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	testutil.RequireClosed(t, waitDone(process), 5*time.Second, "server exit")

	output, err := os.ReadFile(ran)
	if err != nil {
		t.Fatalf("reading marker: %v", err)
	}
	if got := strings.TrimSpace(string(output)); got != "trusted" {
		t.Errorf("launched program was %q, want the checked one", got)
	}
}

func TestResolveScriptIsAbsolute(t *testing.T) {
	directory := t.TempDir()
	t.Chdir(directory)
	if err := os.WriteFile("server.sh", []byte("exit 0\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	resolved, err := Command{Tool: "env", Interpreter: "sh", ServerProgram: "server.sh"}.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !filepath.IsAbs(resolved.Interpreter) {
		t.Errorf("interpreter %q is not absolute", resolved.Interpreter)
	}
	// t.TempDir may sit under a symlinked directory; compare what the
	// paths point at.
	want, _ := filepath.EvalSymlinks(filepath.Join(directory, "server.sh"))
	got, _ := filepath.EvalSymlinks(resolved.ServerProgram)
	if !filepath.IsAbs(resolved.ServerProgram) || got != want {
		t.Errorf("server program = %q, want %q", resolved.ServerProgram, want)
	}
}

func TestResolveFailures(t *testing.T) {
	for _, command := range []Command{
		{Tool: "env"},
		{Tool: "env", ServerProgram: "privbridge-no-such-server"},
		{Tool: "env", Interpreter: "privbridge-no-such-interpreter", ServerProgram: "server.sh"},
	} {
		if _, err := command.Resolve(); !errors.Is(err, ErrUnavailable) {
			t.Errorf("Resolve(%+v) = %v, want ErrUnavailable", command, err)
		}
	}
}
