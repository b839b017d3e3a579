// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/privbridge/bridge"
	"github.com/bureau-foundation/privbridge/lib/elevate"
	"github.com/bureau-foundation/privbridge/lib/objects"
	"github.com/bureau-foundation/privbridge/lib/rpc"
)

// command is one privbridge subcommand. Exactly one of local and
// remote is set.
type command struct {
	name    string
	usage   string
	summary string
	minArgs int
	maxArgs int // -1 for unbounded

	local  func(args []string, stdout output) error
	remote func(ctx context.Context, b *bridge.Bridge, args []string, stdin io.Reader, stdout output) error
}

func (c command) checkArgs(args []string) error {
	if len(args) < c.minArgs || (c.maxArgs >= 0 && len(args) > c.maxArgs) {
		return fmt.Errorf("usage: privbridge %s %s", c.name, c.usage)
	}
	return nil
}

var commands = []command{
	{name: "ping", summary: "start the server and report its pid and uid", maxArgs: 0, remote: runPing},
	{name: "echo", usage: "<text>...", summary: "round-trip text through the server", minArgs: 1, maxArgs: -1, remote: runEcho},
	{name: "cat", usage: "<path>", summary: "print a file read with privilege", minArgs: 1, maxArgs: 1, remote: runCat},
	{name: "write", usage: "<path> [mode]", summary: "replace a file with stdin (mode defaults to 0644)", minArgs: 1, maxArgs: 2, remote: runWrite},
	{name: "ls", usage: "<path>", summary: "list a directory", minArgs: 1, maxArgs: 1, remote: runList},
	{name: "stat", usage: "<path>", summary: "print file metadata as JSON", minArgs: 1, maxArgs: 1, remote: runStat},
	{name: "call", usage: "<target> <method> [json-args]", summary: "call any method; args are a JSON array (comments allowed)", minArgs: 2, maxArgs: 3, remote: runCall},
	{name: "digest", usage: "<path>", summary: "print the digest to pin in elevation.server_digest", minArgs: 1, maxArgs: 1, local: runDigest},
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func runPing(ctx context.Context, b *bridge.Bridge, _ []string, _ io.Reader, stdout output) error {
	runtimeObject, err := b.Object(rpc.RuntimeTarget)
	if err != nil {
		return err
	}
	reply, err := bridge.Call[string](ctx, runtimeObject, "ping")
	if err != nil {
		return err
	}
	pid, err := bridge.Call[int](ctx, runtimeObject, "pid")
	if err != nil {
		return err
	}
	uid, err := bridge.Call[int](ctx, runtimeObject, "uid")
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s (server pid %d, uid %d)\n", reply, pid, uid)
	return nil
}

func runEcho(ctx context.Context, b *bridge.Bridge, args []string, _ io.Reader, stdout output) error {
	runtimeObject, err := b.Object(rpc.RuntimeTarget)
	if err != nil {
		return err
	}
	reply, err := bridge.Call[string](ctx, runtimeObject, "echo", strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, reply)
	return nil
}

func runCat(ctx context.Context, b *bridge.Bridge, args []string, _ io.Reader, stdout output) error {
	fs, err := b.Object(objects.FSTarget)
	if err != nil {
		return err
	}
	content, err := bridge.Call[[]byte](ctx, fs, "read", absolute(args[0]))
	if err != nil {
		return err
	}
	_, err = stdout.Write(content)
	return err
}

func runWrite(ctx context.Context, b *bridge.Bridge, args []string, stdin io.Reader, _ output) error {
	mode := uint32(0o644)
	if len(args) == 2 {
		parsed, err := parseMode(args[1])
		if err != nil {
			return err
		}
		mode = parsed
	}
	content, err := io.ReadAll(stdin)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	fs, err := b.Object(objects.FSTarget)
	if err != nil {
		return err
	}
	return fs.Call(ctx, "write", nil, absolute(args[0]), content, mode)
}

func runList(ctx context.Context, b *bridge.Bridge, args []string, _ io.Reader, stdout output) error {
	fs, err := b.Object(objects.FSTarget)
	if err != nil {
		return err
	}
	names, err := bridge.Call[[]string](ctx, fs, "list", absolute(args[0]))
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(stdout, name)
	}
	return nil
}

func runStat(ctx context.Context, b *bridge.Bridge, args []string, _ io.Reader, stdout output) error {
	fs, err := b.Object(objects.FSTarget)
	if err != nil {
		return err
	}
	info, err := bridge.Call[objects.FileInfo](ctx, fs, "stat", absolute(args[0]))
	if err != nil {
		return err
	}
	return stdout.writeJSON(info)
}

func runCall(ctx context.Context, b *bridge.Bridge, args []string, _ io.Reader, stdout output) error {
	var callArgs []any
	if len(args) == 3 {
		parsed, err := parseCallArgs(args[2])
		if err != nil {
			return err
		}
		callArgs = parsed
	}
	proxy, err := b.Object(args[0])
	if err != nil {
		return err
	}
	var result any
	if err := proxy.Call(ctx, args[1], &result, callArgs...); err != nil {
		return err
	}
	return stdout.writeJSON(result)
}

func runDigest(args []string, stdout output) error {
	digest, err := elevate.Digest(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, digest)
	return nil
}

// parseCallArgs reads a JSON array, allowing comments and trailing
// commas. Numbers that are whole become int64 so methods expecting
// integers can decode them.
func parseCallArgs(text string) ([]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON([]byte(text))))
	decoder.UseNumber()
	var raw []any
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("call arguments must be a JSON array: %w", err)
	}
	for i, value := range raw {
		raw[i] = normalizeNumbers(value)
	}
	return raw, nil
}

func normalizeNumbers(value any) any {
	switch typed := value.(type) {
	case json.Number:
		if integer, err := typed.Int64(); err == nil {
			return integer
		}
		float, _ := typed.Float64()
		return float
	case []any:
		for i := range typed {
			typed[i] = normalizeNumbers(typed[i])
		}
		return typed
	case map[string]any:
		for key := range typed {
			typed[key] = normalizeNumbers(typed[key])
		}
		return typed
	default:
		return value
	}
}

func parseMode(text string) (uint32, error) {
	mode, err := strconv.ParseUint(text, 8, 32)
	if err != nil || mode > 0o7777 {
		return 0, fmt.Errorf("invalid mode %q: want octal like 0644", text)
	}
	return uint32(mode), nil
}

// absolute resolves path against the controller's working directory;
// the server's may differ.
func absolute(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if resolved, err := filepath.Abs(path); err == nil {
		return resolved
	}
	return path
}
