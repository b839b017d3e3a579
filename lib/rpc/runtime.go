// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"os"
	"runtime/debug"
	"sort"
)

// Module identifies one Go module linked into a binary.
type Module struct {
	Path    string `json:"path"`
	Version string `json:"version"`
}

// ControlTarget is the object through which the controller asks the
// server to exit.
const ControlTarget = "control"

// NewControlObject returns the control object for server:
//
//	shutdown      -> nil; Serve returns once the reply is written
func NewControlObject(server *Server) Methods {
	return Methods{
		"shutdown": func(context.Context, Args) (any, error) {
			server.logger.Info("shutdown requested by controller")
			server.Shutdown()
			return nil, nil
		},
	}
}

// NewRuntimeObject returns the built-in object every registry exposes:
//
//	ping          -> "pong"
//	echo(value)   -> value
//	pid           -> server process id
//	uid           -> server effective uid
//	modules       -> []Module linked into the server binary
func NewRuntimeObject() Methods {
	return Methods{
		"ping": func(context.Context, Args) (any, error) {
			return "pong", nil
		},
		"echo": func(_ context.Context, args Args) (any, error) {
			if err := args.Expect(1); err != nil {
				return nil, err
			}
			var value any
			if err := args.Decode(0, &value); err != nil {
				return nil, err
			}
			return value, nil
		},
		"pid": func(context.Context, Args) (any, error) {
			return os.Getpid(), nil
		},
		"uid": func(context.Context, Args) (any, error) {
			return os.Geteuid(), nil
		},
		"modules": func(context.Context, Args) (any, error) {
			return BuildModules(), nil
		},
	}
}

// BuildModules lists the main module and every dependency linked into
// the running binary, sorted by path. Empty when build information is
// unavailable (binaries built without module support).
func BuildModules() []Module {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	modules := make([]Module, 0, len(info.Deps)+1)
	if info.Main.Path != "" {
		modules = append(modules, Module{Path: info.Main.Path, Version: info.Main.Version})
	}
	for _, dependency := range info.Deps {
		if dependency.Replace != nil {
			dependency = dependency.Replace
		}
		modules = append(modules, Module{Path: dependency.Path, Version: dependency.Version})
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].Path < modules[j].Path })
	return modules
}
