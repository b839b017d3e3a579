// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"log/slog"
	"os"
	"time"

	"github.com/bureau-foundation/privbridge/lib/clock"
	"github.com/bureau-foundation/privbridge/lib/config"
	"github.com/bureau-foundation/privbridge/lib/elevate"
	"github.com/bureau-foundation/privbridge/lib/endpoint"
	"github.com/bureau-foundation/privbridge/lib/readiness"
	"github.com/bureau-foundation/privbridge/lib/rpc"
)

// Options configure a Bridge. The zero value launches
// "sudo privbridge-server" with an endpoint in os.TempDir().
type Options struct {
	// Command is how the server is launched. Tool defaults to "sudo"
	// and ServerProgram to "privbridge-server".
	Command elevate.Command

	// ServerDigest pins the server program's hex BLAKE3 digest. Empty
	// means no pinning.
	ServerDigest string

	// SocketDir holds the endpoint. Default: os.TempDir().
	SocketDir string

	// SocketPrefix starts the endpoint name. Default: "privbridge".
	SocketPrefix string

	// StartupTimeout bounds the wait for the endpoint to appear.
	// Default: one second.
	StartupTimeout time.Duration

	// PollInterval is the pause between endpoint checks. Default: 10ms.
	PollInterval time.Duration

	// Clock drives the readiness wait. Default: clock.Real().
	Clock clock.Clock

	Logger *slog.Logger

	// Features runs after the connection opens. A failure stops the
	// bridge and is returned from Start.
	Features FeatureLoader

	// Check verifies Command before anything is spawned. Default:
	// elevate.Check.
	Check func(command elevate.Command, expectedDigest string) error

	// Service opens the connection. Default: rpc.Shared().
	Service *rpc.Service
}

// OptionsFromConfig maps a loaded configuration to Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Command: elevate.Command{
			Tool:               cfg.Elevation.Tool,
			ToolOptions:        cfg.Elevation.ToolOptions,
			Interpreter:        cfg.Elevation.Interpreter,
			LibraryPath:        cfg.Elevation.LibraryPath,
			InterpreterOptions: cfg.Elevation.InterpreterOptions,
			ServerProgram:      cfg.Elevation.ServerProgram,
			Env:                cfg.Elevation.Env,
		},
		ServerDigest:   cfg.Elevation.ServerDigest,
		SocketDir:      cfg.Endpoint.Directory,
		SocketPrefix:   cfg.Endpoint.Prefix,
		StartupTimeout: time.Duration(cfg.Startup.Timeout),
		PollInterval:   time.Duration(cfg.Startup.PollInterval),
	}
}

func (o Options) withDefaults() Options {
	if o.Command.Tool == "" {
		o.Command.Tool = "sudo"
	}
	if o.Command.ServerProgram == "" {
		o.Command.ServerProgram = "privbridge-server"
	}
	if o.SocketDir == "" {
		o.SocketDir = os.TempDir()
	}
	if o.SocketPrefix == "" {
		o.SocketPrefix = endpoint.DefaultPrefix
	}
	if o.StartupTimeout <= 0 {
		o.StartupTimeout = readiness.DefaultTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = readiness.DefaultInterval
	}
	o.Clock = clock.OrReal(o.Clock)
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Check == nil {
		o.Check = elevate.Check
	}
	if o.Service == nil {
		o.Service = rpc.Shared()
	}
	return o
}
