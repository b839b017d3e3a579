// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package privserver is the body of the elevated server program. The
// controller launches it through the elevation tool as
//
//	<server> <endpoint-path> <invoking-uid>
//
// and it serves the runtime and fs objects on the endpoint until it
// receives SIGTERM or SIGINT. cmd/privbridge-server is a thin wrapper;
// tests re-exec their own binary into Run.
package privserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/privbridge/lib/objects"
	"github.com/bureau-foundation/privbridge/lib/rpc"
)

// ErrUsage reports malformed positional arguments.
var ErrUsage = errors.New("usage: privbridge-server <endpoint-path> <invoking-uid>")

// errParentGone means the elevation tool exited before the server
// started serving.
var errParentGone = errors.New("parent process exited before the server started")

// Config is one server invocation.
type Config struct {
	// SocketPath is the endpoint to bind. Absolute.
	SocketPath string

	// InvokingUID owns the socket once bound, so the unprivileged
	// controller can connect. Ignored unless the server runs as root.
	InvokingUID int

	// Registry defaults to NewRegistry().
	Registry *rpc.Registry

	Logger *slog.Logger
}

// ParseArgs reads the two positional arguments the launcher passes.
func ParseArgs(args []string) (Config, error) {
	if len(args) != 2 {
		return Config{}, fmt.Errorf("%w (got %d arguments)", ErrUsage, len(args))
	}
	if !filepath.IsAbs(args[0]) {
		return Config{}, fmt.Errorf("%w: endpoint path %q is not absolute", ErrUsage, args[0])
	}
	uid, err := strconv.Atoi(args[1])
	if err != nil || uid < 0 {
		return Config{}, fmt.Errorf("%w: invalid uid %q", ErrUsage, args[1])
	}
	return Config{SocketPath: args[0], InvokingUID: uid}, nil
}

// NewRegistry returns the registry the server publishes: the runtime
// object plus the fs object.
func NewRegistry() *rpc.Registry {
	registry := rpc.NewRegistry()
	registry.Register(objects.FSTarget, objects.NewFS())
	return registry
}

// Serve binds config.SocketPath and serves until ctx is cancelled.
func Serve(ctx context.Context, config Config) error {
	registry := config.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	server := rpc.NewServer(config.SocketPath, registry, logger)
	server.OnListen = restrictSocket(config.InvokingUID, logger)
	if _, ok := registry.Lookup(rpc.ControlTarget); !ok {
		registry.Register(rpc.ControlTarget, rpc.NewControlObject(server))
	}

	logger.Info("privileged server starting",
		"pid", os.Getpid(),
		"euid", unix.Geteuid(),
		"invoking_uid", config.InvokingUID,
	)
	return server.Serve(ctx)
}

// Run parses args, installs SIGTERM and SIGINT handling, and serves.
// The server also receives SIGTERM if its parent dies.
func Run(args []string, logger *slog.Logger) error {
	config, err := ParseArgs(args)
	if err != nil {
		return err
	}
	config.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	if err := exitWithParent(); err != nil {
		return err
	}
	return Serve(ctx, config)
}

// restrictSocket limits the socket to its owner and, when running as
// root, hands ownership to the invoking user.
func restrictSocket(uid int, logger *slog.Logger) func(string) error {
	return func(path string) error {
		if err := os.Chmod(path, 0o600); err != nil {
			return err
		}
		if unix.Geteuid() != 0 || uid == 0 {
			return nil
		}
		if err := unix.Lchown(path, uid, -1); err != nil {
			return fmt.Errorf("chown socket to uid %d: %w", uid, err)
		}
		logger.Debug("socket handed to invoking user", "path", path, "uid", uid)
		return nil
	}
}
