// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/bureau-foundation/privbridge/lib/elevate"
	"github.com/bureau-foundation/privbridge/lib/endpoint"
	"github.com/bureau-foundation/privbridge/lib/readiness"
	"github.com/bureau-foundation/privbridge/lib/rpc"
)

// Bridge is one privileged server and the connection to it. A Bridge
// is stopped when created, running between a successful Start and
// Stop, and can be started again after Stop.
type Bridge struct {
	options Options
	address endpoint.Address
	logger  *slog.Logger

	mu      sync.Mutex
	process *elevate.Process
	record  elevate.Record
	conn    *rpc.Conn
	cleanup runtime.Cleanup
}

// finalizerState is what the runtime cleanup needs. It must not refer
// to the Bridge, or the Bridge would never become unreachable.
type finalizerState struct {
	record elevate.Record
	logger *slog.Logger
}

// New returns a stopped Bridge. It computes the endpoint address and
// does nothing else.
func New(options Options) (*Bridge, error) {
	options = options.withDefaults()
	address, err := endpoint.New(options.SocketDir, options.SocketPrefix)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	return &Bridge{
		options: options,
		address: address,
		logger:  options.Logger.With("endpoint", address.Path()),
	}, nil
}

// Address returns the bridge's channel endpoint.
func (b *Bridge) Address() endpoint.Address { return b.address }

// PID returns the elevated process id, or 0 when stopped.
func (b *Bridge) PID() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.process == nil {
		return 0
	}
	return b.process.PID()
}

// Start launches the privileged server and connects to it. It blocks
// until the endpoint appears (bounded by StartupTimeout) and returns
// the receiver so calls can be chained.
//
// Any failure after the process is spawned terminates it and removes
// the endpoint before Start returns, so a failed Start needs no
// follow-up.
func (b *Bridge) Start(ctx context.Context) (*Bridge, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.process != nil {
		if b.runningLocked() {
			return b, ErrProcessAlreadyExists
		}
		// Died without Stop; clear the leftovers before relaunching.
		b.stopLocked()
	}

	// Check and Launch see the same absolute paths, so the file that
	// was verified is the file that runs.
	command, err := b.options.Command.Resolve()
	if err != nil {
		return b, &ConfigurationError{Err: err}
	}
	if err := b.options.Check(command, b.options.ServerDigest); err != nil {
		return b, &ConfigurationError{Err: err}
	}
	if b.address.Exists() {
		return b, fmt.Errorf("%w: endpoint %s is already present", ErrProcessExists, b.address.Path())
	}

	process, err := elevate.Launch(command, b.address.Path(), os.Getuid(), b.logger)
	if err != nil {
		return b, fmt.Errorf("%w: %w", ErrProcessNotFound, err)
	}
	record := process.Record(b.address.Path(), command.Tool)
	cleanup := runtime.AddCleanup(b, finalize, finalizerState{record: record, logger: b.logger})

	fail := func(err error) (*Bridge, error) {
		cleanup.Stop()
		if cleanupErr := elevate.Cleanup(record); cleanupErr != nil {
			b.logger.Warn("cleanup after failed start", "pid", record.PID, "error", cleanupErr)
		}
		return b, err
	}

	gate := readiness.Gate{
		Timeout:  b.options.StartupTimeout,
		Interval: b.options.PollInterval,
		Clock:    b.options.Clock,
	}
	ready, err := gate.WaitErr(ctx, func() (bool, error) {
		if process.Exited() {
			return false, &LaunchError{PID: process.PID(), ExitCode: process.ExitCode()}
		}
		return b.address.Exists(), nil
	})
	if err != nil {
		return fail(err)
	}
	if !ready {
		return fail(&StartupTimeoutError{Endpoint: b.address.Path(), Timeout: b.options.StartupTimeout})
	}

	conn, err := b.options.Service.Open(ctx, b.address.URI())
	if err != nil {
		return fail(err)
	}

	if b.options.Features != nil {
		if err := b.options.Features.LoadFeatures(ctx, conn); err != nil {
			conn.Close()
			return fail(fmt.Errorf("loading features: %w", err))
		}
	}

	b.process = process
	b.record = record
	b.conn = conn
	b.cleanup = cleanup
	b.logger.Info("privileged bridge started", "pid", process.PID())
	return b, nil
}

// Running reports whether the elevated process is alive, its endpoint
// exists, and the connection is open. It checks live on every call.
func (b *Bridge) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.runningLocked()
}

func (b *Bridge) runningLocked() bool {
	return b.process != nil &&
		b.conn != nil && !b.conn.Closed() &&
		b.process.Alive() &&
		b.address.Exists()
}

// Stop terminates the elevated process, removes the endpoint, and
// closes the connection. Stopping a stopped bridge does nothing.
// Cleanup failures are returned after the bridge has been marked
// stopped.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopLocked()
}

func (b *Bridge) stopLocked() error {
	if b.process == nil {
		return nil
	}
	b.cleanup.Stop()
	if b.conn != nil {
		b.conn.Close()
	}
	err := elevate.Cleanup(b.record)

	pid := b.record.PID
	b.process = nil
	b.conn = nil
	b.record = elevate.Record{}
	b.cleanup = runtime.Cleanup{}

	if err != nil {
		b.logger.Warn("privileged bridge stopped with errors", "pid", pid, "error", err)
		return err
	}
	b.logger.Info("privileged bridge stopped", "pid", pid)
	return nil
}

// Object returns a proxy for target in the privileged process. Calls
// made through it fail with a *rpc.TransportError once the bridge
// stops.
func (b *Bridge) Object(target string) (*Proxy, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.runningLocked() {
		return nil, ErrNotRunning
	}
	return NewProxy(b.conn, target), nil
}

// Run starts a bridge, calls body, and stops the bridge on every exit
// path. The body's error takes precedence; a Stop failure is joined to
// it.
func Run(ctx context.Context, options Options, body func(ctx context.Context, bridge *Bridge) error) (err error) {
	bridge, err := New(options)
	if err != nil {
		return err
	}
	if _, err := bridge.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if stopErr := bridge.Stop(); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("stopping privileged bridge: %w", stopErr))
		}
	}()
	return body(ctx, bridge)
}

// finalize runs when a started Bridge is garbage collected without
// Stop. Cleanup can wait out the termination grace period, so it runs
// off the runtime's cleanup goroutine.
func finalize(state finalizerState) {
	go func() {
		state.logger.Warn("privileged bridge collected while running, cleaning up", "pid", state.record.PID)
		if err := elevate.Cleanup(state.record); err != nil {
			state.logger.Warn("finalizer cleanup failed", "pid", state.record.PID, "error", err)
		}
	}()
}
