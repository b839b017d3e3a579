// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package elevate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/privbridge/lib/clock"
	"github.com/bureau-foundation/privbridge/lib/rpc"
)

// terminateGrace is how long Cleanup waits after SIGTERM before
// escalating to SIGKILL, when it can observe the exit.
const terminateGrace = 2 * time.Second

// shutdownTimeout bounds the shutdown request sent to the server's
// control object before any signal.
const shutdownTimeout = time.Second

// Record is everything needed to tear down one elevated instance. It
// is a value: copying it and discarding the launcher does not affect
// Cleanup.
type Record struct {
	PID      int
	Endpoint string
	Tool     string

	// group is set when PID leads its own process group, which is then
	// signaled as a whole.
	group bool

	// exit lets Cleanup skip signaling a pid that has already been
	// reaped and might have been reused. Nil for records built with
	// NewRecord.
	exit *exitState
}

// NewRecord builds a Record for a process this package did not
// launch, e.g. one recovered from a stale endpoint name. Without a
// reaper Cleanup cannot rule out pid reuse; use with care.
func NewRecord(pid int, endpointPath, tool string) Record {
	return Record{PID: pid, Endpoint: endpointPath, Tool: tool}
}

// Cleanup terminates the recorded process and removes the recorded
// endpoint. Termination asks the server's control object to shut down,
// then falls back to SIGTERM and, for a process this package launched,
// SIGKILL after a grace period. A process or endpoint that is already gone counts as
// success. Cleanup may be called any number of times, from any
// goroutine, concurrently with itself.
func Cleanup(r Record) error {
	return errors.Join(terminate(r), unlink(r))
}

func terminate(r Record) error {
	if r.PID <= 0 || r.exit.exited() {
		return nil
	}

	// Ask the server to exit first. Signals sent to sudo from the
	// controller's process group are not relayed, so with a terminal
	// attached this is the path that actually stops the server.
	if r.exit != nil && requestShutdown(r.Endpoint) == nil {
		select {
		case <-r.exit.done:
			return nil
		case <-clock.Real().After(terminateGrace):
		}
	}

	target := r.PID
	if r.group {
		target = -r.PID
	}
	err := signalProcess(target, unix.SIGTERM)
	switch {
	case err == nil:
	case errors.Is(err, unix.ESRCH):
		return nil
	case errors.Is(err, unix.EPERM):
		// sudo keeps the invoking user as its real uid, so this only
		// happens with tools that fully switch identity.
		if toolErr := runTool(r.Tool, "kill", strconv.Itoa(r.PID)); toolErr != nil && pidAlive(r.PID) {
			return fmt.Errorf("terminating elevated process %d: %w", r.PID, toolErr)
		}
	default:
		return fmt.Errorf("terminating elevated process %d: %w", r.PID, err)
	}

	if r.exit == nil {
		return nil
	}
	select {
	case <-r.exit.done:
		return nil
	case <-clock.Real().After(terminateGrace):
	}
	if err := signalProcess(target, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("killing elevated process %d: %w", r.PID, err)
	}
	<-r.exit.done
	return nil
}

// requestShutdown calls control.shutdown on the endpoint. Any failure,
// including a server without a control object, means signals are
// needed.
func requestShutdown(endpointPath string) error {
	if endpointPath == "" {
		return errors.New("no endpoint recorded")
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return rpc.NewConn(endpointPath).Invoke(ctx, rpc.ControlTarget, "shutdown", nil)
}

func unlink(r Record) error {
	if r.Endpoint == "" {
		return nil
	}
	err := os.Remove(r.Endpoint)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if !errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("removing endpoint: %w", err)
	}

	// The server runs as root and may have left a root-owned socket
	// in a sticky directory.
	if toolErr := runTool(r.Tool, "rm", "-f", r.Endpoint); toolErr != nil {
		return fmt.Errorf("removing endpoint %s: %w (elevated removal: %v)", r.Endpoint, err, toolErr)
	}
	if _, statErr := os.Lstat(r.Endpoint); statErr == nil {
		return fmt.Errorf("removing endpoint %s: still present after elevated removal", r.Endpoint)
	}
	return nil
}

func runTool(tool string, args ...string) error {
	if tool == "" {
		return errors.New("no elevation tool recorded")
	}
	output, err := exec.Command(tool, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v: %w: %s", tool, args, err, output)
	}
	return nil
}
