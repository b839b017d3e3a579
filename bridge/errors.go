// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotRunning is returned by Object when the bridge is stopped or
	// its process has died.
	ErrNotRunning = errors.New("privileged bridge is not running")

	// ErrProcessExists is the family of errors for a privileged process
	// or endpoint that is already present.
	ErrProcessExists = errors.New("privileged process exists")

	// ErrProcessAlreadyExists is returned by Start on a running bridge.
	ErrProcessAlreadyExists = fmt.Errorf("%w: bridge already started", ErrProcessExists)

	// ErrNoValidSocket is the family of errors for an endpoint that
	// cannot be used.
	ErrNoValidSocket = errors.New("no valid socket")

	// ErrSocketNotFound means the endpoint never appeared.
	// StartupTimeoutError matches it.
	ErrSocketNotFound = fmt.Errorf("%w: socket not found", ErrNoValidSocket)

	// ErrNoValidProcess is the family of errors for a privileged
	// process that could not be identified.
	ErrNoValidProcess = errors.New("no valid privileged process")

	// ErrProcessNotFound is returned by Start when the elevation tool
	// could not be spawned, so no process id exists.
	ErrProcessNotFound = fmt.Errorf("%w: process not found", ErrNoValidProcess)

	// ErrLaunchFailed is matched by LaunchError.
	ErrLaunchFailed = errors.New("privileged launch failed")

	// ErrModuleMismatch is returned by a strict ModuleCheck when the
	// server was built from different module versions.
	ErrModuleMismatch = errors.New("privileged server module mismatch")
)

// ConfigurationError reports an unusable elevation tool, interpreter,
// or server program. Nothing was spawned. It wraps the precondition
// failure, usually elevate.ErrUnavailable.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("privileged bridge configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// StartupTimeoutError reports that the endpoint did not appear within
// Timeout. The process was terminated before Start returned.
type StartupTimeoutError struct {
	Endpoint string
	Timeout  time.Duration
}

func (e *StartupTimeoutError) Error() string {
	return fmt.Sprintf("privileged server did not create %s within %v", e.Endpoint, e.Timeout)
}

func (e *StartupTimeoutError) Unwrap() error { return ErrSocketNotFound }

// LaunchError reports that the elevated process exited before creating
// its endpoint: a refused password, a denied sudoers rule, or a server
// that crashed on startup.
type LaunchError struct {
	PID      int
	ExitCode int
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("elevated process %d exited with code %d before binding its endpoint", e.PID, e.ExitCode)
}

func (e *LaunchError) Unwrap() error { return ErrLaunchFailed }
