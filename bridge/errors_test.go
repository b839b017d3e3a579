// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bureau-foundation/privbridge/lib/elevate"
)

func TestErrorFamilies(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		family error
	}{
		{"already exists", ErrProcessAlreadyExists, ErrProcessExists},
		{"socket not found", ErrSocketNotFound, ErrNoValidSocket},
		{"process not found", ErrProcessNotFound, ErrNoValidProcess},
		{"timeout", &StartupTimeoutError{Endpoint: "/tmp/x", Timeout: time.Second}, ErrSocketNotFound},
		{"timeout family", &StartupTimeoutError{}, ErrNoValidSocket},
		{"launch", &LaunchError{PID: 1, ExitCode: 1}, ErrLaunchFailed},
		{"configuration", &ConfigurationError{Err: fmt.Errorf("%w: sudo", elevate.ErrUnavailable)}, elevate.ErrUnavailable},
		{"wrapped", fmt.Errorf("starting: %w", ErrProcessAlreadyExists), ErrProcessExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.family) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.family)
			}
		})
	}

	if errors.Is(ErrSocketNotFound, ErrNoValidProcess) || errors.Is(&LaunchError{}, ErrSocketNotFound) {
		t.Error("error families overlap")
	}
}
