// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package privserver

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
)

// serverEnvironment makes the test binary run Run instead of the
// tests, so tests can watch a real server process.
const serverEnvironment = "PRIVBRIDGE_TEST_SERVER"

func TestMain(m *testing.M) {
	if os.Getenv(serverEnvironment) != "" {
		if err := Run(os.Args[1:], slog.New(slog.NewTextHandler(os.Stderr, nil))); err != nil {
			fmt.Fprintf(os.Stderr, "test server: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
