// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package elevate

import (
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
)

// Command describes how to start the privileged server.
type Command struct {
	// Tool is the elevation program, e.g. "sudo".
	Tool string

	// ToolOptions are passed to Tool before anything else, e.g.
	// "--preserve-env=PRIVBRIDGE_LOG".
	ToolOptions []string

	// Interpreter runs ServerProgram when the server is a script.
	// Empty when ServerProgram is an executable.
	Interpreter string

	// LibraryPath is passed to the interpreter as -I<path>. Ignored
	// without an Interpreter.
	LibraryPath string

	// InterpreterOptions precede ServerProgram on the command line.
	InterpreterOptions []string

	// ServerProgram is the remote-object server to run elevated.
	ServerProgram string

	// Env is appended to the controller's environment for the child.
	// Elevation tools usually scrub the environment; use ToolOptions
	// to preserve what the server needs.
	Env []string

	// Stdin and Stderr default to the controller's own. The server's
	// stdout is sent to Stderr so it never mixes with the
	// controller's output. Stdin must stay a terminal for tools that
	// prompt for a password.
	Stdin  io.Reader
	Stderr io.Writer
}

// Argv returns the full launch line for one instance.
func (c Command) Argv(endpointPath string, uid int) []string {
	argv := make([]string, 0, 8+len(c.ToolOptions)+len(c.InterpreterOptions))
	argv = append(argv, c.Tool)
	argv = append(argv, c.ToolOptions...)
	if c.Interpreter != "" {
		argv = append(argv, c.Interpreter)
		if c.LibraryPath != "" {
			argv = append(argv, "-I"+c.LibraryPath)
		}
	}
	argv = append(argv, c.InterpreterOptions...)
	return append(argv, c.ServerProgram, endpointPath, strconv.Itoa(uid))
}

// Resolve returns c with Interpreter and ServerProgram replaced by
// absolute paths, resolved on the controller's PATH. Elevation tools
// search their own PATH (sudo's secure_path), so a bare name on the
// launch line can run a different file than the one [Check] hashed.
// Failures wrap ErrUnavailable.
func (c Command) Resolve() (Command, error) {
	if c.ServerProgram == "" {
		return c, fmt.Errorf("%w: no server program configured", ErrUnavailable)
	}
	if c.Interpreter != "" {
		interpreter, err := lookPathAbs(c.Interpreter)
		if err != nil {
			return c, fmt.Errorf("%w: interpreter %q: %w", ErrUnavailable, c.Interpreter, err)
		}
		c.Interpreter = interpreter
		// The interpreter opens a script by path, relative to the
		// working directory, never through PATH.
		program, err := filepath.Abs(c.ServerProgram)
		if err != nil {
			return c, fmt.Errorf("%w: server program %q: %w", ErrUnavailable, c.ServerProgram, err)
		}
		c.ServerProgram = program
		return c, nil
	}
	program, err := lookPathAbs(c.ServerProgram)
	if err != nil {
		return c, fmt.Errorf("%w: server program %q: %w", ErrUnavailable, c.ServerProgram, err)
	}
	c.ServerProgram = program
	return c, nil
}

func lookPathAbs(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", err
	}
	return filepath.Abs(path)
}
