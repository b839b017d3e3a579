// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package elevate

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// exitState is shared between a Process and the Records made from it.
// The reaper goroutine closes done after recording the exit code.
type exitState struct {
	done     chan struct{}
	exitCode int
	waitErr  error
}

func (s *exitState) exited() bool {
	if s == nil {
		return false
	}
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Process is a launched elevated server. With sudo, the pid is that of
// sudo itself, which relays signals to the server.
type Process struct {
	pid   int
	argv  []string
	group bool
	exit  *exitState
}

// Launch starts c for one endpoint and returns immediately. The child
// is reaped by a background goroutine, so it never becomes a zombie.
func Launch(c Command, endpointPath string, uid int, logger *slog.Logger) (*Process, error) {
	if logger == nil {
		logger = slog.Default()
	}
	argv := c.Argv(endpointPath, uid)

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = c.Stdin
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	cmd.Stderr = c.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	cmd.Stdout = cmd.Stderr
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	// sudo does not relay signals sent from its own process group, so
	// the child gets a group of its own. A tool that may prompt on the
	// controlling terminal needs the foreground group instead; Cleanup
	// then relies on the server's control object.
	group := !hasTerminal()
	if group {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", argv[0], err)
	}

	process := &Process{
		pid:   cmd.Process.Pid,
		argv:  argv,
		group: group,
		exit:  &exitState{done: make(chan struct{})},
	}
	logger.Info("elevated process started", "pid", process.pid, "argv", argv, "process_group", group)

	go func(state *exitState, pid int) {
		err := cmd.Wait()
		state.waitErr = err
		state.exitCode = cmd.ProcessState.ExitCode()
		close(state.done)
		logger.Info("elevated process exited", "pid", pid, "exit_code", state.exitCode)
	}(process.exit, process.pid)

	return process, nil
}

// PID returns the process id of the launched tool.
func (p *Process) PID() int { return p.pid }

// Argv returns the launch line.
func (p *Process) Argv() []string { return p.argv }

// Done is closed once the process has exited and been reaped.
func (p *Process) Done() <-chan struct{} { return p.exit.done }

// Exited reports whether the process has exited.
func (p *Process) Exited() bool { return p.exit.exited() }

// ExitCode returns the exit code once Done is closed, -1 before that
// or when the process was killed by a signal.
func (p *Process) ExitCode() int {
	if !p.exit.exited() {
		return -1
	}
	return p.exit.exitCode
}

// Alive reports whether the process is still running. Checked live on
// every call.
func (p *Process) Alive() bool {
	if p.exit.exited() {
		return false
	}
	return pidAlive(p.pid)
}

// Record returns the cleanup snapshot for this process and its
// endpoint. tool is used for kill and remove when the controller lacks
// permission to do them itself.
func (p *Process) Record(endpointPath, tool string) Record {
	return Record{PID: p.pid, Endpoint: endpointPath, Tool: tool, group: p.group, exit: p.exit}
}

// hasTerminal reports whether the controller has a controlling
// terminal. sudo prompts on /dev/tty even when stdin is redirected.
// Replaced in tests.
var hasTerminal = func() bool {
	tty, err := os.Open("/dev/tty")
	if err != nil {
		return false
	}
	tty.Close()
	return true
}

// pidAlive probes pid with signal 0. EPERM means the process exists but
// belongs to someone else, which for an elevated child is the normal
// case.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := signalProcess(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// signalProcess is replaced in tests to simulate permission failures.
var signalProcess = func(pid int, signal unix.Signal) error {
	return unix.Kill(pid, signal)
}
