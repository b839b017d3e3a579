// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package readiness implements a bounded polling wait.
//
// The bridge cannot be told when the elevated server has bound its
// socket: the server runs as another user behind sudo and shares no
// pipe with the controller that it could signal on. All the controller
// can do is look for the socket file at a fixed interval until it
// appears or a deadline passes. [Gate] is that loop.
package readiness

import (
	"context"
	"time"

	"github.com/bureau-foundation/privbridge/lib/clock"
)

// DefaultTimeout bounds the wait when Gate.Timeout is zero.
const DefaultTimeout = time.Second

// DefaultInterval is the pause between probes when Gate.Interval is
// zero.
const DefaultInterval = 10 * time.Millisecond

// Gate polls a probe until it succeeds or Timeout elapses. The zero
// value uses DefaultTimeout, DefaultInterval, and the real clock.
type Gate struct {
	Timeout  time.Duration
	Interval time.Duration
	Clock    clock.Clock
}

// Wait evaluates probe immediately and then once per Interval until it
// returns true, Timeout elapses, or ctx is done. It reports whether the
// probe succeeded.
func (g Gate) Wait(ctx context.Context, probe func() bool) bool {
	ok, _ := g.WaitErr(ctx, func() (bool, error) {
		return probe(), nil
	})
	return ok
}

// WaitErr is Wait for probes that can fail permanently. A non-nil
// error from probe stops the loop and is returned unchanged. A
// cancelled ctx returns ctx.Err().
func (g Gate) WaitErr(ctx context.Context, probe func() (bool, error)) (bool, error) {
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	interval := g.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	clk := clock.OrReal(g.Clock)

	deadline := clk.Now().Add(timeout)
	for {
		ok, err := probe()
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}

		remaining := deadline.Sub(clk.Now())
		if remaining <= 0 {
			return false, nil
		}
		// The last sleep is clipped so the gate never overshoots its
		// deadline by a whole interval.
		select {
		case <-clk.After(min(interval, remaining)):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}
