// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock lets code that waits be tested without waiting.
//
// The bridge sleeps in exactly one place: the readiness poll that
// waits for the elevated server to bind its socket. That loop takes a
// Clock so tests can drive it with Fake and never depend on how fast
// the machine running them is.
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go gate.Wait(ctx, probe)
//	c.WaitForTimers(1)                // the poll loop is asleep
//	c.Advance(10 * time.Millisecond) // wake it deterministically
package clock
