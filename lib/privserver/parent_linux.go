// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package privserver

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// exitWithParent arranges SIGTERM for the server when its parent (the
// elevation tool) dies, so a SIGKILLed sudo cannot leave a root server
// behind.
func exitWithParent() error {
	parent := os.Getppid()
	if err := unix.Prctl(unix.PR_SET_PDEATHSIG, uintptr(unix.SIGTERM), 0, 0, 0); err != nil {
		return fmt.Errorf("setting parent death signal: %w", err)
	}
	// The parent may have died before the prctl took effect.
	if os.Getppid() != parent {
		return errParentGone
	}
	return nil
}
