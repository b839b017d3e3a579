// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package elevate

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/zeebo/blake3"
)

// ErrUnavailable is wrapped by every Check failure.
var ErrUnavailable = errors.New("elevation unavailable")

// digestKey is the BLAKE3 key for server program digests. Keyed
// hashing keeps these digests from colliding with plain BLAKE3 sums of
// the same file computed for other purposes.
var digestKey = [32]byte{
	'p', 'r', 'i', 'v', 'b', 'r', 'i', 'd', 'g', 'e', '.', 's', 'e', 'r', 'v', 'e',
	'r', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Check verifies that c can be launched: the tool resolves on PATH,
// the interpreter (if any) resolves, and the server program exists. A
// compiled server program must be executable. When expectedDigest is
// non-empty the server program's [Digest] must equal it. Check hashes
// the file [Command.Resolve] picks, so callers that launch the
// resolved command run exactly the file that was verified.
func Check(c Command, expectedDigest string) error {
	if c.Tool == "" {
		return fmt.Errorf("%w: no elevation tool configured", ErrUnavailable)
	}
	if _, err := exec.LookPath(c.Tool); err != nil {
		return fmt.Errorf("%w: elevation tool %q: %w", ErrUnavailable, c.Tool, err)
	}
	resolved, err := c.Resolve()
	if err != nil {
		return err
	}
	if resolved.Interpreter != "" {
		if _, err := os.Stat(resolved.ServerProgram); err != nil {
			return fmt.Errorf("%w: server program: %w", ErrUnavailable, err)
		}
	}

	if expectedDigest == "" {
		return nil
	}
	actual, err := Digest(resolved.ServerProgram)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if actual != expectedDigest {
		return fmt.Errorf("%w: server program %s has digest %s, expected %s",
			ErrUnavailable, resolved.ServerProgram, actual, expectedDigest)
	}
	return nil
}

// Digest returns the hex keyed-BLAKE3 digest of the file at path.
func Digest(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hashing server program: %w", err)
	}
	defer file.Close()

	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		return "", fmt.Errorf("initializing hasher: %w", err)
	}
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
