// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package endpoint names the Unix socket that one bridge instance and
// its elevated server rendezvous on.
//
// An address has the form <dir>/<prefix>-<pid>-<uuid>. The pid keeps
// addresses from different controller processes apart and makes stale
// sockets attributable; the random UUID keeps addresses within one
// process apart and makes the path unguessable to other local users
// who might otherwise race to bind it first.
package endpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Scheme prefixes an address path in its URI form.
const Scheme = "unixrpc"

// DefaultPrefix is the file name prefix used when none is configured.
const DefaultPrefix = "privbridge"

// maxPathLength is the usable length of sockaddr_un.sun_path on Linux
// (108 bytes including the terminating NUL).
const maxPathLength = 107

// Address is one bridge instance's rendezvous point. The zero value is
// not valid; use New.
type Address struct {
	path          string
	pid           int
	discriminator string
}

// New computes a fresh address in dir (os.TempDir() when empty) with
// the given file name prefix (DefaultPrefix when empty). No file is
// created.
func New(dir, prefix string) (Address, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if strings.ContainsRune(prefix, filepath.Separator) {
		return Address{}, fmt.Errorf("endpoint prefix %q contains a path separator", prefix)
	}

	discriminator, err := uuid.NewRandom()
	if err != nil {
		return Address{}, fmt.Errorf("generating endpoint discriminator: %w", err)
	}

	pid := os.Getpid()
	address := Address{
		path:          filepath.Join(dir, prefix+"-"+strconv.Itoa(pid)+"-"+discriminator.String()),
		pid:           pid,
		discriminator: discriminator.String(),
	}
	if len(address.path) > maxPathLength {
		return Address{}, fmt.Errorf("endpoint path %s is %d bytes, exceeds the %d-byte Unix socket limit",
			address.path, len(address.path), maxPathLength)
	}
	return address, nil
}

// Path returns the filesystem path of the socket.
func (a Address) Path() string { return a.path }

// PID returns the controller process id embedded in the address.
func (a Address) PID() int { return a.pid }

// Discriminator returns the per-instance random component.
func (a Address) Discriminator() string { return a.discriminator }

// URI returns the scheme-qualified form, e.g.
// "unixrpc:/tmp/privbridge-4242-8f0c...".
func (a Address) URI() string { return URI(a.path) }

// String returns the path.
func (a Address) String() string { return a.path }

// IsZero reports whether a was never initialized.
func (a Address) IsZero() bool { return a.path == "" }

// Exists reports whether something is present at the address path.
// Lstat is used so a dangling symlink planted at the path still counts
// as present.
func (a Address) Exists() bool {
	if a.path == "" {
		return false
	}
	_, err := os.Lstat(a.path)
	return err == nil
}

// URI returns the scheme-qualified form of an arbitrary socket path.
func URI(path string) string { return Scheme + ":" + path }

// ErrInvalidURI is returned by ParseURI for anything that is not an
// absolute unixrpc: URI.
var ErrInvalidURI = errors.New("invalid endpoint URI")

// ParseURI returns the socket path named by uri.
func ParseURI(uri string) (string, error) {
	rest, found := strings.CutPrefix(uri, Scheme+":")
	if !found {
		return "", fmt.Errorf("%w: %q lacks the %s: scheme", ErrInvalidURI, uri, Scheme)
	}
	if !filepath.IsAbs(rest) {
		return "", fmt.Errorf("%w: %q is not an absolute path", ErrInvalidURI, uri)
	}
	return filepath.Clean(rest), nil
}
