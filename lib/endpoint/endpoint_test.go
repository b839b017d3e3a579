// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package endpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bureau-foundation/privbridge/lib/testutil"
)

func TestNewEmbedsPIDAndDiscriminator(t *testing.T) {
	directory := testutil.SocketDir(t)
	address, err := New(directory, "pbtest")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if filepath.Dir(address.Path()) != directory {
		t.Errorf("address %s is not in %s", address.Path(), directory)
	}
	wantPrefix := fmt.Sprintf("pbtest-%d-", os.Getpid())
	if base := filepath.Base(address.Path()); !strings.HasPrefix(base, wantPrefix) {
		t.Errorf("base name %q does not start with %q", base, wantPrefix)
	}
	if !strings.HasSuffix(address.Path(), address.Discriminator()) {
		t.Errorf("path %s does not end with discriminator %s", address.Path(), address.Discriminator())
	}
	if address.PID() != os.Getpid() {
		t.Errorf("PID() = %d, want %d", address.PID(), os.Getpid())
	}
}

func TestNewDefaults(t *testing.T) {
	address, err := New("", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if filepath.Dir(address.Path()) != filepath.Clean(os.TempDir()) {
		t.Errorf("default directory = %s, want %s", filepath.Dir(address.Path()), os.TempDir())
	}
	if !strings.HasPrefix(filepath.Base(address.Path()), DefaultPrefix+"-") {
		t.Errorf("default prefix missing from %s", address.Path())
	}
}

func TestNewDoesNotCreateAnything(t *testing.T) {
	address, err := New(testutil.SocketDir(t), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if address.Exists() {
		t.Fatalf("New created %s", address.Path())
	}
}

func TestConcurrentAddressesAreDistinct(t *testing.T) {
	directory := testutil.SocketDir(t)
	const count = 200

	addresses := make([]Address, count)
	errs := make([]error, count)
	var wait sync.WaitGroup
	for i := range count {
		wait.Add(1)
		go func() {
			defer wait.Done()
			addresses[i], errs[i] = New(directory, "")
		}()
	}
	wait.Wait()

	seen := make(map[string]bool, count)
	for i, address := range addresses {
		if errs[i] != nil {
			t.Fatalf("New #%d: %v", i, errs[i])
		}
		if seen[address.Path()] {
			t.Fatalf("duplicate address %s", address.Path())
		}
		seen[address.Path()] = true
	}
}

func TestNewRejectsOverlongPath(t *testing.T) {
	directory := "/" + strings.Repeat("d", 90)
	if _, err := New(directory, ""); err == nil {
		t.Fatal("New accepted a path beyond the sun_path limit")
	}
}

func TestNewRejectsSeparatorInPrefix(t *testing.T) {
	if _, err := New(testutil.SocketDir(t), "a/b"); err == nil {
		t.Fatal("New accepted a prefix containing a separator")
	}
}

func TestExists(t *testing.T) {
	address, err := New(testutil.SocketDir(t), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := os.WriteFile(address.Path(), nil, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if !address.Exists() {
		t.Error("Exists() = false with a file present")
	}
	if (Address{}).Exists() {
		t.Error("zero Address reports Exists")
	}
}

func TestURIRoundTrip(t *testing.T) {
	address, err := New(testutil.SocketDir(t), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	uri := address.URI()
	if !strings.HasPrefix(uri, Scheme+":/") {
		t.Errorf("URI %q lacks scheme", uri)
	}
	path, err := ParseURI(uri)
	if err != nil {
		t.Fatalf("ParseURI: %v", err)
	}
	if path != address.Path() {
		t.Errorf("ParseURI(URI()) = %s, want %s", path, address.Path())
	}
}

func TestParseURIRejects(t *testing.T) {
	for _, uri := range []string{
		"/tmp/privbridge-1-x",
		"unix:/tmp/x",
		"unixrpc:relative/path",
		"unixrpc:",
	} {
		if _, err := ParseURI(uri); !errors.Is(err, ErrInvalidURI) {
			t.Errorf("ParseURI(%q) error = %v, want ErrInvalidURI", uri, err)
		}
	}
}
