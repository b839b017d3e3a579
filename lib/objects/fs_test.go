// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objects

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/bureau-foundation/privbridge/lib/rpc"
)

func fsInvoker() rpc.Invoker {
	registry := rpc.NewRegistry()
	registry.Register(FSTarget, NewFS())
	return rpc.Local{Registry: registry}
}

func TestFSWriteReadStat(t *testing.T) {
	invoker := fsInvoker()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hosts")

	if err := invoker.Invoke(ctx, FSTarget, "write", nil, path, []byte("127.0.0.1 localhost\n"), uint32(0o640)); err != nil {
		t.Fatalf("write: %v", err)
	}

	var content []byte
	if err := invoker.Invoke(ctx, FSTarget, "read", &content, path); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(content) != "127.0.0.1 localhost\n" {
		t.Errorf("read = %q", content)
	}

	var info FileInfo
	if err := invoker.Invoke(ctx, FSTarget, "stat", &info, path); err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size != int64(len(content)) || info.IsDir || info.Name != "hosts" {
		t.Errorf("stat = %+v", info)
	}
	if os.FileMode(info.Mode).Perm() != 0o640 {
		t.Errorf("mode = %v, want 0640", os.FileMode(info.Mode).Perm())
	}
	if info.UID != uint32(os.Getuid()) {
		t.Errorf("uid = %d, want %d", info.UID, os.Getuid())
	}
}

func TestFSWriteReplacesAtomically(t *testing.T) {
	invoker := fsInvoker()
	ctx := context.Background()
	directory := t.TempDir()
	path := filepath.Join(directory, "config")

	for _, body := range []string{"first", "second"} {
		if err := invoker.Invoke(ctx, FSTarget, "write", nil, path, []byte(body), uint32(0o600)); err != nil {
			t.Fatalf("write %s: %v", body, err)
		}
	}

	var names []string
	if err := invoker.Invoke(ctx, FSTarget, "list", &names, directory); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"config"}) {
		t.Errorf("directory holds %v, temporary files leaked", names)
	}
}

func TestFSMkdirListRemove(t *testing.T) {
	invoker := fsInvoker()
	ctx := context.Background()
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")

	if err := invoker.Invoke(ctx, FSTarget, "mkdir", nil, nested, uint32(0o755)); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	var names []string
	if err := invoker.Invoke(ctx, FSTarget, "list", &names, filepath.Join(root, "a")); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"b"}) {
		t.Errorf("list = %v", names)
	}
	if err := invoker.Invoke(ctx, FSTarget, "remove", nil, nested); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(nested); !os.IsNotExist(err) {
		t.Errorf("remove left %s behind", nested)
	}
}

func TestFSChownToSelf(t *testing.T) {
	invoker := fsInvoker()
	path := filepath.Join(t.TempDir(), "owned")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := invoker.Invoke(context.Background(), FSTarget, "chown", nil, path, os.Getuid(), os.Getgid()); err != nil {
		t.Fatalf("chown to self: %v", err)
	}
}

func TestFSErrorsKeepTheirKind(t *testing.T) {
	invoker := fsInvoker()
	ctx := context.Background()
	missing := filepath.Join(t.TempDir(), "missing")

	err := invoker.Invoke(ctx, FSTarget, "read", nil, missing)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("read missing = %v, want os.ErrNotExist", err)
	}

	err = invoker.Invoke(ctx, FSTarget, "read", nil, "relative/path")
	if !errors.Is(err, rpc.ErrInvalidArgument) {
		t.Errorf("read relative = %v, want ErrInvalidArgument", err)
	}

	err = invoker.Invoke(ctx, FSTarget, "write", nil, missing)
	if !errors.Is(err, rpc.ErrInvalidArgument) {
		t.Errorf("write with missing arguments = %v, want ErrInvalidArgument", err)
	}
}

func TestFSPermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root is never denied")
	}
	directory := t.TempDir()
	path := filepath.Join(directory, "secret")
	if err := os.WriteFile(path, []byte("x"), 0o000); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	err := fsInvoker().Invoke(context.Background(), FSTarget, "read", nil, path)
	if !errors.Is(err, os.ErrPermission) {
		t.Errorf("read unreadable = %v, want os.ErrPermission", err)
	}
}
