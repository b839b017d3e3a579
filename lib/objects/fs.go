// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package objects provides the call targets the privileged server
// exposes besides the built-in runtime object.
//
// Objects here run with whatever privilege the server has. They do
// not restrict paths or operations: deciding what to ask for is the
// controller's job.
package objects

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/bureau-foundation/privbridge/lib/rpc"
)

// FSTarget is the name NewFS is conventionally registered under.
const FSTarget = "fs"

// FileInfo is the result of fs.stat.
type FileInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	Mode    uint32    `json:"mode"`
	IsDir   bool      `json:"is_dir"`
	UID     uint32    `json:"uid"`
	GID     uint32    `json:"gid"`
	ModTime time.Time `json:"mod_time"`
}

// NewFS returns the filesystem object:
//
//	read(path)              -> []byte
//	write(path, data, mode) -> nil, replaces path atomically
//	remove(path)            -> nil, missing paths are an error
//	stat(path)              -> FileInfo (does not follow a final symlink)
//	chown(path, uid, gid)   -> nil
//	mkdir(path, mode)       -> nil, creates parents
//	list(path)              -> []string, sorted entry names
func NewFS() rpc.Methods {
	return rpc.Methods{
		"read":   fsRead,
		"write":  fsWrite,
		"remove": fsRemove,
		"stat":   fsStat,
		"chown":  fsChown,
		"mkdir":  fsMkdir,
		"list":   fsList,
	}
}

func pathArg(args rpc.Args, count int) (string, error) {
	if err := args.Expect(count); err != nil {
		return "", err
	}
	var path string
	if err := args.Decode(0, &path); err != nil {
		return "", err
	}
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: path %q is not absolute", rpc.ErrInvalidArgument, path)
	}
	return filepath.Clean(path), nil
}

func fsRead(_ context.Context, args rpc.Args) (any, error) {
	path, err := pathArg(args, 1)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func fsWrite(_ context.Context, args rpc.Args) (any, error) {
	path, err := pathArg(args, 3)
	if err != nil {
		return nil, err
	}
	var data []byte
	if err := args.Decode(1, &data); err != nil {
		return nil, err
	}
	var mode uint32
	if err := args.Decode(2, &mode); err != nil {
		return nil, err
	}

	// Write beside the target and rename over it so readers never see
	// a partial file.
	temporary, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, err
	}
	temporaryPath := temporary.Name()
	defer os.Remove(temporaryPath)

	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		return nil, err
	}
	if err := temporary.Chmod(os.FileMode(mode).Perm()); err != nil {
		temporary.Close()
		return nil, err
	}
	if err := temporary.Sync(); err != nil {
		temporary.Close()
		return nil, err
	}
	if err := temporary.Close(); err != nil {
		return nil, err
	}
	return nil, os.Rename(temporaryPath, path)
}

func fsRemove(_ context.Context, args rpc.Args) (any, error) {
	path, err := pathArg(args, 1)
	if err != nil {
		return nil, err
	}
	return nil, os.Remove(path)
}

func fsStat(_ context.Context, args rpc.Args) (any, error) {
	path, err := pathArg(args, 1)
	if err != nil {
		return nil, err
	}
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	result := FileInfo{
		Name:    info.Name(),
		Size:    info.Size(),
		Mode:    uint32(info.Mode()),
		IsDir:   info.IsDir(),
		ModTime: info.ModTime().UTC(),
	}
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		result.UID = stat.Uid
		result.GID = stat.Gid
	}
	return result, nil
}

func fsChown(_ context.Context, args rpc.Args) (any, error) {
	path, err := pathArg(args, 3)
	if err != nil {
		return nil, err
	}
	var uid, gid int
	if err := args.Decode(1, &uid); err != nil {
		return nil, err
	}
	if err := args.Decode(2, &gid); err != nil {
		return nil, err
	}
	return nil, os.Lchown(path, uid, gid)
}

func fsMkdir(_ context.Context, args rpc.Args) (any, error) {
	path, err := pathArg(args, 2)
	if err != nil {
		return nil, err
	}
	var mode uint32
	if err := args.Decode(1, &mode); err != nil {
		return nil, err
	}
	return nil, os.MkdirAll(path, os.FileMode(mode).Perm())
}

func fsList(_ context.Context, args rpc.Args) (any, error) {
	path, err := pathArg(args, 1)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}
