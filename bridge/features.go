// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/bureau-foundation/privbridge/lib/rpc"
)

// FeatureLoader prepares a freshly started server before Start
// returns. The invoker is the bridge's connection.
type FeatureLoader interface {
	LoadFeatures(ctx context.Context, invoker rpc.Invoker) error
}

// FeatureLoaderFunc adapts a function to FeatureLoader.
type FeatureLoaderFunc func(ctx context.Context, invoker rpc.Invoker) error

func (f FeatureLoaderFunc) LoadFeatures(ctx context.Context, invoker rpc.Invoker) error {
	return f(ctx, invoker)
}

// ModuleMismatch is one module linked at different versions by the
// controller and the server.
type ModuleMismatch struct {
	Path   string
	Local  string
	Remote string
}

// ModuleCheck compares the controller's build modules with the
// server's. A server built from other versions of shared modules may
// decode values differently, so mismatches are logged, and with Strict
// they fail Start.
type ModuleCheck struct {
	Logger *slog.Logger
	Strict bool
}

func (m ModuleCheck) LoadFeatures(ctx context.Context, invoker rpc.Invoker) error {
	var remote []rpc.Module
	if err := invoker.Invoke(ctx, rpc.RuntimeTarget, "modules", &remote); err != nil {
		return fmt.Errorf("listing server modules: %w", err)
	}

	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mismatches := CompareModules(rpc.BuildModules(), remote)
	for _, mismatch := range mismatches {
		logger.Warn("privileged server module version differs",
			"module", mismatch.Path,
			"local", mismatch.Local,
			"remote", mismatch.Remote,
		)
	}
	if m.Strict && len(mismatches) > 0 {
		return fmt.Errorf("%w: %d modules differ, first %s (local %s, server %s)",
			ErrModuleMismatch, len(mismatches),
			mismatches[0].Path, mismatches[0].Local, mismatches[0].Remote)
	}
	return nil
}

// CompareModules returns the modules present on both sides at
// different versions, sorted by path. Modules only one side links are
// not compared.
func CompareModules(local, remote []rpc.Module) []ModuleMismatch {
	remoteVersions := make(map[string]string, len(remote))
	for _, module := range remote {
		remoteVersions[module.Path] = module.Version
	}
	var mismatches []ModuleMismatch
	for _, module := range local {
		remoteVersion, ok := remoteVersions[module.Path]
		if !ok || remoteVersion == module.Version {
			continue
		}
		mismatches = append(mismatches, ModuleMismatch{
			Path:   module.Path,
			Local:  module.Version,
			Remote: remoteVersion,
		})
	}
	sort.Slice(mismatches, func(i, j int) bool { return mismatches[i].Path < mismatches[j].Path })
	return mismatches
}
