// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for privbridge.
//
// Configuration is loaded from a single file specified by either the
// PRIVBRIDGE_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no ~/.config discovery and no
// automatic file search. Commands that accept --config fall back to
// [Default] when neither is given.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${TMPDIR}, and ${VAR:-default} patterns are expanded. No
// environment variable overrides a config value directly.
//
// Key exports:
//
//   - [Config] -- master struct with Elevation, Endpoint, Startup
//   - [Default] -- returns a Config with sudo and os.TempDir() defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other privbridge packages.
package config
