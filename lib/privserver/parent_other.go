// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package privserver

// exitWithParent has no parent death signal to arm outside Linux.
func exitWithParent() error { return nil }
